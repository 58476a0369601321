package domain

import "errors"

// Domain-specific errors for business logic validation.
var (
	// Task errors
	ErrTaskNotFound      = errors.New("task not found")
	ErrNotInReview       = errors.New("task is not in review")
	ErrStatusConflict    = errors.New("task status was changed concurrently")
	ErrInvalidTransition = errors.New("invalid status transition")

	// Permission errors
	ErrNotAuthorized = errors.New("role is not allowed to perform this action")

	// Profile errors
	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidToken    = errors.New("invalid authentication token")

	// Persistence errors
	ErrStoreFailure = errors.New("store failure")

	// Validation errors
	ErrInvalidStatus   = errors.New("invalid task status")
	ErrInvalidPriority = errors.New("invalid task priority")
	ErrInvalidDecision = errors.New("invalid approval decision")
	ErrInvalidRole     = errors.New("invalid role")
	ErrEmptyTitle      = errors.New("title is required")
	ErrEmptyComment    = errors.New("comment is required")
)
