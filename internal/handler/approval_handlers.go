package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mtlprog/taskgate/internal/domain"
	"github.com/mtlprog/taskgate/internal/handler/dto"
	"github.com/mtlprog/taskgate/internal/middleware"
)

// handleDecideApproval approves or rejects a task in review.
// @Summary Decide on a task in review
// @Description Admins and Managers approve (task becomes Completed) or reject (task returns to In Progress) a task in Review.
// @Tags approvals
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body dto.DecisionRequest true "Decision request"
// @Success 200 {object} dto.DecisionResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/decision [post]
func (h *Handler) handleDecideApproval(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := middleware.GetActorFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	var req dto.DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	result, err := h.workflowService.DecideApproval(ctx, taskID, actor, domain.Decision(req.Decision), req.Note)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.DecisionResponse{
		Task:     dto.ToTaskResponse(h.workflowService.View(result.Task)),
		Approval: dto.ToApprovalResponse(result.Approval),
		AuditID:  result.Audit.ID,
	})
}

// handleReviewQueue lists tasks waiting for a decision.
// @Summary Review queue
// @Description Tasks in Review, most urgent effective priority first. Admins and Managers only.
// @Tags approvals
// @Produce json
// @Success 200 {object} dto.ReviewQueueResponse
// @Failure 403 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /approvals [get]
func (h *Handler) handleReviewQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := middleware.GetActorFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	items, err := h.workflowService.ReviewQueue(ctx, actor)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := dto.ReviewQueueResponse{Tasks: make([]dto.ReviewItemResponse, len(items))}
	for i, item := range items {
		resp.Tasks[i] = dto.ReviewItemResponse{
			TaskResponse: dto.ToTaskResponse(item.TaskView),
			CreatorName:  item.CreatorName,
		}
	}

	respondJSON(w, http.StatusOK, resp)
}
