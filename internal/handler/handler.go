package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	_ "github.com/mtlprog/taskgate/docs" // Register API docs
	"github.com/mtlprog/taskgate/internal/handler/dto"
	"github.com/mtlprog/taskgate/internal/middleware"
	"github.com/mtlprog/taskgate/internal/service"
	"github.com/mtlprog/taskgate/internal/static"
	"github.com/mtlprog/taskgate/internal/store"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	store           store.Store
	workflowService *service.WorkflowService
	authMiddleware  *middleware.AuthMiddleware
}

// New creates a new Handler instance with all dependencies.
func New(st store.Store, workflowService *service.WorkflowService, tokens *middleware.TokenCodec) *Handler {
	return &Handler{
		store:           st,
		workflowService: workflowService,
		authMiddleware:  middleware.NewAuthMiddleware(tokens, st),
	}
}

// RegisterRoutes registers all HTTP routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /healthz", h.handleHealthz)

	// Landing page and client guide
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("GET /guide.md", h.handleGuideMd)

	// Swagger UI
	mux.HandleFunc("GET /swagger/", httpSwagger.Handler())

	// API v1 routes with authentication
	auth := func(fn http.HandlerFunc) http.Handler {
		return h.authMiddleware.Authenticate(fn)
	}
	mux.Handle("GET /api/v1/tasks", auth(h.handleListTasks))
	mux.Handle("POST /api/v1/tasks", auth(h.handleCreateTask))
	mux.Handle("GET /api/v1/tasks/{id}", auth(h.handleGetTask))
	mux.Handle("PATCH /api/v1/tasks/{id}/status", auth(h.handleUpdateStatus))
	mux.Handle("POST /api/v1/tasks/{id}/decision", auth(h.handleDecideApproval))
	mux.Handle("POST /api/v1/tasks/{id}/comments", auth(h.handleCommentTask))
	mux.Handle("GET /api/v1/approvals", auth(h.handleReviewQueue))
	mux.Handle("GET /api/v1/logs", auth(h.handleActivityLog))
	mux.Handle("GET /api/v1/stats", auth(h.handleGetStats))
	mux.Handle("GET /api/v1/profiles", auth(h.handleListProfiles))
	mux.Handle("GET /api/v1/me", auth(h.handleMe))
}

// handleHealthz returns 200 OK if the database is reachable.
func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.store.Ping(ctx); err != nil {
		slog.Error("database health check failed", "error", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleIndex serves the embedded landing page.
func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(static.IndexHTML))
}

// handleGuideMd serves the embedded API guide.
func (h *Handler) handleGuideMd(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(static.GuideMd))
}

// Ping checks if the database is reachable (used for testing).
func (h *Handler) Ping(ctx context.Context) error {
	return h.store.Ping(ctx)
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// respondError writes a standard error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, dto.NewErrorResponse(code, message))
}

// respondDomainError maps err to its HTTP form and writes it.
func respondDomainError(w http.ResponseWriter, err error) {
	status, code, message := dto.MapDomainError(err)
	respondError(w, status, code, message)
}

// extractTaskID extracts and validates task ID from path parameter.
// Returns (taskID, true) if valid, ("", false) if invalid (error already sent to client).
func extractTaskID(w http.ResponseWriter, r *http.Request) (string, bool) {
	taskID := r.PathValue("id")
	if taskID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "task id is required")
		return "", false
	}

	if _, err := uuid.Parse(taskID); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "task_id must be a valid UUID")
		return "", false
	}

	return taskID, true
}
