package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mtlprog/taskgate/internal/domain"
	"github.com/mtlprog/taskgate/internal/handler/dto"
	"github.com/mtlprog/taskgate/internal/middleware"
	"github.com/mtlprog/taskgate/internal/service"
)

// handleCreateTask creates a new task.
// @Summary Create a new task
// @Description Creates a Pending task owned by the caller. Priority defaults to Medium.
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body dto.CreateTaskRequest true "Task creation request"
// @Success 201 {object} dto.TaskResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks [post]
func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := middleware.GetActorFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	var req dto.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if len(req.Title) > 200 {
		respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title must be at most 200 characters")
		return
	}

	task, err := h.workflowService.CreateTask(ctx, actor, service.CreateTaskParams{
		Title:       req.Title,
		Description: req.Description,
		Priority:    domain.TaskPriority(req.Priority),
		DueDate:     req.DueDate,
		AssigneeID:  req.AssigneeID,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.ToTaskResponse(h.workflowService.View(task)))
}

// handleGetTask retrieves task details with approvals and comments.
// @Summary Get task details
// @Description Get a task with its effective priority, approval history and comments
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} dto.TaskDetailResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id} [get]
func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	detail, err := h.workflowService.GetTask(r.Context(), taskID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTaskDetailResponse(detail))
}

// handleUpdateStatus sets a task's status directly.
// @Summary Update task status
// @Description Set the status of a task. Any status is accepted unless the server runs with strict transitions.
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body dto.UpdateStatusRequest true "Status update request"
// @Success 200 {object} dto.TaskResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/status [patch]
func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
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

	var req dto.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if req.Status == "" {
		respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "status is required")
		return
	}

	task, err := h.workflowService.UpdateStatus(ctx, taskID, actor, domain.TaskStatus(req.Status))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTaskResponse(h.workflowService.View(task)))
}

// handleCommentTask adds a comment to a task.
// @Summary Comment on a task
// @Description Attach a comment to a task
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body dto.CommentTaskRequest true "Comment request"
// @Success 201 {object} dto.CommentResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/comments [post]
func (h *Handler) handleCommentTask(w http.ResponseWriter, r *http.Request) {
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

	var req dto.CommentTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	comment, err := h.workflowService.AddComment(ctx, taskID, actor, req.Content)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.ToCommentResponse(comment))
}

// handleListTasks lists tasks with filters.
// @Summary List tasks
// @Description List tasks. Priority filtering and sorting use the effective priority.
// @Tags tasks
// @Produce json
// @Param search query string false "Case-insensitive title substring"
// @Param status query string false "Comma-separated statuses"
// @Param priority query string false "Comma-separated effective priorities"
// @Param assignee query string false "Profile UUID or 'me'"
// @Param sort query string false "'priority' for most urgent first, default newest first"
// @Success 200 {object} dto.TasksListResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks [get]
func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := middleware.GetActorFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	query := r.URL.Query()
	params := service.ListTasksParams{
		Search: strings.TrimSpace(query.Get("search")),
	}

	if statusParam := query.Get("status"); statusParam != "" {
		for _, s := range splitAndTrim(statusParam, ",") {
			params.Statuses = append(params.Statuses, domain.TaskStatus(s))
		}
	}

	if priorityParam := query.Get("priority"); priorityParam != "" {
		for _, p := range splitAndTrim(priorityParam, ",") {
			params.Priorities = append(params.Priorities, domain.TaskPriority(p))
		}
	}

	if assigneeParam := query.Get("assignee"); assigneeParam != "" {
		if assigneeParam == "me" {
			params.AssigneeID = &actor.ID
		} else {
			params.AssigneeID = &assigneeParam
		}
	}

	switch sortParam := query.Get("sort"); sortParam {
	case "", "-created_at":
	case "priority", "-priority":
		params.SortByPriority = true
	default:
		respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "sort must be 'priority' or '-created_at'")
		return
	}

	views, err := h.workflowService.ListTasks(ctx, params)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	tasks := make([]dto.TaskResponse, len(views))
	for i, v := range views {
		tasks[i] = dto.ToTaskResponse(v)
	}

	respondJSON(w, http.StatusOK, dto.TasksListResponse{
		Tasks: tasks,
		Total: len(tasks),
	})
}

// splitAndTrim splits a string by delimiter and trims whitespace.
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
