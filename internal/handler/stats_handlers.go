package handler

import (
	"net/http"
	"strconv"

	"github.com/mtlprog/taskgate/internal/handler/dto"
	"github.com/mtlprog/taskgate/internal/middleware"
	"github.com/mtlprog/taskgate/internal/service"
)

// handleGetStats returns dashboard statistics.
// @Summary Get statistics
// @Description Task counts per status, tasks whose effective priority is Critical, team size and completions this week (Mon-Sun)
// @Tags stats
// @Produce json
// @Success 200 {object} dto.StatsResponse
// @Security BearerAuth
// @Router /stats [get]
func (h *Handler) handleGetStats(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.workflowService.Dashboard(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToStatsResponse(dashboard))
}

// handleActivityLog returns the latest audit entries.
// @Summary Activity log
// @Description Latest audit entries with actor names, newest first
// @Tags stats
// @Produce json
// @Param limit query int false "Number of entries (1-500, default 50)"
// @Success 200 {object} dto.ActivityLogResponse
// @Security BearerAuth
// @Router /logs [get]
func (h *Handler) handleActivityLog(w http.ResponseWriter, r *http.Request) {
	limit := service.DefaultActivityLimit
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		n, err := strconv.Atoi(limitParam)
		if err != nil || n <= 0 || n > service.MaxActivityLimit {
			respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	entries, err := h.workflowService.ActivityLog(r.Context(), limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := dto.ActivityLogResponse{Entries: make([]dto.AuditEntryResponse, len(entries))}
	for i, e := range entries {
		resp.Entries[i] = dto.ToAuditEntryResponse(e)
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleListProfiles lists known profiles.
// @Summary List profiles
// @Description Every profile, for assignee pickers
// @Tags profiles
// @Produce json
// @Success 200 {object} dto.ProfilesResponse
// @Security BearerAuth
// @Router /profiles [get]
func (h *Handler) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.workflowService.ListProfiles(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := dto.ProfilesResponse{Profiles: make([]dto.ProfileResponse, len(profiles))}
	for i, p := range profiles {
		resp.Profiles[i] = dto.ToProfileResponse(p)
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleMe returns the caller's profile.
// @Summary Current profile
// @Tags profiles
// @Produce json
// @Success 200 {object} dto.ProfileResponse
// @Security BearerAuth
// @Router /me [get]
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	profile, err := middleware.GetProfileFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	respondJSON(w, http.StatusOK, dto.ToProfileResponse(profile))
}
