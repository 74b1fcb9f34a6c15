package handler

import (
	"encoding/json"
	"net/http"

	"dsa_tracker/internal/api/middleware"
	"dsa_tracker/internal/app/livesync"
	"dsa_tracker/internal/app/service"
	"dsa_tracker/internal/app/tree"
	"dsa_tracker/internal/common"
	"dsa_tracker/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type TrackerHandler struct {
	tracker    *service.TrackerService
	controller *livesync.Controller
}

func NewTrackerHandler(tracker *service.TrackerService, controller *livesync.Controller) *TrackerHandler {
	return &TrackerHandler{tracker: tracker, controller: controller}
}

func (h *TrackerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/tree", h.getTree)
	r.Get("/stats", h.getStats)
	r.Get("/search", h.search)

	r.Post("/problems", h.addProblem)
	r.Patch("/problems/{problemID}", h.updateProblem)
	r.Post("/problems/{problemID}/toggle", h.toggleProblem)
	r.Delete("/problems/{problemID}", h.deleteProblem)
	r.Delete("/categories/{categoryID}", h.deleteCategory)
}

func (h *TrackerHandler) loadTree(w http.ResponseWriter, r *http.Request) ([]model.Category, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return nil, false
	}
	categories, err := h.controller.Rebuild(r.Context(), userID)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return nil, false
	}
	return categories, true
}

func (h *TrackerHandler) getTree(w http.ResponseWriter, r *http.Request) {
	categories, ok := h.loadTree(w, r)
	if !ok {
		return
	}
	common.RespondWithJSON(w, http.StatusOK, categories)
}

func (h *TrackerHandler) getStats(w http.ResponseWriter, r *http.Request) {
	categories, ok := h.loadTree(w, r)
	if !ok {
		return
	}
	common.RespondWithJSON(w, http.StatusOK, tree.ComputeStats(categories))
}

func (h *TrackerHandler) search(w http.ResponseWriter, r *http.Request) {
	categories, ok := h.loadTree(w, r)
	if !ok {
		return
	}
	common.RespondWithJSON(w, http.StatusOK, tree.SearchProblems(categories, r.URL.Query().Get("q")))
}

func (h *TrackerHandler) addProblem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	var form model.NewProblemForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	problemID, err := h.tracker.AddProblem(r.Context(), userID, form)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, map[string]string{"id": problemID})
}

func (h *TrackerHandler) updateProblem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	var upd model.ProblemUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	if err := h.tracker.UpdateProblem(r.Context(), userID, chi.URLParam(r, "problemID"), upd); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TrackerHandler) toggleProblem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	completed, err := h.tracker.ToggleProblemCompletion(r.Context(), userID, chi.URLParam(r, "problemID"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]bool{"completed": completed})
}

func (h *TrackerHandler) deleteProblem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	if err := h.tracker.DeleteProblem(r.Context(), userID, chi.URLParam(r, "problemID")); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TrackerHandler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	if err := h.tracker.DeleteCategory(r.Context(), userID, chi.URLParam(r, "categoryID")); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
