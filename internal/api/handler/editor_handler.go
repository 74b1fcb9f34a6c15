package handler

import (
	"encoding/json"
	"net/http"

	"dsa_tracker/internal/api/middleware"
	"dsa_tracker/internal/app/service"
	"dsa_tracker/internal/common"
	"dsa_tracker/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

// EditorHandler serves the code editor: running snippets and asking the
// assistant about them.
type EditorHandler struct {
	execution *service.ExecutionService
	assistant *service.AssistantService
}

func NewEditorHandler(execution *service.ExecutionService, assistant *service.AssistantService) *EditorHandler {
	return &EditorHandler{execution: execution, assistant: assistant}
}

func (h *EditorHandler) RegisterRoutes(r chi.Router) {
	r.Post("/execute", h.runCode)
	r.Post("/assistant", h.ask)
}

func (h *EditorHandler) runCode(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	var req model.RunCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	result, err := h.execution.Run(r.Context(), userID, req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, result)
}

func (h *EditorHandler) ask(w http.ResponseWriter, r *http.Request) {
	var req model.AssistantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	reply, err := h.assistant.Ask(r.Context(), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, reply)
}
