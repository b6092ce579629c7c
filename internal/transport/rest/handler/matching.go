package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"strangers/internal/model"
	"strangers/internal/service"
)

// MatchingHandler handles queue registration and skips
type MatchingHandler struct {
	matchSvc  *service.MatchService
	cleanup   *service.CleanupService
	signaling service.Registry
	log       *slog.Logger
}

// NewMatchingHandler creates a new matching handler. signaling is the registry
// whose connection a skip retires.
func NewMatchingHandler(matchSvc *service.MatchService, cleanup *service.CleanupService, signaling service.Registry, log *slog.Logger) *MatchingHandler {
	return &MatchingHandler{
		matchSvc:  matchSvc,
		cleanup:   cleanup,
		signaling: signaling,
		log:       log,
	}
}

// Register handles POST /registerForMatching
func (h *MatchingHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := model.Validate(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := h.matchSvc.Register(r.Context(), req.Name)
	if resp.Status == model.StatusError {
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Skip handles POST /skip
func (h *MatchingHandler) Skip(w http.ResponseWriter, r *http.Request) {
	var req model.SkipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := model.Validate(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.cleanup.Skip(r.Context(), h.signaling, req.Name); err != nil {
		h.log.Error("Skip failed", "user", req.Name, "error", err)
		writeError(w, http.StatusInternalServerError, service.ErrInternal.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "skipped"})
}
