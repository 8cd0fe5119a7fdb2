package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/kimhsiao/lifelog/backend/internal/errors"
	syncpkg "github.com/kimhsiao/lifelog/backend/internal/sync"
)

// SyncHandler exposes sync status and manual triggers.
type SyncHandler struct {
	engine syncpkg.SyncEngine
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(engine syncpkg.SyncEngine) *SyncHandler {
	return &SyncHandler{engine: engine}
}

type statusResponse struct {
	State syncpkg.State `json:"state"`
	syncpkg.Status
}

func newStatusResponse(s syncpkg.Status) statusResponse {
	return statusResponse{State: s.State(), Status: s}
}

// GetStatus handles GET /api/sync/status
// The pending count is recomputed from the queue before answering.
func (h *SyncHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if _, err := h.engine.CheckUnsyncedCount(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newStatusResponse(h.engine.Status()))
}

type syncResponse struct {
	*syncpkg.Result
	Status statusResponse `json:"status"`
}

// Sync handles POST /api/sync
// A pass already in flight yields 409; a failed pass yields 502 with the
// pass result.
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.SyncAll(r.Context())
	if err != nil && res == nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if err != nil {
		status = statusFor(apperrors.CodeOf(err))
	}
	writeJSON(w, status, syncResponse{Result: res, Status: newStatusResponse(h.engine.Status())})
}

type lifecycleRequest struct {
	Foregrounded *bool `json:"foregrounded"`
}

type lifecycleResponse struct {
	Synced bool            `json:"synced"`
	Result *syncpkg.Result `json:"result,omitempty"`
}

// Lifecycle handles POST /api/lifecycle
// {"foregrounded": true} drains if entries are pending.
func (h *SyncHandler) Lifecycle(w http.ResponseWriter, r *http.Request) {
	var req lifecycleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Foregrounded == nil {
		badRequest(w, "foregrounded is required")
		return
	}

	res, err := h.engine.HandleLifecycleEvent(r.Context(), *req.Foregrounded)
	if err != nil && res == nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if err != nil {
		status = statusFor(apperrors.CodeOf(err))
	}
	writeJSON(w, status, lifecycleResponse{Synced: res != nil, Result: res})
}

// Routes mounts the sync endpoints on r.
func (h *SyncHandler) Routes(r chi.Router) {
	r.Get("/sync/status", h.GetStatus)
	r.Post("/sync", h.Sync)
	r.Post("/lifecycle", h.Lifecycle)
}
