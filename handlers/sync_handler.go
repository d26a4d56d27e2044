package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lyp1noff/champion-arena-sub000/middleware"
	"github.com/lyp1noff/champion-arena-sub000/services"
)

type SyncHandler struct {
	syncService services.SyncService
}

func NewSyncHandler(syncService services.SyncService) *SyncHandler {
	return &SyncHandler{syncService: syncService}
}

// edgeIDFromRequest сверяет edge_id из URL со станцией из токена:
// станция может синхронизировать только собственный журнал.
func edgeIDFromRequest(r *http.Request) (string, error) {
	edgeID := chi.URLParam(r, "edgeID")
	if edgeID == "" {
		return "", errors.New("missing edgeID parameter")
	}
	authenticated, err := middleware.EdgeIDFromContext(r.Context())
	if err != nil {
		return "", err
	}
	if authenticated != edgeID {
		return "", services.ErrSyncEdgeMismatch
	}
	return edgeID, nil
}

// ApplyCommands принимает батч событий оффлайн-журнала станции.
func (h *SyncHandler) ApplyCommands(w http.ResponseWriter, r *http.Request) {
	edgeID, err := edgeIDFromRequest(r)
	if err != nil {
		if errors.Is(err, services.ErrSyncEdgeMismatch) {
			mapServiceErrorToHTTP(w, r, err)
		} else {
			badRequestResponse(w, r, err)
		}
		return
	}

	var input struct {
		Events []services.InboundEvent `json:"events"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.syncService.ApplyCommands(r.Context(), edgeID, input.Events)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetStatus отдаёт чекпоинт станции и серверное время.
func (h *SyncHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	edgeID, err := edgeIDFromRequest(r)
	if err != nil {
		if errors.Is(err, services.ErrSyncEdgeMismatch) {
			mapServiceErrorToHTTP(w, r, err)
		} else {
			badRequestResponse(w, r, err)
		}
		return
	}

	status, err := h.syncService.GetStatus(r.Context(), edgeID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, status, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
