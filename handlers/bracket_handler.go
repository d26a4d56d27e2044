package handlers

import (
	"net/http"

	"github.com/lyp1noff/champion-arena-sub000/services"
)

type BracketHandler struct {
	bracketService services.BracketService
}

func NewBracketHandler(bracketService services.BracketService) *BracketHandler {
	return &BracketHandler{bracketService: bracketService}
}

// GetBracket отдаёт сетку целиком: участники, матчи обеих стадий,
// места. Публичный маршрут для табло и зрителей.
func (h *BracketHandler) GetBracket(w http.ResponseWriter, r *http.Request) {
	bracketID, err := readIDParam(r, "bracketID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	bracket, err := h.bracketService.GetBracketTree(r.Context(), bracketID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"bracket": bracket}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RegenerateBracket перестраивает дерево по текущему посеву.
// Старая структура удаляется вместе с результатами.
func (h *BracketHandler) RegenerateBracket(w http.ResponseWriter, r *http.Request) {
	bracketID, err := readIDParam(r, "bracketID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	bracket, err := h.bracketService.BuildOrRegenerate(r.Context(), bracketID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"bracket": bracket}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
