package handlers

import (
	"net/http"

	"github.com/lyp1noff/champion-arena-sub000/models"
	"github.com/lyp1noff/champion-arena-sub000/services"
)

// MatchHandler — локальные мутации матчей. Каждый запрос может нести
// expected_version для оптимистической блокировки; без него берётся
// текущая версия сетки.
type MatchHandler struct {
	matchService services.MatchService
}

func NewMatchHandler(matchService services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: matchService}
}

func (h *MatchHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := readIDParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.GetMatch(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeMatch(w, r, match)
}

func (h *MatchHandler) StartMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := readIDParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input struct {
		ExpectedVersion *int `json:"expected_version"`
	}
	if r.ContentLength > 0 {
		if err := readJSON(w, r, &input); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}

	match, err := h.matchService.StartMatch(r.Context(), matchID, input.ExpectedVersion)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeMatch(w, r, match)
}

func (h *MatchHandler) UpdateMatchScores(w http.ResponseWriter, r *http.Request) {
	matchID, err := readIDParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input struct {
		ScoreAthlete1   *int `json:"score_athlete1"`
		ScoreAthlete2   *int `json:"score_athlete2"`
		ExpectedVersion *int `json:"expected_version"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.UpdateMatchScores(r.Context(), matchID, input.ScoreAthlete1, input.ScoreAthlete2, input.ExpectedVersion)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeMatch(w, r, match)
}

func (h *MatchHandler) FinishMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := readIDParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input struct {
		services.FinishMatchInput
		ExpectedVersion *int `json:"expected_version"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.FinishMatch(r.Context(), matchID, input.FinishMatchInput, input.ExpectedVersion)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeMatch(w, r, match)
}

func (h *MatchHandler) UpdateMatchStatus(w http.ResponseWriter, r *http.Request) {
	matchID, err := readIDParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input struct {
		Status          models.MatchStatus `json:"status"`
		ExpectedVersion *int               `json:"expected_version"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.UpdateMatchStatus(r.Context(), matchID, input.Status, input.ExpectedVersion)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeMatch(w, r, match)
}

func (h *MatchHandler) writeMatch(w http.ResponseWriter, r *http.Request, match *models.Match) {
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
