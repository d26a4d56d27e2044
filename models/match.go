package models

import "time"

type MatchStatus string

const (
	MatchStatusNotStarted MatchStatus = "not_started"
	MatchStatusStarted    MatchStatus = "started"
	MatchStatusFinished   MatchStatus = "finished"
)

// Метки раундов. Последние три раунда основной сетки всегда
// quarterfinal/semifinal/final, более ранние — round_N.
const (
	RoundTypeFinal        = "final"
	RoundTypeSemifinal    = "semifinal"
	RoundTypeQuarterfinal = "quarterfinal"
	RoundTypeBronze       = "bronze"
	RoundTypeRepechage    = "repechage"
)

// Match — сам поединок. Отсутствующий атлет при заполненном втором
// слоте означает walkover. Счёт и победитель выставляются только
// после выхода из not_started.
type Match struct {
	ID            int         `json:"id" db:"id"`
	Athlete1ID    *int        `json:"athlete1_id,omitempty" db:"athlete1_id"`
	Athlete2ID    *int        `json:"athlete2_id,omitempty" db:"athlete2_id"`
	Status        MatchStatus `json:"status" db:"status"`
	WinnerID      *int        `json:"winner_id,omitempty" db:"winner_id"`
	ScoreAthlete1 *int        `json:"score_athlete1,omitempty" db:"score_athlete1"`
	ScoreAthlete2 *int        `json:"score_athlete2,omitempty" db:"score_athlete2"`
	RoundType     string      `json:"round_type,omitempty" db:"round_type"`
	StartedAt     *time.Time  `json:"started_at,omitempty" db:"started_at"`
	EndedAt       *time.Time  `json:"ended_at,omitempty" db:"ended_at"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}

// HasAthlete сообщает, участвует ли атлет в этом матче.
func (m *Match) HasAthlete(athleteID int) bool {
	if m.Athlete1ID != nil && *m.Athlete1ID == athleteID {
		return true
	}
	if m.Athlete2ID != nil && *m.Athlete2ID == athleteID {
		return true
	}
	return false
}

// OpponentOf возвращает соперника атлета или nil при walkover.
func (m *Match) OpponentOf(athleteID int) *int {
	if m.Athlete1ID != nil && *m.Athlete1ID == athleteID {
		return m.Athlete2ID
	}
	if m.Athlete2ID != nil && *m.Athlete2ID == athleteID {
		return m.Athlete1ID
	}
	return nil
}
