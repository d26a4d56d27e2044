package models

import "time"

// BracketKind соответствует ENUM bracket_kind в БД.
type BracketKind string

const (
	KindSingleElimination BracketKind = "single_elimination"
	KindRoundRobin        BracketKind = "round_robin"
)

// BracketStatus — жизненный цикл сетки.
type BracketStatus string

const (
	BracketStatusPending  BracketStatus = "pending"
	BracketStatusStarted  BracketStatus = "started"
	BracketStatusFinished BracketStatus = "finished"
)

// BracketState — состояние согласования с edge-станциями.
type BracketState string

const (
	BracketStateDraft    BracketState = "draft"
	BracketStateRunning  BracketState = "running"
	BracketStateLocked   BracketState = "locked"
	BracketStateFinished BracketState = "finished"
)

// Bracket представляет сетку одной категории турнира.
// Version — оптимистический счётчик: стартует с 1 и увеличивается
// на каждое принятое структурное изменение или изменение статуса.
type Bracket struct {
	ID           int           `json:"id" db:"id"`
	TournamentID int           `json:"tournament_id" db:"tournament_id"`
	CategoryID   int           `json:"category_id" db:"category_id"`
	GroupNumber  int           `json:"group_number" db:"group_number"`
	Kind         BracketKind   `json:"kind" db:"kind"`
	Status       BracketStatus `json:"status" db:"status"`
	State        BracketState  `json:"state" db:"state"`
	Version      int           `json:"version" db:"version"`

	Place1AthleteID  *int `json:"place_1_athlete_id,omitempty" db:"place_1_athlete_id"`
	Place2AthleteID  *int `json:"place_2_athlete_id,omitempty" db:"place_2_athlete_id"`
	Place3AAthleteID *int `json:"place_3_a_athlete_id,omitempty" db:"place_3_a_athlete_id"`
	Place3BAthleteID *int `json:"place_3_b_athlete_id,omitempty" db:"place_3_b_athlete_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Связанные сущности, загружаются отдельно.
	Participants []BracketParticipant `json:"participants,omitempty" db:"-"`
	Matches      []BracketMatch       `json:"matches,omitempty" db:"-"`
}

// BracketParticipant — посевное место в сетке. AthleteID == nil
// означает незаполненное место. Seed плотный и уникальный в рамках сетки.
type BracketParticipant struct {
	ID        int  `json:"id" db:"id"`
	BracketID int  `json:"bracket_id" db:"bracket_id"`
	AthleteID *int `json:"athlete_id,omitempty" db:"athlete_id"`
	Seed      int  `json:"seed" db:"seed"`

	Athlete *Athlete `json:"athlete,omitempty" db:"-"`
}

// MatchStage различает основную сетку и утешительную.
type MatchStage string

const (
	StageMain      MatchStage = "main"
	StageRepechage MatchStage = "repechage"
)

// RepechageSide — ветка утешительной сетки: A для проигравшего
// первого полуфинала, B для второго.
type RepechageSide string

const (
	RepechageSideA RepechageSide = "A"
	RepechageSideB RepechageSide = "B"
)

// BracketMatch — размещение одного Match внутри сетки: раунд, позиция
// и сохранённая связь со следующим матчем. NextSlot (1 или 2) указывает,
// в какую сторону следующего матча проходит победитель.
type BracketMatch struct {
	ID          int        `json:"id" db:"id"`
	BracketID   int        `json:"bracket_id" db:"bracket_id"`
	MatchID     int        `json:"match_id" db:"match_id"`
	RoundNumber int        `json:"round_number" db:"round_number"`
	Position    int        `json:"position" db:"position"`
	Stage       MatchStage `json:"stage" db:"stage"`

	NextMatchID *int `json:"next_match_id,omitempty" db:"next_match_id"`
	NextSlot    *int `json:"next_slot,omitempty" db:"next_slot"`

	RepechageSide *RepechageSide `json:"repechage_side,omitempty" db:"repechage_side"`
	RepechageStep *int           `json:"repechage_step,omitempty" db:"repechage_step"`

	Match *Match `json:"match,omitempty" db:"-"`
}
