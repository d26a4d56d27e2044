package models

import "time"

// Athlete — спортсмен. CRUD атлетов живёт вне этого сервиса,
// здесь сущность нужна для ссылок из сетки и отображения имён.
type Athlete struct {
	ID        int       `json:"id" db:"id"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	CoachID   *int      `json:"coach_id,omitempty" db:"coach_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Category — возрастная/весовая категория турнира.
type Category struct {
	ID       int    `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	AgeGroup string `json:"age_group,omitempty" db:"age_group"`
	Weight   string `json:"weight,omitempty" db:"weight"`
}

type TournamentStatus string

const (
	TournamentStatusSoon      TournamentStatus = "soon"
	TournamentStatusActive    TournamentStatus = "active"
	TournamentStatusCompleted TournamentStatus = "completed"
)

type Tournament struct {
	ID        int              `json:"id" db:"id"`
	Name      string           `json:"name" db:"name"`
	StartDate time.Time        `json:"start_date" db:"start_date"`
	EndDate   time.Time        `json:"end_date" db:"end_date"`
	Status    TournamentStatus `json:"status" db:"status"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}
