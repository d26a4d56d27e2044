package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/lyp1noff/champion-arena-sub000/models"
)

var ErrAthleteNotFound = errors.New("athlete not found")

// AthleteRepository — только то, что нужно сетке: ссылки и имена.
// Полноценный CRUD атлетов живёт в соседнем сервисе.
type AthleteRepository interface {
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Athlete, error)
	ListByIDs(ctx context.Context, exec SQLExecutor, ids []int) (map[int]*models.Athlete, error)
}

type postgresAthleteRepository struct {
	db *sql.DB
}

func NewPostgresAthleteRepository(db *sql.DB) AthleteRepository {
	return &postgresAthleteRepository{db: db}
}

func (r *postgresAthleteRepository) executor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresAthleteRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Athlete, error) {
	query := `
		SELECT id, first_name, last_name, coach_id, created_at
		FROM athletes
		WHERE id = $1`

	athlete := &models.Athlete{}
	err := r.executor(exec).QueryRowContext(ctx, query, id).Scan(
		&athlete.ID,
		&athlete.FirstName,
		&athlete.LastName,
		&athlete.CoachID,
		&athlete.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAthleteNotFound
		}
		return nil, fmt.Errorf("failed to scan athlete %d: %w", id, err)
	}
	return athlete, nil
}

func (r *postgresAthleteRepository) ListByIDs(ctx context.Context, exec SQLExecutor, ids []int) (map[int]*models.Athlete, error) {
	result := make(map[int]*models.Athlete, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `
		SELECT id, first_name, last_name, coach_id, created_at
		FROM athletes
		WHERE id = ANY($1)`

	rows, err := r.executor(exec).QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query athletes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a models.Athlete
		if scanErr := rows.Scan(&a.ID, &a.FirstName, &a.LastName, &a.CoachID, &a.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan athlete row: %w", scanErr)
		}
		result[a.ID] = &a
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during athlete rows iteration: %w", err)
	}
	return result, nil
}
