package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/lyp1noff/champion-arena-sub000/models"
)

var (
	ErrMatchNotFound        = errors.New("match not found")
	ErrMatchAthleteInvalid  = errors.New("match athlete reference invalid")
	ErrMatchWinnerInvalid   = errors.New("match winner reference invalid")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	Update(ctx context.Context, exec SQLExecutor, match *models.Match) error
	UpdateAthletes(ctx context.Context, exec SQLExecutor, id int, athlete1ID, athlete2ID *int) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) executor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	query := `
		INSERT INTO matches
			(athlete1_id, athlete2_id, status, winner_id, score_athlete1, score_athlete2,
			 round_type, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	err := r.executor(exec).QueryRowContext(ctx, query,
		match.Athlete1ID,
		match.Athlete2ID,
		match.Status,
		match.WinnerID,
		match.ScoreAthlete1,
		match.ScoreAthlete2,
		match.RoundType,
		match.StartedAt,
		match.EndedAt,
	).Scan(&match.ID, &match.CreatedAt)

	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	query := `
		SELECT id, athlete1_id, athlete2_id, status, winner_id, score_athlete1, score_athlete2,
		       round_type, started_at, ended_at, created_at
		FROM matches
		WHERE id = $1`

	match := &models.Match{}
	err := r.executor(exec).QueryRowContext(ctx, query, id).Scan(
		&match.ID,
		&match.Athlete1ID,
		&match.Athlete2ID,
		&match.Status,
		&match.WinnerID,
		&match.ScoreAthlete1,
		&match.ScoreAthlete2,
		&match.RoundType,
		&match.StartedAt,
		&match.EndedAt,
		&match.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match %d: %w", id, err)
	}
	return match, nil
}

func (r *postgresMatchRepository) Update(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	query := `
		UPDATE matches
		SET athlete1_id = $1, athlete2_id = $2, status = $3, winner_id = $4,
		    score_athlete1 = $5, score_athlete2 = $6, started_at = $7, ended_at = $8
		WHERE id = $9`

	result, err := r.executor(exec).ExecContext(ctx, query,
		match.Athlete1ID,
		match.Athlete2ID,
		match.Status,
		match.WinnerID,
		match.ScoreAthlete1,
		match.ScoreAthlete2,
		match.StartedAt,
		match.EndedAt,
		match.ID,
	)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateAthletes(ctx context.Context, exec SQLExecutor, id int, athlete1ID, athlete2ID *int) error {
	query := `UPDATE matches SET athlete1_id = $1, athlete2_id = $2 WHERE id = $3`
	result, err := r.executor(exec).ExecContext(ctx, query, athlete1ID, athlete2ID, id)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Constraint {
		case "matches_athlete1_id_fkey", "matches_athlete2_id_fkey":
			return ErrMatchAthleteInvalid
		case "matches_winner_id_fkey":
			return ErrMatchWinnerInvalid
		}
	}
	return err
}
