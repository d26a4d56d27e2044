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
	ErrBracketNotFound          = errors.New("bracket not found")
	ErrBracketVersionConflict   = errors.New("bracket version conflict")
	ErrBracketSlotNotFound      = errors.New("bracket slot not found")
	ErrBracketSeedConflict      = errors.New("bracket seed conflict")
	ErrBracketReferencesInvalid = errors.New("bracket references invalid")
)

type BracketRepository interface {
	Create(ctx context.Context, exec SQLExecutor, bracket *models.Bracket) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Bracket, error)

	// BumpVersion — единственный путь увеличения версии: CAS по
	// ожидаемой версии, при промахе ErrBracketVersionConflict.
	BumpVersion(ctx context.Context, exec SQLExecutor, id, expectedVersion int) error
	UpdateStatusState(ctx context.Context, exec SQLExecutor, id int, status models.BracketStatus, state models.BracketState) error
	UpdatePlacements(ctx context.Context, exec SQLExecutor, id int, p1, p2, p3a, p3b *int) error

	DeleteStructure(ctx context.Context, exec SQLExecutor, bracketID int) error
	CreateParticipant(ctx context.Context, exec SQLExecutor, participant *models.BracketParticipant) error
	ListParticipants(ctx context.Context, exec SQLExecutor, bracketID int) ([]*models.BracketParticipant, error)

	CreateSlot(ctx context.Context, exec SQLExecutor, slot *models.BracketMatch) error
	UpdateSlotLinks(ctx context.Context, exec SQLExecutor, slotID int, nextMatchID, nextSlot *int) error
	ListSlots(ctx context.Context, exec SQLExecutor, bracketID int) ([]*models.BracketMatch, error)
	GetSlotByMatchID(ctx context.Context, exec SQLExecutor, matchID int) (*models.BracketMatch, error)
}

type postgresBracketRepository struct {
	db *sql.DB
}

func NewPostgresBracketRepository(db *sql.DB) BracketRepository {
	return &postgresBracketRepository{db: db}
}

func (r *postgresBracketRepository) executor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresBracketRepository) Create(ctx context.Context, exec SQLExecutor, bracket *models.Bracket) error {
	query := `
		INSERT INTO brackets (tournament_id, category_id, group_number, kind, status, state, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	if bracket.Version == 0 {
		bracket.Version = 1
	}
	err := r.executor(exec).QueryRowContext(ctx, query,
		bracket.TournamentID,
		bracket.CategoryID,
		bracket.GroupNumber,
		bracket.Kind,
		bracket.Status,
		bracket.State,
		bracket.Version,
	).Scan(&bracket.ID, &bracket.CreatedAt)

	return r.handleBracketError(err)
}

func (r *postgresBracketRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Bracket, error) {
	query := `
		SELECT id, tournament_id, category_id, group_number, kind, status, state, version,
		       place_1_athlete_id, place_2_athlete_id, place_3_a_athlete_id, place_3_b_athlete_id,
		       created_at
		FROM brackets
		WHERE id = $1`

	bracket := &models.Bracket{}
	err := r.executor(exec).QueryRowContext(ctx, query, id).Scan(
		&bracket.ID,
		&bracket.TournamentID,
		&bracket.CategoryID,
		&bracket.GroupNumber,
		&bracket.Kind,
		&bracket.Status,
		&bracket.State,
		&bracket.Version,
		&bracket.Place1AthleteID,
		&bracket.Place2AthleteID,
		&bracket.Place3AAthleteID,
		&bracket.Place3BAthleteID,
		&bracket.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBracketNotFound
		}
		return nil, fmt.Errorf("failed to scan bracket %d: %w", id, err)
	}
	return bracket, nil
}

func (r *postgresBracketRepository) BumpVersion(ctx context.Context, exec SQLExecutor, id, expectedVersion int) error {
	query := `UPDATE brackets SET version = version + 1 WHERE id = $1 AND version = $2`
	result, err := r.executor(exec).ExecContext(ctx, query, id, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to bump version for bracket %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		// Различаем отсутствующую сетку и проигранную гонку версий.
		if _, getErr := r.GetByID(ctx, exec, id); getErr != nil {
			return getErr
		}
		return ErrBracketVersionConflict
	}
	return nil
}

func (r *postgresBracketRepository) UpdateStatusState(ctx context.Context, exec SQLExecutor, id int, status models.BracketStatus, state models.BracketState) error {
	query := `UPDATE brackets SET status = $1, state = $2 WHERE id = $3`
	result, err := r.executor(exec).ExecContext(ctx, query, status, state, id)
	if err != nil {
		return fmt.Errorf("failed to update status for bracket %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrBracketNotFound)
}

func (r *postgresBracketRepository) UpdatePlacements(ctx context.Context, exec SQLExecutor, id int, p1, p2, p3a, p3b *int) error {
	query := `
		UPDATE brackets
		SET place_1_athlete_id = $1, place_2_athlete_id = $2,
		    place_3_a_athlete_id = $3, place_3_b_athlete_id = $4
		WHERE id = $5`
	result, err := r.executor(exec).ExecContext(ctx, query, p1, p2, p3a, p3b, id)
	if err != nil {
		return fmt.Errorf("failed to update placements for bracket %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrBracketNotFound)
}

// DeleteStructure удаляет слоты, матчи и участников сетки одним махом.
// Слоты и их матчи сносятся одним CTE: сначала уходят строки
// bracket_matches, затем матчи, на которые они ссылались, так что
// порядок не зависит от ON DELETE CASCADE на внешнем ключе.
func (r *postgresBracketRepository) DeleteStructure(ctx context.Context, exec SQLExecutor, bracketID int) error {
	e := r.executor(exec)
	query := `
		WITH removed AS (
			DELETE FROM bracket_matches WHERE bracket_id = $1
			RETURNING match_id
		)
		DELETE FROM matches WHERE id IN (SELECT match_id FROM removed)`
	if _, err := e.ExecContext(ctx, query, bracketID); err != nil {
		return fmt.Errorf("failed to delete structure for bracket %d: %w", bracketID, err)
	}
	if _, err := e.ExecContext(ctx, `DELETE FROM bracket_participants WHERE bracket_id = $1`, bracketID); err != nil {
		return fmt.Errorf("failed to delete participants for bracket %d: %w", bracketID, err)
	}
	return nil
}

func (r *postgresBracketRepository) CreateParticipant(ctx context.Context, exec SQLExecutor, participant *models.BracketParticipant) error {
	query := `
		INSERT INTO bracket_participants (bracket_id, athlete_id, seed)
		VALUES ($1, $2, $3)
		RETURNING id`
	err := r.executor(exec).QueryRowContext(ctx, query,
		participant.BracketID,
		participant.AthleteID,
		participant.Seed,
	).Scan(&participant.ID)
	return r.handleBracketError(err)
}

func (r *postgresBracketRepository) ListParticipants(ctx context.Context, exec SQLExecutor, bracketID int) ([]*models.BracketParticipant, error) {
	query := `
		SELECT id, bracket_id, athlete_id, seed
		FROM bracket_participants
		WHERE bracket_id = $1
		ORDER BY seed ASC`

	rows, err := r.executor(exec).QueryContext(ctx, query, bracketID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants for bracket %d: %w", bracketID, err)
	}
	defer rows.Close()

	participants := make([]*models.BracketParticipant, 0)
	for rows.Next() {
		var p models.BracketParticipant
		if scanErr := rows.Scan(&p.ID, &p.BracketID, &p.AthleteID, &p.Seed); scanErr != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", scanErr)
		}
		participants = append(participants, &p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during participant rows iteration: %w", err)
	}
	return participants, nil
}

func (r *postgresBracketRepository) CreateSlot(ctx context.Context, exec SQLExecutor, slot *models.BracketMatch) error {
	query := `
		INSERT INTO bracket_matches
			(bracket_id, match_id, round_number, position, stage,
			 next_match_id, next_slot, repechage_side, repechage_step)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	err := r.executor(exec).QueryRowContext(ctx, query,
		slot.BracketID,
		slot.MatchID,
		slot.RoundNumber,
		slot.Position,
		slot.Stage,
		slot.NextMatchID,
		slot.NextSlot,
		slot.RepechageSide,
		slot.RepechageStep,
	).Scan(&slot.ID)
	return r.handleBracketError(err)
}

func (r *postgresBracketRepository) UpdateSlotLinks(ctx context.Context, exec SQLExecutor, slotID int, nextMatchID, nextSlot *int) error {
	query := `UPDATE bracket_matches SET next_match_id = $1, next_slot = $2 WHERE id = $3`
	result, err := r.executor(exec).ExecContext(ctx, query, nextMatchID, nextSlot, slotID)
	if err != nil {
		return fmt.Errorf("failed to update links for slot %d: %w", slotID, err)
	}
	return checkAffectedRows(result, ErrBracketSlotNotFound)
}

const slotSelectColumns = `
	bm.id, bm.bracket_id, bm.match_id, bm.round_number, bm.position, bm.stage,
	bm.next_match_id, bm.next_slot, bm.repechage_side, bm.repechage_step,
	m.id, m.athlete1_id, m.athlete2_id, m.status, m.winner_id,
	m.score_athlete1, m.score_athlete2, m.round_type, m.started_at, m.ended_at, m.created_at`

func scanSlot(scanner interface{ Scan(dest ...interface{}) error }) (*models.BracketMatch, error) {
	var slot models.BracketMatch
	var match models.Match
	err := scanner.Scan(
		&slot.ID,
		&slot.BracketID,
		&slot.MatchID,
		&slot.RoundNumber,
		&slot.Position,
		&slot.Stage,
		&slot.NextMatchID,
		&slot.NextSlot,
		&slot.RepechageSide,
		&slot.RepechageStep,
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
		return nil, err
	}
	slot.Match = &match
	return &slot, nil
}

func (r *postgresBracketRepository) ListSlots(ctx context.Context, exec SQLExecutor, bracketID int) ([]*models.BracketMatch, error) {
	query := `
		SELECT ` + slotSelectColumns + `
		FROM bracket_matches bm
		JOIN matches m ON m.id = bm.match_id
		WHERE bm.bracket_id = $1
		ORDER BY bm.stage ASC, bm.round_number ASC, bm.position ASC`

	rows, err := r.executor(exec).QueryContext(ctx, query, bracketID)
	if err != nil {
		return nil, fmt.Errorf("failed to query slots for bracket %d: %w", bracketID, err)
	}
	defer rows.Close()

	slots := make([]*models.BracketMatch, 0)
	for rows.Next() {
		slot, scanErr := scanSlot(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan slot row: %w", scanErr)
		}
		slots = append(slots, slot)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during slot rows iteration: %w", err)
	}
	return slots, nil
}

func (r *postgresBracketRepository) GetSlotByMatchID(ctx context.Context, exec SQLExecutor, matchID int) (*models.BracketMatch, error) {
	query := `
		SELECT ` + slotSelectColumns + `
		FROM bracket_matches bm
		JOIN matches m ON m.id = bm.match_id
		WHERE bm.match_id = $1`

	slot, err := scanSlot(r.executor(exec).QueryRowContext(ctx, query, matchID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBracketSlotNotFound
		}
		return nil, fmt.Errorf("failed to scan slot for match %d: %w", matchID, err)
	}
	return slot, nil
}

func (r *postgresBracketRepository) handleBracketError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Constraint {
		case "bracket_participants_bracket_id_seed_key":
			return ErrBracketSeedConflict
		case "brackets_tournament_id_fkey", "brackets_category_id_fkey",
			"bracket_participants_athlete_id_fkey", "bracket_matches_match_id_fkey":
			return ErrBracketReferencesInvalid
		}
	}
	return err
}
