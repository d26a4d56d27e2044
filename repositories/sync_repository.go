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
	ErrSyncEventNotFound   = errors.New("sync inbox event not found")
	ErrSyncEventConflict   = errors.New("sync inbox event already recorded")
	ErrEdgeStationNotFound = errors.New("edge station not found")
	ErrEdgeStationConflict = errors.New("edge station id already registered")
)

type SyncRepository interface {
	GetEvent(ctx context.Context, exec SQLExecutor, edgeID string, seq int64) (*models.SyncInboxEvent, error)
	InsertEvent(ctx context.Context, exec SQLExecutor, event *models.SyncInboxEvent) error
	UpdateEventOutcome(ctx context.Context, exec SQLExecutor, id int, applied bool, errText *string) error

	GetEdgeState(ctx context.Context, exec SQLExecutor, edgeID string) (*models.SyncEdgeState, error)
	// EnsureEdgeState создаёт чекпоинт лениво при первом контакте.
	EnsureEdgeState(ctx context.Context, exec SQLExecutor, edgeID string) (*models.SyncEdgeState, error)
	AdvanceEdgeSeq(ctx context.Context, exec SQLExecutor, edgeID string, seq int64) error

	CreateStation(ctx context.Context, exec SQLExecutor, station *models.EdgeStation) error
	GetStation(ctx context.Context, exec SQLExecutor, edgeID string) (*models.EdgeStation, error)
}

type postgresSyncRepository struct {
	db *sql.DB
}

func NewPostgresSyncRepository(db *sql.DB) SyncRepository {
	return &postgresSyncRepository{db: db}
}

func (r *postgresSyncRepository) executor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresSyncRepository) GetEvent(ctx context.Context, exec SQLExecutor, edgeID string, seq int64) (*models.SyncInboxEvent, error) {
	query := `
		SELECT id, event_id, edge_id, seq, received_at, applied, error
		FROM sync_inbox_events
		WHERE edge_id = $1 AND seq = $2`

	event := &models.SyncInboxEvent{}
	err := r.executor(exec).QueryRowContext(ctx, query, edgeID, seq).Scan(
		&event.ID,
		&event.EventID,
		&event.EdgeID,
		&event.Seq,
		&event.ReceivedAt,
		&event.Applied,
		&event.Error,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSyncEventNotFound
		}
		return nil, fmt.Errorf("failed to scan sync event (%s, %d): %w", edgeID, seq, err)
	}
	return event, nil
}

func (r *postgresSyncRepository) InsertEvent(ctx context.Context, exec SQLExecutor, event *models.SyncInboxEvent) error {
	query := `
		INSERT INTO sync_inbox_events (event_id, edge_id, seq, applied, error)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, received_at`

	err := r.executor(exec).QueryRowContext(ctx, query,
		event.EventID,
		event.EdgeID,
		event.Seq,
		event.Applied,
		event.Error,
	).Scan(&event.ID, &event.ReceivedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Constraint {
			case "sync_inbox_events_edge_id_seq_key", "sync_inbox_events_event_id_key":
				return ErrSyncEventConflict
			}
		}
		return fmt.Errorf("failed to insert sync event (%s, %d): %w", event.EdgeID, event.Seq, err)
	}
	return nil
}

func (r *postgresSyncRepository) UpdateEventOutcome(ctx context.Context, exec SQLExecutor, id int, applied bool, errText *string) error {
	query := `UPDATE sync_inbox_events SET applied = $1, error = $2 WHERE id = $3`
	result, err := r.executor(exec).ExecContext(ctx, query, applied, errText, id)
	if err != nil {
		return fmt.Errorf("failed to update sync event %d outcome: %w", id, err)
	}
	return checkAffectedRows(result, ErrSyncEventNotFound)
}

func (r *postgresSyncRepository) GetEdgeState(ctx context.Context, exec SQLExecutor, edgeID string) (*models.SyncEdgeState, error) {
	query := `
		SELECT edge_id, last_applied_seq, updated_at
		FROM sync_edge_states
		WHERE edge_id = $1`

	state := &models.SyncEdgeState{}
	err := r.executor(exec).QueryRowContext(ctx, query, edgeID).Scan(
		&state.EdgeID,
		&state.LastAppliedSeq,
		&state.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEdgeStationNotFound
		}
		return nil, fmt.Errorf("failed to scan edge state %s: %w", edgeID, err)
	}
	return state, nil
}

func (r *postgresSyncRepository) EnsureEdgeState(ctx context.Context, exec SQLExecutor, edgeID string) (*models.SyncEdgeState, error) {
	query := `
		INSERT INTO sync_edge_states (edge_id, last_applied_seq)
		VALUES ($1, 0)
		ON CONFLICT (edge_id) DO UPDATE SET edge_id = EXCLUDED.edge_id
		RETURNING edge_id, last_applied_seq, updated_at`

	state := &models.SyncEdgeState{}
	err := r.executor(exec).QueryRowContext(ctx, query, edgeID).Scan(
		&state.EdgeID,
		&state.LastAppliedSeq,
		&state.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure edge state %s: %w", edgeID, err)
	}
	return state, nil
}

// AdvanceEdgeSeq двигает чекпоинт только вперёд.
func (r *postgresSyncRepository) AdvanceEdgeSeq(ctx context.Context, exec SQLExecutor, edgeID string, seq int64) error {
	query := `
		UPDATE sync_edge_states
		SET last_applied_seq = $1, updated_at = now()
		WHERE edge_id = $2 AND last_applied_seq < $1`
	result, err := r.executor(exec).ExecContext(ctx, query, seq, edgeID)
	if err != nil {
		return fmt.Errorf("failed to advance edge %s to seq %d: %w", edgeID, seq, err)
	}
	return checkAffectedRows(result, ErrEdgeStationNotFound)
}

func (r *postgresSyncRepository) CreateStation(ctx context.Context, exec SQLExecutor, station *models.EdgeStation) error {
	query := `
		INSERT INTO edge_stations (edge_id, name, key_hash)
		VALUES ($1, $2, $3)
		RETURNING created_at`
	err := r.executor(exec).QueryRowContext(ctx, query,
		station.EdgeID,
		station.Name,
		station.KeyHash,
	).Scan(&station.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Constraint == "edge_stations_pkey" {
			return ErrEdgeStationConflict
		}
		return fmt.Errorf("failed to create edge station %s: %w", station.EdgeID, err)
	}
	return nil
}

func (r *postgresSyncRepository) GetStation(ctx context.Context, exec SQLExecutor, edgeID string) (*models.EdgeStation, error) {
	query := `
		SELECT edge_id, name, key_hash, created_at
		FROM edge_stations
		WHERE edge_id = $1`

	station := &models.EdgeStation{}
	err := r.executor(exec).QueryRowContext(ctx, query, edgeID).Scan(
		&station.EdgeID,
		&station.Name,
		&station.KeyHash,
		&station.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEdgeStationNotFound
		}
		return nil, fmt.Errorf("failed to scan edge station %s: %w", edgeID, err)
	}
	return station, nil
}
