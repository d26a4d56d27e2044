package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lyp1noff/champion-arena-sub000/brackets"
	"github.com/lyp1noff/champion-arena-sub000/models"
	"github.com/lyp1noff/champion-arena-sub000/repositories"
)

// InboundEvent — одно событие из оффлайн-журнала edge-станции.
type InboundEvent struct {
	EventID          string          `json:"event_id"`
	Seq              int64           `json:"seq"`
	EventType        string          `json:"event_type"`
	AggregateType    string          `json:"aggregate_type"`
	AggregateID      int             `json:"aggregate_id"`
	AggregateVersion int             `json:"aggregate_version"`
	OccurredAt       time.Time       `json:"occurred_at"`
	Payload          json.RawMessage `json:"payload"`
}

type SyncOutcome string

const (
	SyncOutcomeAccepted  SyncOutcome = "accepted"
	SyncOutcomeDuplicate SyncOutcome = "duplicate"
	SyncOutcomeConflict  SyncOutcome = "conflict"
)

const (
	SyncReasonOutOfOrder         = "out_of_order"
	SyncReasonVersionConflict    = "version_conflict"
	SyncReasonInvalidPayload     = "invalid_payload"
	SyncReasonInvalidTransition  = "invalid_transition"
	SyncReasonNotFound           = "not_found"
	SyncReasonUnsupportedAggType = "unsupported_aggregate_type"
	SyncReasonUnsupportedEvtType = "unsupported_event_type"
)

type SyncEventResult struct {
	EventID         string      `json:"event_id"`
	Seq             int64       `json:"seq"`
	Outcome         SyncOutcome `json:"outcome"`
	Reason          string      `json:"reason,omitempty"`
	ExpectedVersion *int        `json:"expected_version,omitempty"`
	ReceivedVersion *int        `json:"received_version,omitempty"`
}

type SyncBatchResult struct {
	EdgeID         string            `json:"edge_id"`
	Results        []SyncEventResult `json:"results"`
	LastAppliedSeq int64             `json:"last_applied_seq"`
}

type SyncStatus struct {
	EdgeID         string    `json:"edge_id"`
	LastAppliedSeq int64     `json:"last_applied_seq"`
	ServerTime     time.Time `json:"server_time"`
}

// SyncService принимает батчи событий от edge-станций и применяет их
// к агрегатам через те же переходы, что и локальный путь. Каждое
// событие коммитится отдельно: конфликт одного не откатывает соседей.
type SyncService interface {
	ApplyCommands(ctx context.Context, edgeID string, events []InboundEvent) (*SyncBatchResult, error)
	GetStatus(ctx context.Context, edgeID string) (*SyncStatus, error)
}

type syncService struct {
	tx       repositories.Transactor
	syncRepo repositories.SyncRepository
	engine   *progressionEngine
	notifier Notifier
	logger   *slog.Logger
}

func NewSyncService(
	tx repositories.Transactor,
	syncRepo repositories.SyncRepository,
	bracketRepo repositories.BracketRepository,
	matchRepo repositories.MatchRepository,
	notifier Notifier,
	logger *slog.Logger,
) SyncService {
	return &syncService{
		tx:       tx,
		syncRepo: syncRepo,
		engine:   newProgressionEngine(bracketRepo, matchRepo, logger),
		notifier: notifier,
		logger:   logger,
	}
}

// syncConflict — отказ уровня протокола: кладётся в ответ батча,
// а не возвращается клиенту как ошибка запроса.
type syncConflict struct {
	reason   string
	expected *int
	received *int
}

func (c *syncConflict) Error() string { return c.reason }

func (s *syncService) GetStatus(ctx context.Context, edgeID string) (*SyncStatus, error) {
	state, err := s.syncRepo.EnsureEdgeState(ctx, nil, edgeID)
	if err != nil {
		return nil, err
	}
	return &SyncStatus{
		EdgeID:         state.EdgeID,
		LastAppliedSeq: state.LastAppliedSeq,
		ServerTime:     time.Now().UTC(),
	}, nil
}

func (s *syncService) ApplyCommands(ctx context.Context, edgeID string, events []InboundEvent) (*SyncBatchResult, error) {
	state, err := s.syncRepo.EnsureEdgeState(ctx, nil, edgeID)
	if err != nil {
		return nil, err
	}

	result := &SyncBatchResult{
		EdgeID:  edgeID,
		Results: make([]SyncEventResult, 0, len(events)),
	}
	changed := make(map[int]struct{})

	for i := range events {
		ev := &events[i]
		outcome, err := s.processEvent(ctx, state, ev, changed)
		if err != nil {
			return nil, err
		}
		result.Results = append(result.Results, outcome)
	}
	result.LastAppliedSeq = state.LastAppliedSeq

	for bracketID := range changed {
		s.notifier.BracketChanged(bracketID)
	}
	return result, nil
}

// processEvent проводит одно событие через журнал, проверку порядка и
// применение. Инфраструктурные ошибки возвращаются как err и обрывают
// батч; протокольные отказы уходят в результат события.
func (s *syncService) processEvent(ctx context.Context, state *models.SyncEdgeState, ev *InboundEvent, changed map[int]struct{}) (SyncEventResult, error) {
	result := SyncEventResult{EventID: ev.EventID, Seq: ev.Seq}

	row, err := s.syncRepo.GetEvent(ctx, nil, state.EdgeID, ev.Seq)
	switch {
	case err == nil:
		if row.Applied {
			result.Outcome = SyncOutcomeDuplicate
			return result, nil
		}
		// Строка есть, но событие не применилось (out_of_order,
		// конфликт): это повторная попытка, проводим заново.
	case errors.Is(err, repositories.ErrSyncEventNotFound):
		row = &models.SyncInboxEvent{
			EventID: ev.EventID,
			EdgeID:  state.EdgeID,
			Seq:     ev.Seq,
		}
		if insertErr := s.syncRepo.InsertEvent(ctx, nil, row); insertErr != nil {
			if errors.Is(insertErr, repositories.ErrSyncEventConflict) {
				// Гонка с параллельным батчем той же станции.
				result.Outcome = SyncOutcomeDuplicate
				return result, nil
			}
			return result, insertErr
		}
	default:
		return result, err
	}

	if ev.Seq <= state.LastAppliedSeq {
		// Строка свежая или осталась без исхода после сбоя между
		// коммитом и записью исхода: фиксируем повтор в журнале.
		result.Outcome = SyncOutcomeDuplicate
		return result, s.recordOutcome(ctx, row.ID, false, "duplicate")
	}
	if ev.Seq != state.LastAppliedSeq+1 {
		result.Outcome = SyncOutcomeConflict
		result.Reason = SyncReasonOutOfOrder
		return result, s.recordOutcome(ctx, row.ID, false, SyncReasonOutOfOrder)
	}

	var bracketID int
	applyErr := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		id, err := s.apply(ctx, exec, ev)
		if err != nil {
			return err
		}
		bracketID = id
		return s.syncRepo.AdvanceEdgeSeq(ctx, exec, state.EdgeID, ev.Seq)
	})
	if applyErr == nil {
		state.LastAppliedSeq = ev.Seq
		changed[bracketID] = struct{}{}
		result.Outcome = SyncOutcomeAccepted
		return result, s.recordOutcome(ctx, row.ID, true, "")
	}

	var conflict *syncConflict
	switch {
	case errors.As(applyErr, &conflict):
		result.Reason = conflict.reason
		result.ExpectedVersion = conflict.expected
		result.ReceivedVersion = conflict.received
	case errors.Is(applyErr, ErrMatchNotFound), errors.Is(applyErr, ErrBracketNotFound):
		result.Reason = SyncReasonNotFound
	case errors.Is(applyErr, ErrMatchAlreadyStarted),
		errors.Is(applyErr, ErrMatchAlreadyFinished),
		errors.Is(applyErr, ErrMatchNotStarted),
		errors.Is(applyErr, ErrMatchSlotsNotFilled),
		errors.Is(applyErr, ErrMatchWinnerRequired),
		errors.Is(applyErr, ErrMatchScoresRequired),
		errors.Is(applyErr, ErrMatchWinnerUnknown),
		errors.Is(applyErr, ErrMatchStatusInvalid):
		result.Reason = SyncReasonInvalidTransition
	default:
		return result, applyErr
	}
	result.Outcome = SyncOutcomeConflict
	s.logger.Info("sync event rejected",
		slog.String("edge_id", state.EdgeID),
		slog.Int64("seq", ev.Seq),
		slog.String("reason", result.Reason))
	return result, s.recordOutcome(ctx, row.ID, false, applyErr.Error())
}

func (s *syncService) recordOutcome(ctx context.Context, rowID int, applied bool, errText string) error {
	var errPtr *string
	if errText != "" {
		errPtr = &errText
	}
	return s.syncRepo.UpdateEventOutcome(ctx, nil, rowID, applied, errPtr)
}

// apply выполняет само событие внутри транзакции и возвращает id
// затронутой сетки. Версия сетки резервируется здесь же: событие с
// aggregate_version V применяется только поверх версии V-1 и
// оставляет сетку ровно на версии V.
func (s *syncService) apply(ctx context.Context, exec repositories.SQLExecutor, ev *InboundEvent) (int, error) {
	switch ev.AggregateType {
	case "match":
		return s.applyMatchEvent(ctx, exec, ev)
	case "bracket":
		return s.applyBracketEvent(ctx, exec, ev)
	default:
		return 0, &syncConflict{reason: SyncReasonUnsupportedAggType}
	}
}

func (s *syncService) applyMatchEvent(ctx context.Context, exec repositories.SQLExecutor, ev *InboundEvent) (int, error) {
	slot, err := s.engine.bracketRepo.GetSlotByMatchID(ctx, exec, ev.AggregateID)
	if err != nil {
		if errors.Is(err, repositories.ErrBracketSlotNotFound) {
			return 0, ErrMatchNotFound
		}
		return 0, err
	}
	bracket, err := s.engine.bracketRepo.GetByID(ctx, exec, slot.BracketID)
	if err != nil {
		return 0, err
	}
	if err := s.reserveVersion(ctx, exec, bracket, ev.AggregateVersion); err != nil {
		return 0, err
	}

	occurred := ev.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	match := slot.Match

	switch ev.EventType {
	case "match.started":
		err = s.engine.start(ctx, exec, bracket, match, occurred)
		if errors.Is(err, ErrMatchAlreadyStarted) {
			err = nil // повтор после потерянного ack
		}
	case "match.score_updated":
		var p struct {
			ScoreAthlete1 *int `json:"score_athlete1"`
			ScoreAthlete2 *int `json:"score_athlete2"`
		}
		if jsonErr := json.Unmarshal(ev.Payload, &p); jsonErr != nil {
			return 0, &syncConflict{reason: SyncReasonInvalidPayload}
		}
		err = s.engine.updateScores(ctx, exec, match, p.ScoreAthlete1, p.ScoreAthlete2)
	case "match.finished":
		var p FinishMatchInput
		if jsonErr := json.Unmarshal(ev.Payload, &p); jsonErr != nil {
			return 0, &syncConflict{reason: SyncReasonInvalidPayload}
		}
		if match.Status == models.MatchStatusFinished &&
			p.WinnerID != nil && match.WinnerID != nil && *p.WinnerID == *match.WinnerID {
			err = nil // тот же исход уже записан
		} else {
			err = s.engine.finish(ctx, exec, bracket, slot, p, occurred)
		}
	case "match.status_updated":
		var p struct {
			Status models.MatchStatus `json:"status"`
		}
		if jsonErr := json.Unmarshal(ev.Payload, &p); jsonErr != nil {
			return 0, &syncConflict{reason: SyncReasonInvalidPayload}
		}
		alreadyThere := match.Status == p.Status
		err = s.engine.updateStatus(ctx, exec, bracket, match, p.Status, occurred)
		if alreadyThere && (errors.Is(err, ErrMatchAlreadyStarted) || errors.Is(err, ErrMatchAlreadyFinished)) {
			err = nil
		}
	default:
		return 0, &syncConflict{reason: SyncReasonUnsupportedEvtType}
	}
	if err != nil {
		return 0, err
	}
	return bracket.ID, nil
}

func (s *syncService) applyBracketEvent(ctx context.Context, exec repositories.SQLExecutor, ev *InboundEvent) (int, error) {
	bracket, err := s.engine.bracketRepo.GetByID(ctx, exec, ev.AggregateID)
	if err != nil {
		if errors.Is(err, repositories.ErrBracketNotFound) {
			return 0, ErrBracketNotFound
		}
		return 0, err
	}
	if err := s.reserveVersion(ctx, exec, bracket, ev.AggregateVersion); err != nil {
		return 0, err
	}

	switch ev.EventType {
	case "bracket.structure_rebuilt":
		if err := s.rebuildStructure(ctx, exec, bracket, ev.Payload); err != nil {
			return 0, err
		}
	default:
		return 0, &syncConflict{reason: SyncReasonUnsupportedEvtType}
	}
	return bracket.ID, nil
}

// reserveVersion — оптимистическая проверка: событие должно быть
// следующим по версии сетки, иначе станция работает со stale-копией.
func (s *syncService) reserveVersion(ctx context.Context, exec repositories.SQLExecutor, bracket *models.Bracket, eventVersion int) error {
	err := s.engine.bracketRepo.BumpVersion(ctx, exec, bracket.ID, eventVersion-1)
	if err == nil {
		bracket.Version = eventVersion
		return nil
	}
	if errors.Is(err, repositories.ErrBracketVersionConflict) {
		return &syncConflict{
			reason:   SyncReasonVersionConflict,
			expected: intPtr(bracket.Version + 1),
			received: intPtr(eventVersion),
		}
	}
	return err
}

type rebuildParticipant struct {
	AthleteID *int `json:"athlete_id"`
	Seed      int  `json:"seed"`
}

type rebuildMatch struct {
	Stage         models.MatchStage     `json:"stage"`
	RoundNumber   int                   `json:"round_number"`
	Position      int                   `json:"position"`
	RepechageSide *models.RepechageSide `json:"repechage_side"`
	RepechageStep *int                  `json:"repechage_step"`
	RoundType     string                `json:"round_type"`
	Status        models.MatchStatus    `json:"status"`
	Athlete1ID    *int                  `json:"athlete1_id"`
	Athlete2ID    *int                  `json:"athlete2_id"`
	WinnerID      *int                  `json:"winner_id"`
	ScoreAthlete1 *int                  `json:"score_athlete1"`
	ScoreAthlete2 *int                  `json:"score_athlete2"`
	StartedAt     *time.Time            `json:"started_at"`
	EndedAt       *time.Time            `json:"ended_at"`
}

type rebuildSnapshot struct {
	Status       models.BracketStatus `json:"status"`
	State        *models.BracketState `json:"state"`
	Participants []rebuildParticipant `json:"participants"`
	Matches      []rebuildMatch       `json:"matches"`
}

// rebuildStructure целиком замещает участников и дерево сетки снимком
// от станции: delete-then-recreate в одной транзакции. Связи
// next_match_id восстанавливаются из координат (stage, side, round,
// position), как их изначально раскладывает генератор.
func (s *syncService) rebuildStructure(ctx context.Context, exec repositories.SQLExecutor, bracket *models.Bracket, payload json.RawMessage) error {
	var snap rebuildSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return &syncConflict{reason: SyncReasonInvalidPayload}
	}

	if err := s.engine.bracketRepo.DeleteStructure(ctx, exec, bracket.ID); err != nil {
		return err
	}
	for _, p := range snap.Participants {
		participant := &models.BracketParticipant{
			BracketID: bracket.ID,
			AthleteID: p.AthleteID,
			Seed:      p.Seed,
		}
		if err := s.engine.bracketRepo.CreateParticipant(ctx, exec, participant); err != nil {
			return err
		}
	}

	planned, err := planFromSnapshot(snap.Matches)
	if err != nil {
		return err
	}
	matchIDByKey, err := persistStructure(ctx, exec, s.engine.bracketRepo, s.engine.matchRepo, bracket.ID, planned)
	if err != nil {
		return err
	}

	// Генератор не хранит счёт и таймстемпы, снимок — хранит.
	for i := range snap.Matches {
		m := &snap.Matches[i]
		if m.Status == models.MatchStatusNotStarted &&
			m.ScoreAthlete1 == nil && m.ScoreAthlete2 == nil {
			continue
		}
		full := &models.Match{
			ID:            matchIDByKey[snapshotKey(m)],
			Athlete1ID:    m.Athlete1ID,
			Athlete2ID:    m.Athlete2ID,
			Status:        m.Status,
			WinnerID:      m.WinnerID,
			ScoreAthlete1: m.ScoreAthlete1,
			ScoreAthlete2: m.ScoreAthlete2,
			RoundType:     m.RoundType,
			StartedAt:     m.StartedAt,
			EndedAt:       m.EndedAt,
		}
		if err := s.engine.matchRepo.Update(ctx, exec, full); err != nil {
			return err
		}
	}

	state := deriveState(snap.Status)
	if snap.State != nil {
		state = *snap.State
	}
	if err := s.engine.bracketRepo.UpdateStatusState(ctx, exec, bracket.ID, snap.Status, state); err != nil {
		return err
	}
	bracket.Status = snap.Status
	bracket.State = state
	return nil
}

func snapshotKey(m *rebuildMatch) string {
	if m.Stage == models.StageRepechage && m.RepechageSide != nil && m.RepechageStep != nil {
		return fmt.Sprintf("REP-%s-S%d", *m.RepechageSide, *m.RepechageStep)
	}
	return fmt.Sprintf("R%dM%d", m.RoundNumber, m.Position)
}

// planFromSnapshot переводит снимок в план генератора, заново выводя
// связи продвижения из координат матчей.
func planFromSnapshot(matches []rebuildMatch) ([]*brackets.PlannedMatch, error) {
	keys := make(map[string]struct{}, len(matches))
	maxMainRound := 0
	for i := range matches {
		m := &matches[i]
		switch m.Stage {
		case models.StageMain:
			if m.RoundNumber > maxMainRound {
				maxMainRound = m.RoundNumber
			}
		case models.StageRepechage:
			if m.RepechageSide == nil || m.RepechageStep == nil {
				return nil, &syncConflict{reason: SyncReasonInvalidPayload}
			}
		default:
			return nil, &syncConflict{reason: SyncReasonInvalidPayload}
		}
		key := snapshotKey(m)
		if _, dup := keys[key]; dup {
			return nil, &syncConflict{reason: SyncReasonInvalidPayload}
		}
		keys[key] = struct{}{}
	}

	planned := make([]*brackets.PlannedMatch, 0, len(matches))
	for i := range matches {
		m := &matches[i]
		pm := &brackets.PlannedMatch{
			Key:           snapshotKey(m),
			Stage:         m.Stage,
			RoundNumber:   m.RoundNumber,
			Position:      m.Position,
			RoundType:     m.RoundType,
			Athlete1ID:    m.Athlete1ID,
			Athlete2ID:    m.Athlete2ID,
			Status:        m.Status,
			WinnerID:      m.WinnerID,
			RepechageSide: m.RepechageSide,
			RepechageStep: m.RepechageStep,
		}

		var nextKey string
		var nextSlot int
		if m.Stage == models.StageMain && m.RoundNumber < maxMainRound {
			nextKey = fmt.Sprintf("R%dM%d", m.RoundNumber+1, (m.Position+1)/2)
			nextSlot = 1
			if m.Position%2 == 0 {
				nextSlot = 2
			}
		} else if m.Stage == models.StageRepechage {
			nextKey = fmt.Sprintf("REP-%s-S%d", *m.RepechageSide, *m.RepechageStep+1)
			nextSlot = 2
		}
		if _, ok := keys[nextKey]; ok && nextKey != "" {
			pm.NextKey = &nextKey
			pm.NextSlot = &nextSlot
		}
		planned = append(planned, pm)
	}
	return planned, nil
}
