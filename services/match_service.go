package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lyp1noff/champion-arena-sub000/models"
	"github.com/lyp1noff/champion-arena-sub000/repositories"
)

// FinishMatchInput — результат поединка от судейской станции или
// локального администратора.
type FinishMatchInput struct {
	WinnerID      *int `json:"winner_id"`
	ScoreAthlete1 *int `json:"score_athlete1"`
	ScoreAthlete2 *int `json:"score_athlete2"`
}

// MatchService — локальный путь тех же переходов, которые применяет
// и путь синхронизации: оба обязаны давать одинаковый результат.
// expectedVersion == nil означает "текущая версия сетки".
type MatchService interface {
	GetMatch(ctx context.Context, matchID int) (*models.Match, error)
	StartMatch(ctx context.Context, matchID int, expectedVersion *int) (*models.Match, error)
	UpdateMatchScores(ctx context.Context, matchID int, score1, score2 *int, expectedVersion *int) (*models.Match, error)
	FinishMatch(ctx context.Context, matchID int, input FinishMatchInput, expectedVersion *int) (*models.Match, error)
	UpdateMatchStatus(ctx context.Context, matchID int, status models.MatchStatus, expectedVersion *int) (*models.Match, error)
}

type matchService struct {
	tx       repositories.Transactor
	engine   *progressionEngine
	archiver ArchiveService
	notifier Notifier
	logger   *slog.Logger
}

func NewMatchService(
	tx repositories.Transactor,
	bracketRepo repositories.BracketRepository,
	matchRepo repositories.MatchRepository,
	archiver ArchiveService,
	notifier Notifier,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		tx:       tx,
		engine:   newProgressionEngine(bracketRepo, matchRepo, logger),
		archiver: archiver,
		notifier: notifier,
		logger:   logger,
	}
}

func (s *matchService) GetMatch(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.engine.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return match, nil
}

// mutate оборачивает один переход: слот → сетка → CAS версии → переход.
func (s *matchService) mutate(
	ctx context.Context,
	matchID int,
	expectedVersion *int,
	transition func(exec repositories.SQLExecutor, bracket *models.Bracket, slot *models.BracketMatch) error,
) (*models.Match, error) {
	var mutated *models.Bracket
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		slot, err := s.engine.bracketRepo.GetSlotByMatchID(ctx, exec, matchID)
		if err != nil {
			if errors.Is(err, repositories.ErrBracketSlotNotFound) {
				return ErrMatchNotFound
			}
			return err
		}
		bracket, err := s.engine.bracketRepo.GetByID(ctx, exec, slot.BracketID)
		if err != nil {
			return err
		}
		mutated = bracket

		expected := bracket.Version
		if expectedVersion != nil {
			expected = *expectedVersion
		}
		if err := s.engine.bracketRepo.BumpVersion(ctx, exec, bracket.ID, expected); err != nil {
			if errors.Is(err, repositories.ErrBracketVersionConflict) {
				return ErrBracketVersionConflict
			}
			return err
		}
		return transition(exec, bracket, slot)
	})
	if err != nil {
		return nil, err
	}

	// Архив — best effort и только после коммита, чтобы снимок видел
	// уже зафиксированное состояние.
	if mutated.Status == models.BracketStatusFinished && s.archiver != nil {
		if archiveErr := s.archiver.ArchiveBracket(ctx, mutated.ID); archiveErr != nil {
			s.logger.Warn("failed to archive finished bracket",
				slog.Int("bracket_id", mutated.ID), slog.Any("error", archiveErr))
		}
	}
	s.notifier.BracketChanged(mutated.ID)
	return s.engine.matchRepo.GetByID(ctx, nil, matchID)
}

func (s *matchService) StartMatch(ctx context.Context, matchID int, expectedVersion *int) (*models.Match, error) {
	return s.mutate(ctx, matchID, expectedVersion, func(exec repositories.SQLExecutor, bracket *models.Bracket, slot *models.BracketMatch) error {
		return s.engine.start(ctx, exec, bracket, slot.Match, time.Now().UTC())
	})
}

func (s *matchService) UpdateMatchScores(ctx context.Context, matchID int, score1, score2 *int, expectedVersion *int) (*models.Match, error) {
	return s.mutate(ctx, matchID, expectedVersion, func(exec repositories.SQLExecutor, bracket *models.Bracket, slot *models.BracketMatch) error {
		return s.engine.updateScores(ctx, exec, slot.Match, score1, score2)
	})
}

func (s *matchService) FinishMatch(ctx context.Context, matchID int, input FinishMatchInput, expectedVersion *int) (*models.Match, error) {
	return s.mutate(ctx, matchID, expectedVersion, func(exec repositories.SQLExecutor, bracket *models.Bracket, slot *models.BracketMatch) error {
		return s.engine.finish(ctx, exec, bracket, slot, input, time.Now().UTC())
	})
}

func (s *matchService) UpdateMatchStatus(ctx context.Context, matchID int, status models.MatchStatus, expectedVersion *int) (*models.Match, error) {
	return s.mutate(ctx, matchID, expectedVersion, func(exec repositories.SQLExecutor, bracket *models.Bracket, slot *models.BracketMatch) error {
		return s.engine.updateStatus(ctx, exec, bracket, slot.Match, status, time.Now().UTC())
	})
}

// --- ProgressionEngine ---

// progressionEngine — машина состояний матча и продвижение победителей.
// Все методы работают внутри транзакции вызывающего; версию сетки
// вызывающий уже зарезервировал через BumpVersion.
type progressionEngine struct {
	bracketRepo repositories.BracketRepository
	matchRepo   repositories.MatchRepository
	logger      *slog.Logger
}

func newProgressionEngine(
	bracketRepo repositories.BracketRepository,
	matchRepo repositories.MatchRepository,
	logger *slog.Logger,
) *progressionEngine {
	return &progressionEngine{
		bracketRepo: bracketRepo,
		matchRepo:   matchRepo,
		logger:      logger,
	}
}

func (e *progressionEngine) start(ctx context.Context, exec repositories.SQLExecutor, bracket *models.Bracket, match *models.Match, now time.Time) error {
	switch match.Status {
	case models.MatchStatusStarted:
		return ErrMatchAlreadyStarted
	case models.MatchStatusFinished:
		return ErrMatchAlreadyFinished
	}
	if match.Athlete1ID == nil || match.Athlete2ID == nil {
		return ErrMatchSlotsNotFilled
	}

	match.Status = models.MatchStatusStarted
	match.ScoreAthlete1 = intPtr(0)
	match.ScoreAthlete2 = intPtr(0)
	match.StartedAt = &now
	if err := e.matchRepo.Update(ctx, exec, match); err != nil {
		return err
	}

	if bracket.Status == models.BracketStatusPending {
		return e.bracketRepo.UpdateStatusState(ctx, exec, bracket.ID, models.BracketStatusStarted, models.BracketStateRunning)
	}
	return nil
}

func (e *progressionEngine) updateScores(ctx context.Context, exec repositories.SQLExecutor, match *models.Match, score1, score2 *int) error {
	switch match.Status {
	case models.MatchStatusNotStarted:
		return ErrMatchNotStarted
	case models.MatchStatusFinished:
		return ErrMatchAlreadyFinished
	}

	// Частичное обновление: любая из сторон независимо.
	if score1 != nil {
		match.ScoreAthlete1 = score1
	}
	if score2 != nil {
		match.ScoreAthlete2 = score2
	}
	return e.matchRepo.Update(ctx, exec, match)
}

func (e *progressionEngine) finish(ctx context.Context, exec repositories.SQLExecutor, bracket *models.Bracket, slot *models.BracketMatch, input FinishMatchInput, now time.Time) error {
	match := slot.Match
	switch match.Status {
	case models.MatchStatusNotStarted:
		return ErrMatchNotStarted
	case models.MatchStatusFinished:
		return ErrMatchAlreadyFinished
	}
	if input.WinnerID == nil {
		return ErrMatchWinnerRequired
	}
	if input.ScoreAthlete1 == nil || input.ScoreAthlete2 == nil {
		return ErrMatchScoresRequired
	}
	if !match.HasAthlete(*input.WinnerID) {
		return ErrMatchWinnerUnknown
	}

	match.Status = models.MatchStatusFinished
	match.WinnerID = input.WinnerID
	match.ScoreAthlete1 = input.ScoreAthlete1
	match.ScoreAthlete2 = input.ScoreAthlete2
	match.EndedAt = &now
	if err := e.matchRepo.Update(ctx, exec, match); err != nil {
		return err
	}

	return e.afterFinish(ctx, exec, bracket, slot, *input.WinnerID)
}

// afterFinish — общий хвост завершения: продвижение победителя,
// планирование утешительной сетки, пересчёт мест и закрытие сетки.
func (e *progressionEngine) afterFinish(ctx context.Context, exec repositories.SQLExecutor, bracket *models.Bracket, slot *models.BracketMatch, winnerID int) error {
	slots, err := e.bracketRepo.ListSlots(ctx, exec, bracket.ID)
	if err != nil {
		return err
	}
	if err := e.advanceWinner(ctx, exec, slots, slot.MatchID, winnerID); err != nil {
		return err
	}

	if bracket.Kind == models.KindSingleElimination && slot.Stage == models.StageMain {
		if err := e.maybeScheduleRepechage(ctx, exec, bracket, slots); err != nil {
			return err
		}
		// Слоты могли пополниться утешительными матчами.
		slots, err = e.bracketRepo.ListSlots(ctx, exec, bracket.ID)
		if err != nil {
			return err
		}
	}

	if bracket.Kind == models.KindSingleElimination {
		if err := e.resolvePlacements(ctx, exec, bracket, slots); err != nil {
			return err
		}
	}
	return e.maybeFinishBracket(ctx, exec, bracket, slots)
}

// advanceWinner пишет победителя в слот следующего матча по связи,
// сохранённой при генерации. Если после этого следующий матч оказался
// walkover-ом (вторую сторону некому заполнить), он завершается и его
// победитель продвигается ещё на один уровень.
func (e *progressionEngine) advanceWinner(ctx context.Context, exec repositories.SQLExecutor, slots []*models.BracketMatch, matchID, winnerID int) error {
	slot := slotByMatchID(slots, matchID)
	if slot == nil || slot.NextMatchID == nil {
		return nil
	}

	next := slotByMatchID(slots, *slot.NextMatchID)
	if next == nil {
		return fmt.Errorf("match %d links to missing match %d", matchID, *slot.NextMatchID)
	}
	nextMatch := next.Match
	if nextMatch.Status == models.MatchStatusFinished {
		// Защита от гонки со stale-чтением: завершённый матч
		// переписывать нельзя.
		return fmt.Errorf("downstream match %d is already finished", nextMatch.ID)
	}

	targetSlot := 1
	if slot.NextSlot != nil {
		targetSlot = *slot.NextSlot
	}
	if targetSlot == 2 {
		nextMatch.Athlete2ID = &winnerID
	} else {
		nextMatch.Athlete1ID = &winnerID
	}
	if err := e.matchRepo.UpdateAthletes(ctx, exec, nextMatch.ID, nextMatch.Athlete1ID, nextMatch.Athlete2ID); err != nil {
		return err
	}

	// Walkover вниз по дереву: только если пустую сторону не питает
	// ни один незавершённый матч.
	var emptySide int
	if nextMatch.Athlete1ID == nil {
		emptySide = 1
	} else if nextMatch.Athlete2ID == nil {
		emptySide = 2
	} else {
		return nil
	}
	if hasPendingFeeder(slots, nextMatch.ID, emptySide) {
		return nil
	}

	nextMatch.Status = models.MatchStatusFinished
	nextMatch.WinnerID = &winnerID
	if err := e.matchRepo.Update(ctx, exec, nextMatch); err != nil {
		return err
	}
	return e.advanceWinner(ctx, exec, slots, nextMatch.ID, winnerID)
}

func hasPendingFeeder(slots []*models.BracketMatch, matchID, side int) bool {
	for _, s := range slots {
		if s.NextMatchID == nil || *s.NextMatchID != matchID {
			continue
		}
		feederSide := 1
		if s.NextSlot != nil {
			feederSide = *s.NextSlot
		}
		if feederSide != side {
			continue
		}
		if s.Match == nil || s.Match.Status != models.MatchStatusFinished {
			return true
		}
	}
	return false
}

// updateStatus обслуживает событие match.status_updated: переход к
// текущему статусу — no-op, not_started→started эквивалентен старту,
// started→not_started — откат судейской ошибки. Завершение через
// статус запрещено: для него нужен победитель.
func (e *progressionEngine) updateStatus(ctx context.Context, exec repositories.SQLExecutor, bracket *models.Bracket, match *models.Match, status models.MatchStatus, now time.Time) error {
	switch status {
	case models.MatchStatusNotStarted, models.MatchStatusStarted, models.MatchStatusFinished:
	default:
		return ErrMatchStatusInvalid
	}

	if match.Status == status {
		switch status {
		case models.MatchStatusStarted:
			return ErrMatchAlreadyStarted
		case models.MatchStatusFinished:
			return ErrMatchAlreadyFinished
		}
		return nil
	}

	switch {
	case match.Status == models.MatchStatusNotStarted && status == models.MatchStatusStarted:
		return e.start(ctx, exec, bracket, match, now)
	case match.Status == models.MatchStatusStarted && status == models.MatchStatusNotStarted:
		match.Status = models.MatchStatusNotStarted
		match.ScoreAthlete1 = nil
		match.ScoreAthlete2 = nil
		match.StartedAt = nil
		return e.matchRepo.Update(ctx, exec, match)
	case status == models.MatchStatusFinished:
		return ErrMatchWinnerRequired
	default:
		return ErrMatchAlreadyFinished
	}
}

// maybeFinishBracket закрывает сетку, когда все её матчи завершены.
func (e *progressionEngine) maybeFinishBracket(ctx context.Context, exec repositories.SQLExecutor, bracket *models.Bracket, slots []*models.BracketMatch) error {
	if bracket.Status == models.BracketStatusFinished || len(slots) == 0 {
		return nil
	}
	for _, s := range slots {
		if s.Match == nil || s.Match.Status != models.MatchStatusFinished {
			return nil
		}
	}
	if err := e.bracketRepo.UpdateStatusState(ctx, exec, bracket.ID, models.BracketStatusFinished, models.BracketStateFinished); err != nil {
		return err
	}
	bracket.Status = models.BracketStatusFinished
	bracket.State = models.BracketStateFinished
	return nil
}
