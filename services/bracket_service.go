package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lyp1noff/champion-arena-sub000/brackets"
	"github.com/lyp1noff/champion-arena-sub000/models"
	"github.com/lyp1noff/champion-arena-sub000/repositories"
	"golang.org/x/sync/errgroup"
)

type BracketService interface {
	// BuildOrRegenerate строит структуру сетки заново из текущего
	// посева: снос старых матчей и создание новых — одна транзакция.
	BuildOrRegenerate(ctx context.Context, bracketID int) (*models.Bracket, error)
	GetBracketTree(ctx context.Context, bracketID int) (*models.Bracket, error)
}

type bracketService struct {
	tx          repositories.Transactor
	bracketRepo repositories.BracketRepository
	matchRepo   repositories.MatchRepository
	athleteRepo repositories.AthleteRepository
	notifier    Notifier
	logger      *slog.Logger
}

func NewBracketService(
	tx repositories.Transactor,
	bracketRepo repositories.BracketRepository,
	matchRepo repositories.MatchRepository,
	athleteRepo repositories.AthleteRepository,
	notifier Notifier,
	logger *slog.Logger,
) BracketService {
	return &bracketService{
		tx:          tx,
		bracketRepo: bracketRepo,
		matchRepo:   matchRepo,
		athleteRepo: athleteRepo,
		notifier:    notifier,
		logger:      logger,
	}
}

func (s *bracketService) BuildOrRegenerate(ctx context.Context, bracketID int) (*models.Bracket, error) {
	bracket, err := s.bracketRepo.GetByID(ctx, nil, bracketID)
	if err != nil {
		if errors.Is(err, repositories.ErrBracketNotFound) {
			return nil, ErrBracketNotFound
		}
		return nil, err
	}

	participants, err := s.bracketRepo.ListParticipants(ctx, nil, bracketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants for bracket %d: %w", bracketID, err)
	}

	seats := make([]brackets.Seat, 0, len(participants))
	for _, p := range participants {
		seats = append(seats, brackets.Seat{AthleteID: p.AthleteID, Seed: p.Seed})
	}

	var generator brackets.Generator
	switch bracket.Kind {
	case models.KindSingleElimination:
		generator = brackets.NewSingleEliminationGenerator()
	case models.KindRoundRobin:
		generator = brackets.NewRoundRobinGenerator()
	default:
		return nil, fmt.Errorf("%w: %s", ErrBracketKindUnsupported, bracket.Kind)
	}

	structure, err := generator.Generate(ctx, brackets.GenerateParams{Seats: seats})
	if err != nil {
		return nil, fmt.Errorf("failed to generate structure for bracket %d: %w", bracketID, err)
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		// Версия — точка сериализации: перестройка не должна
		// пересечься с продвижением по той же сетке.
		if err := s.bracketRepo.BumpVersion(ctx, exec, bracketID, bracket.Version); err != nil {
			if errors.Is(err, repositories.ErrBracketVersionConflict) {
				return ErrBracketVersionConflict
			}
			return err
		}
		if err := s.bracketRepo.DeleteStructure(ctx, exec, bracketID); err != nil {
			return err
		}
		for _, p := range participants {
			fresh := &models.BracketParticipant{
				BracketID: bracketID,
				AthleteID: p.AthleteID,
				Seed:      p.Seed,
			}
			if err := s.bracketRepo.CreateParticipant(ctx, exec, fresh); err != nil {
				return err
			}
		}
		if _, err := persistStructure(ctx, exec, s.bracketRepo, s.matchRepo, bracketID, structure.Matches); err != nil {
			return err
		}
		if err := s.bracketRepo.UpdatePlacements(ctx, exec, bracketID, nil, nil, nil, nil); err != nil {
			return err
		}
		return s.bracketRepo.UpdateStatusState(ctx, exec, bracketID, models.BracketStatusPending, models.BracketStateDraft)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("bracket structure regenerated",
		slog.Int("bracket_id", bracketID),
		slog.Int("matches", len(structure.Matches)),
		slog.Int("rounds", structure.Rounds))
	s.notifier.BracketChanged(bracketID)

	return s.GetBracketTree(ctx, bracketID)
}

func (s *bracketService) GetBracketTree(ctx context.Context, bracketID int) (*models.Bracket, error) {
	bracket, err := s.bracketRepo.GetByID(ctx, nil, bracketID)
	if err != nil {
		if errors.Is(err, repositories.ErrBracketNotFound) {
			return nil, ErrBracketNotFound
		}
		return nil, err
	}

	var (
		participants []*models.BracketParticipant
		slots        []*models.BracketMatch
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		participants, err = s.bracketRepo.ListParticipants(gCtx, nil, bracketID)
		return err
	})
	g.Go(func() error {
		var err error
		slots, err = s.bracketRepo.ListSlots(gCtx, nil, bracketID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load bracket %d tree: %w", bracketID, err)
	}

	athleteIDs := make([]int, 0, len(participants))
	for _, p := range participants {
		if p.AthleteID != nil {
			athleteIDs = append(athleteIDs, *p.AthleteID)
		}
	}
	athletes, err := s.athleteRepo.ListByIDs(ctx, nil, athleteIDs)
	if err != nil {
		// Имена — обогащение, без них дерево всё равно полное.
		s.logger.Warn("failed to load athletes for bracket",
			slog.Int("bracket_id", bracketID), slog.Any("error", err))
		athletes = map[int]*models.Athlete{}
	}

	bracket.Participants = make([]models.BracketParticipant, 0, len(participants))
	for _, p := range participants {
		if p.AthleteID != nil {
			p.Athlete = athletes[*p.AthleteID]
		}
		bracket.Participants = append(bracket.Participants, *p)
	}
	bracket.Matches = make([]models.BracketMatch, 0, len(slots))
	for _, slot := range slots {
		bracket.Matches = append(bracket.Matches, *slot)
	}
	return bracket, nil
}
