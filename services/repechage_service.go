package services

import (
	"context"
	"log/slog"
	"sort"

	"github.com/lyp1noff/champion-arena-sub000/brackets"
	"github.com/lyp1noff/champion-arena-sub000/models"
	"github.com/lyp1noff/champion-arena-sub000/repositories"
)

// maybeScheduleRepechage создаёт утешительную сетку, когда оба
// полуфинала завершены. В утешиловку попадают только проигравшие
// будущим финалистам; проигравший полуфинал входит сразу в матч за
// бронзу своей стороны. Повторный вызов ничего не делает.
func (e *progressionEngine) maybeScheduleRepechage(ctx context.Context, exec repositories.SQLExecutor, bracket *models.Bracket, slots []*models.BracketMatch) error {
	if len(repechageSlots(slots)) > 0 {
		return nil
	}
	rounds := totalMainRounds(slots)
	if rounds < 3 {
		// Для сеток глубиной 2 бронза разыгрывается без матчей:
		// оба проигравших полуфиналы получают третьи места.
		return nil
	}

	semis := semifinalSlots(slots)
	if len(semis) != 2 {
		return nil
	}
	for _, s := range semis {
		if s.Match == nil || s.Match.Status != models.MatchStatusFinished || s.Match.WinnerID == nil {
			return nil
		}
	}

	planned := make([]*brackets.PlannedMatch, 0, 4)
	for i, semi := range semis {
		side := models.RepechageSideA
		if i == 1 {
			side = models.RepechageSideB
		}
		finalistID := *semi.Match.WinnerID
		loserID := semi.Match.OpponentOf(finalistID)
		if loserID == nil {
			// Полуфинал-walkover: утешать некого.
			continue
		}
		seeds := repechageSeedsFor(slots, finalistID, rounds)
		planned = append(planned, brackets.PlanRepechage(side, *loserID, seeds)...)
	}
	if len(planned) == 0 {
		return nil
	}

	if _, err := persistStructure(ctx, exec, e.bracketRepo, e.matchRepo, bracket.ID, planned); err != nil {
		return err
	}
	e.logger.Info("repechage scheduled",
		slog.Int("bracket_id", bracket.ID), slog.Int("matches", len(planned)))
	return nil
}

// repechageSeedsFor собирает проигравших финалисту в раундах до
// полуфинала, самое свежее поражение первым.
func repechageSeedsFor(slots []*models.BracketMatch, finalistID, rounds int) []brackets.RepechageSeed {
	seeds := make([]brackets.RepechageSeed, 0, rounds-2)
	for _, s := range mainSlots(slots) {
		if s.RoundNumber > rounds-2 || s.Match == nil {
			continue
		}
		m := s.Match
		if m.Status != models.MatchStatusFinished || !m.HasAthlete(finalistID) {
			continue
		}
		loser := m.OpponentOf(finalistID)
		if loser == nil {
			continue // bye
		}
		seeds = append(seeds, brackets.RepechageSeed{AthleteID: *loser, LostInRound: s.RoundNumber})
	}
	sort.Slice(seeds, func(i, j int) bool { return seeds[i].LostInRound > seeds[j].LostInRound })
	return seeds
}

// resolvePlacements пересчитывает места из завершённых матчей. Пересчёт
// полный при каждом вызове, поэтому порядок прихода результатов не
// влияет на итог.
func (e *progressionEngine) resolvePlacements(ctx context.Context, exec repositories.SQLExecutor, bracket *models.Bracket, slots []*models.BracketMatch) error {
	var p1, p2, p3a, p3b *int

	if final := finalSlot(slots); final != nil && final.Match != nil &&
		final.Match.Status == models.MatchStatusFinished && final.Match.WinnerID != nil {
		p1 = final.Match.WinnerID
		p2 = final.Match.OpponentOf(*p1)
	}

	if totalMainRounds(slots) == 2 {
		for i, semi := range semifinalSlots(slots) {
			m := semi.Match
			if m == nil || m.Status != models.MatchStatusFinished || m.WinnerID == nil {
				continue
			}
			loser := m.OpponentOf(*m.WinnerID)
			if i == 0 {
				p3a = loser
			} else {
				p3b = loser
			}
		}
	} else {
		if bronze := bronzeSlot(slots, models.RepechageSideA); bronze != nil &&
			bronze.Match.Status == models.MatchStatusFinished {
			p3a = bronze.Match.WinnerID
		}
		if bronze := bronzeSlot(slots, models.RepechageSideB); bronze != nil &&
			bronze.Match.Status == models.MatchStatusFinished {
			p3b = bronze.Match.WinnerID
		}
	}

	if err := e.bracketRepo.UpdatePlacements(ctx, exec, bracket.ID, p1, p2, p3a, p3b); err != nil {
		return err
	}
	bracket.Place1AthleteID = p1
	bracket.Place2AthleteID = p2
	bracket.Place3AAthleteID = p3a
	bracket.Place3BAthleteID = p3b
	return nil
}
