package services

import (
	"context"
	"fmt"

	"github.com/lyp1noff/champion-arena-sub000/brackets"
	"github.com/lyp1noff/champion-arena-sub000/models"
	"github.com/lyp1noff/champion-arena-sub000/repositories"
)

func intPtr(v int) *int {
	return &v
}

// deriveState — правило вывода state из status, когда снапшот
// edge-станции не прислал state явно.
func deriveState(status models.BracketStatus) models.BracketState {
	switch status {
	case models.BracketStatusStarted:
		return models.BracketStateRunning
	case models.BracketStatusFinished:
		return models.BracketStateFinished
	default:
		return models.BracketStateDraft
	}
}

// persistStructure сохраняет спланированные генератором матчи:
// первый проход создаёт матчи и слоты, второй проставляет связи
// next_match_id/next_slot, когда у всех матчей уже есть настоящие id.
func persistStructure(
	ctx context.Context,
	exec repositories.SQLExecutor,
	bracketRepo repositories.BracketRepository,
	matchRepo repositories.MatchRepository,
	bracketID int,
	planned []*brackets.PlannedMatch,
) (map[string]int, error) {
	matchIDByKey := make(map[string]int, len(planned))
	slotIDByKey := make(map[string]int, len(planned))

	for _, pm := range planned {
		match := &models.Match{
			Athlete1ID: pm.Athlete1ID,
			Athlete2ID: pm.Athlete2ID,
			Status:     pm.Status,
			WinnerID:   pm.WinnerID,
			RoundType:  pm.RoundType,
		}
		if err := matchRepo.Create(ctx, exec, match); err != nil {
			return nil, fmt.Errorf("failed to create match %s: %w", pm.Key, err)
		}

		slot := &models.BracketMatch{
			BracketID:     bracketID,
			MatchID:       match.ID,
			RoundNumber:   pm.RoundNumber,
			Position:      pm.Position,
			Stage:         pm.Stage,
			RepechageSide: pm.RepechageSide,
			RepechageStep: pm.RepechageStep,
		}
		if err := bracketRepo.CreateSlot(ctx, exec, slot); err != nil {
			return nil, fmt.Errorf("failed to create slot %s: %w", pm.Key, err)
		}

		matchIDByKey[pm.Key] = match.ID
		slotIDByKey[pm.Key] = slot.ID
	}

	for _, pm := range planned {
		if pm.NextKey == nil {
			continue
		}
		nextMatchID, ok := matchIDByKey[*pm.NextKey]
		if !ok {
			return nil, fmt.Errorf("planned match %s links to unknown match %s", pm.Key, *pm.NextKey)
		}
		if err := bracketRepo.UpdateSlotLinks(ctx, exec, slotIDByKey[pm.Key], &nextMatchID, pm.NextSlot); err != nil {
			return nil, fmt.Errorf("failed to link match %s: %w", pm.Key, err)
		}
	}

	return matchIDByKey, nil
}

// --- Навигация по загруженным слотам ---

func mainSlots(slots []*models.BracketMatch) []*models.BracketMatch {
	result := make([]*models.BracketMatch, 0, len(slots))
	for _, s := range slots {
		if s.Stage == models.StageMain {
			result = append(result, s)
		}
	}
	return result
}

func repechageSlots(slots []*models.BracketMatch) []*models.BracketMatch {
	result := make([]*models.BracketMatch, 0)
	for _, s := range slots {
		if s.Stage == models.StageRepechage {
			result = append(result, s)
		}
	}
	return result
}

func totalMainRounds(slots []*models.BracketMatch) int {
	max := 0
	for _, s := range mainSlots(slots) {
		if s.RoundNumber > max {
			max = s.RoundNumber
		}
	}
	return max
}

// semifinalSlots возвращает оба полуфинала в порядке позиций.
// Для сеток глубиной 1 (два участника) полуфиналов нет.
func semifinalSlots(slots []*models.BracketMatch) []*models.BracketMatch {
	rounds := totalMainRounds(slots)
	if rounds < 2 {
		return nil
	}
	result := make([]*models.BracketMatch, 0, 2)
	for _, s := range mainSlots(slots) {
		if s.RoundNumber == rounds-1 {
			result = append(result, s)
		}
	}
	return result
}

func finalSlot(slots []*models.BracketMatch) *models.BracketMatch {
	rounds := totalMainRounds(slots)
	for _, s := range mainSlots(slots) {
		if s.RoundNumber == rounds && s.Position == 1 {
			return s
		}
	}
	return nil
}

func slotByMatchID(slots []*models.BracketMatch, matchID int) *models.BracketMatch {
	for _, s := range slots {
		if s.MatchID == matchID {
			return s
		}
	}
	return nil
}

func bronzeSlot(slots []*models.BracketMatch, side models.RepechageSide) *models.BracketMatch {
	for _, s := range repechageSlots(slots) {
		if s.RepechageSide != nil && *s.RepechageSide == side && s.Match != nil &&
			s.Match.RoundType == models.RoundTypeBronze {
			return s
		}
	}
	return nil
}
