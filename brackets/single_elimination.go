package brackets

import (
	"context"
	"fmt"

	"github.com/lyp1noff/champion-arena-sub000/models"
)

type SingleEliminationGenerator struct {
}

func NewSingleEliminationGenerator() Generator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) Name() string {
	return "SingleElimination"
}

// Generate строит полное дерево single elimination. Размер сетки
// округляется вверх до степени двойки, byes распределяются равномерно
// по первому раунду, walkover-матчи завершаются сразу, их победители
// проводятся во второй раунд в рамках той же генерации.
func (g *SingleEliminationGenerator) Generate(ctx context.Context, params GenerateParams) (*Structure, error) {
	athletes := make([]int, 0, len(params.Seats))
	for _, seat := range params.Seats {
		if seat.AthleteID != nil {
			athletes = append(athletes, *seat.AthleteID)
		}
	}
	n := len(athletes)

	// Пустая сетка — не ошибка: категория без участников остаётся пустой.
	if n == 0 {
		return &Structure{Matches: []*PlannedMatch{}}, nil
	}

	size := 2
	rounds := 1
	for size < n {
		size *= 2
		rounds++
	}
	firstRoundMatches := size / 2
	byes := size - n

	// Равномерное распределение byes по матчам первого раунда,
	// чтобы ни одна ветка не получила два прохода подряд.
	byeAt := make([]bool, firstRoundMatches)
	for i := 0; i < firstRoundMatches; i++ {
		if (i*byes)/firstRoundMatches != ((i+1)*byes)/firstRoundMatches {
			byeAt[i] = true
		}
	}

	byKey := make(map[string]*PlannedMatch, size-1)
	matches := make([]*PlannedMatch, 0, size-1)

	addMatch := func(round, position int) *PlannedMatch {
		pm := &PlannedMatch{
			Key:         mainMatchKey(round, position),
			Stage:       models.StageMain,
			RoundNumber: round,
			Position:    position,
			RoundType:   roundLabel(round, rounds),
			Status:      models.MatchStatusNotStarted,
		}
		if round < rounds {
			nextKey := mainMatchKey(round+1, (position+1)/2)
			slot := 2
			if position%2 == 1 {
				slot = 1
			}
			pm.NextKey = &nextKey
			pm.NextSlot = &slot
		}
		byKey[pm.Key] = pm
		matches = append(matches, pm)
		return pm
	}

	next := 0
	takeAthlete := func() *int {
		id := athletes[next]
		next++
		return &id
	}

	for p := 1; p <= firstRoundMatches; p++ {
		pm := addMatch(1, p)
		pm.Athlete1ID = takeAthlete()
		if byeAt[p-1] {
			// Walkover: единственный участник завершает матч победителем,
			// без счёта.
			pm.Status = models.MatchStatusFinished
			pm.WinnerID = pm.Athlete1ID
		} else {
			pm.Athlete2ID = takeAthlete()
		}
	}
	if next != n {
		return nil, fmt.Errorf("seeding mismatch: placed %d of %d athletes", next, n)
	}

	for r := 2; r <= rounds; r++ {
		matchesInRound := size >> uint(r)
		for p := 1; p <= matchesInRound; p++ {
			addMatch(r, p)
		}
	}

	// Проводим победителей walkover-матчей в следующий раунд, чтобы
	// дерево нигде не осталось в промежуточном состоянии.
	for _, pm := range matches {
		if pm.Status != models.MatchStatusFinished || pm.WinnerID == nil || pm.NextKey == nil {
			continue
		}
		target, ok := byKey[*pm.NextKey]
		if !ok {
			return nil, fmt.Errorf("broken link: match %s points to missing %s", pm.Key, *pm.NextKey)
		}
		if pm.NextSlot != nil && *pm.NextSlot == 2 {
			target.Athlete2ID = pm.WinnerID
		} else {
			target.Athlete1ID = pm.WinnerID
		}
	}

	return &Structure{Matches: matches, Rounds: rounds}, nil
}

func mainMatchKey(round, position int) string {
	return fmt.Sprintf("R%dM%d", round, position)
}
