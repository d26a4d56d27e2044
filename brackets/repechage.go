package brackets

import (
	"fmt"

	"github.com/lyp1noff/champion-arena-sub000/models"
)

// RepechageSeed — атлет, проигравший будущему финалисту, и раунд,
// в котором он проиграл.
type RepechageSeed struct {
	AthleteID   int
	LostInRound int
}

// PlanRepechage строит одну ветку утешительной сетки в виде лестницы.
// seeds — проигравшие финалисту этой ветки в раундах до полуфинала,
// упорядоченные по убыванию раунда (самое свежее поражение первым).
// Каждая ступень сводит победителя предыдущей со следующим проигравшим;
// верхняя ступень — матч за бронзу: проигравший полуфинала против
// победителя лестницы. При единственном seed промежуточных ступеней нет
// и бронзовый матч засеивается напрямую.
//
// При пустом seeds ветка не строится: такой глубины не бывает у сеток
// из четырёх и менее участников, там третьи места раздаются без матчей.
func PlanRepechage(side models.RepechageSide, semifinalLoserID int, seeds []RepechageSeed) []*PlannedMatch {
	k := len(seeds)
	if k == 0 {
		return nil
	}

	sideCopy := side
	matches := make([]*PlannedMatch, 0, k)

	newStep := func(step int) *PlannedMatch {
		s := step
		pm := &PlannedMatch{
			Key:           repechageMatchKey(side, step),
			Stage:         models.StageRepechage,
			RoundNumber:   step,
			Position:      1,
			RoundType:     models.RoundTypeRepechage,
			Status:        models.MatchStatusNotStarted,
			RepechageSide: &sideCopy,
			RepechageStep: &s,
		}
		matches = append(matches, pm)
		return pm
	}

	if k == 1 {
		bronze := newStep(1)
		bronze.RoundType = models.RoundTypeBronze
		loser := semifinalLoserID
		seeded := seeds[0].AthleteID
		bronze.Athlete1ID = &loser
		bronze.Athlete2ID = &seeded
		return matches
	}

	first := newStep(1)
	a1 := seeds[0].AthleteID
	a2 := seeds[1].AthleteID
	first.Athlete1ID = &a1
	first.Athlete2ID = &a2

	for step := 2; step < k; step++ {
		pm := newStep(step)
		seeded := seeds[step].AthleteID
		pm.Athlete1ID = &seeded
	}

	bronze := newStep(k)
	bronze.RoundType = models.RoundTypeBronze
	loser := semifinalLoserID
	bronze.Athlete1ID = &loser

	// Победитель каждой ступени проходит во второй слот следующей.
	for i := 0; i < len(matches)-1; i++ {
		nextKey := matches[i+1].Key
		slot := 2
		matches[i].NextKey = &nextKey
		matches[i].NextSlot = &slot
	}

	return matches
}

func repechageMatchKey(side models.RepechageSide, step int) string {
	return fmt.Sprintf("REP-%s-S%d", side, step)
}
