package brackets

import (
	"context"
	"fmt"

	"github.com/lyp1noff/champion-arena-sub000/models"
)

type RoundRobinGenerator struct{}

func NewRoundRobinGenerator() Generator {
	return &RoundRobinGenerator{}
}

func (g *RoundRobinGenerator) Name() string {
	return "RoundRobin"
}

// Generate создаёт плоский список матчей каждый-с-каждым, по одной
// встрече на пару. Дерева, утешительной сетки и мест здесь нет.
func (g *RoundRobinGenerator) Generate(ctx context.Context, params GenerateParams) (*Structure, error) {
	athletes := make([]int, 0, len(params.Seats))
	for _, seat := range params.Seats {
		if seat.AthleteID != nil {
			athletes = append(athletes, *seat.AthleteID)
		}
	}

	matches := make([]*PlannedMatch, 0)
	position := 0
	for i := 0; i < len(athletes); i++ {
		for j := i + 1; j < len(athletes); j++ {
			position++
			a1 := athletes[i]
			a2 := athletes[j]
			matches = append(matches, &PlannedMatch{
				Key:         fmt.Sprintf("RR%d", position),
				Stage:       models.StageMain,
				RoundNumber: 1,
				Position:    position,
				Athlete1ID:  &a1,
				Athlete2ID:  &a2,
				Status:      models.MatchStatusNotStarted,
			})
		}
	}

	rounds := 0
	if len(matches) > 0 {
		rounds = 1
	}
	return &Structure{Matches: matches, Rounds: rounds}, nil
}
