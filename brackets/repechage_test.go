package brackets

import (
	"context"
	"testing"

	"github.com/lyp1noff/champion-arena-sub000/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanRepechageNoSeeds(t *testing.T) {
	assert.Nil(t, PlanRepechage(models.RepechageSideA, 1, nil))
}

func TestPlanRepechageSingleSeed(t *testing.T) {
	matches := PlanRepechage(models.RepechageSideA, 10, []RepechageSeed{
		{AthleteID: 20, LostInRound: 1},
	})

	require.Len(t, matches, 1)
	bronze := matches[0]
	assert.Equal(t, models.RoundTypeBronze, bronze.RoundType)
	assert.Equal(t, models.StageRepechage, bronze.Stage)
	assert.Equal(t, 10, *bronze.Athlete1ID)
	assert.Equal(t, 20, *bronze.Athlete2ID)
	assert.Nil(t, bronze.NextKey)
	assert.Equal(t, models.RepechageSideA, *bronze.RepechageSide)
	assert.Equal(t, 1, *bronze.RepechageStep)
}

func TestPlanRepechageLadder(t *testing.T) {
	// Три проигравших финалисту до полуфинала: двое встречаются на
	// первой ступени, третий входит на второй, бронза замыкает.
	matches := PlanRepechage(models.RepechageSideB, 10, []RepechageSeed{
		{AthleteID: 30, LostInRound: 3},
		{AthleteID: 20, LostInRound: 2},
		{AthleteID: 40, LostInRound: 1},
	})

	require.Len(t, matches, 3)

	first := matches[0]
	assert.Equal(t, 30, *first.Athlete1ID)
	assert.Equal(t, 20, *first.Athlete2ID)
	assert.Equal(t, models.RoundTypeRepechage, first.RoundType)
	require.NotNil(t, first.NextKey)
	assert.Equal(t, matches[1].Key, *first.NextKey)
	assert.Equal(t, 2, *first.NextSlot)

	second := matches[1]
	assert.Equal(t, 40, *second.Athlete1ID)
	assert.Nil(t, second.Athlete2ID, "второй слот ждёт победителя первой ступени")
	assert.Equal(t, matches[2].Key, *second.NextKey)

	bronze := matches[2]
	assert.Equal(t, models.RoundTypeBronze, bronze.RoundType)
	assert.Equal(t, 10, *bronze.Athlete1ID)
	assert.Nil(t, bronze.Athlete2ID)
	assert.Nil(t, bronze.NextKey)

	for i, m := range matches {
		assert.Equal(t, i+1, *m.RepechageStep)
		assert.Equal(t, models.RepechageSideB, *m.RepechageSide)
	}
}

func TestRoundRobinAllPairs(t *testing.T) {
	structure, err := NewRoundRobinGenerator().Generate(context.Background(), GenerateParams{Seats: seats(4)})
	require.NoError(t, err)

	require.Len(t, structure.Matches, 6) // C(4,2)

	type pair struct{ a, b int }
	seen := make(map[pair]bool)
	for _, m := range structure.Matches {
		require.NotNil(t, m.Athlete1ID)
		require.NotNil(t, m.Athlete2ID)
		p := pair{*m.Athlete1ID, *m.Athlete2ID}
		assert.False(t, seen[p], "пара встретилась дважды")
		seen[p] = true
		assert.Nil(t, m.NextKey)
		assert.Equal(t, models.MatchStatusNotStarted, m.Status)
	}
}
