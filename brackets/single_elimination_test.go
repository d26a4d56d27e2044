package brackets

import (
	"context"
	"fmt"
	"testing"

	"github.com/lyp1noff/champion-arena-sub000/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seats(n int) []Seat {
	result := make([]Seat, 0, n)
	for i := 1; i <= n; i++ {
		id := i * 100
		result = append(result, Seat{AthleteID: &id, Seed: i})
	}
	return result
}

func generate(t *testing.T, n int) *Structure {
	t.Helper()
	structure, err := NewSingleEliminationGenerator().Generate(context.Background(), GenerateParams{Seats: seats(n)})
	require.NoError(t, err)
	return structure
}

func TestSingleEliminationMatchCount(t *testing.T) {
	testCases := []struct {
		participants  int
		expectMatches int
		expectRounds  int
	}{
		{participants: 1, expectMatches: 1, expectRounds: 1},
		{participants: 2, expectMatches: 1, expectRounds: 1},
		{participants: 3, expectMatches: 3, expectRounds: 2},
		{participants: 4, expectMatches: 3, expectRounds: 2},
		{participants: 5, expectMatches: 7, expectRounds: 3},
		{participants: 7, expectMatches: 7, expectRounds: 3},
		{participants: 8, expectMatches: 7, expectRounds: 3},
		{participants: 16, expectMatches: 15, expectRounds: 4},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%d participants", tc.participants), func(t *testing.T) {
			structure := generate(t, tc.participants)
			assert.Len(t, structure.Matches, tc.expectMatches)
			assert.Equal(t, tc.expectRounds, structure.Rounds)

			// Каждый следующий раунд вдвое меньше предыдущего.
			perRound := make(map[int]int)
			for _, m := range structure.Matches {
				perRound[m.RoundNumber]++
			}
			for r := 2; r <= structure.Rounds; r++ {
				assert.Equal(t, perRound[r-1]/2, perRound[r], "round %d", r)
			}
		})
	}
}

func TestSingleEliminationEmptySeats(t *testing.T) {
	structure, err := NewSingleEliminationGenerator().Generate(context.Background(), GenerateParams{})
	require.NoError(t, err)
	assert.Empty(t, structure.Matches)
}

func TestSingleEliminationRoundLabels(t *testing.T) {
	structure := generate(t, 16)

	labels := make(map[int]string)
	for _, m := range structure.Matches {
		labels[m.RoundNumber] = m.RoundType
	}
	assert.Equal(t, "round_1", labels[1])
	assert.Equal(t, models.RoundTypeQuarterfinal, labels[2])
	assert.Equal(t, models.RoundTypeSemifinal, labels[3])
	assert.Equal(t, models.RoundTypeFinal, labels[4])
}

func TestSingleEliminationLinks(t *testing.T) {
	structure := generate(t, 8)

	byKey := make(map[string]*PlannedMatch)
	for _, m := range structure.Matches {
		byKey[m.Key] = m
	}

	for _, m := range structure.Matches {
		if m.RoundNumber == structure.Rounds {
			assert.Nil(t, m.NextKey, "final must not link anywhere")
			continue
		}
		require.NotNil(t, m.NextKey, "match %s", m.Key)
		next, ok := byKey[*m.NextKey]
		require.True(t, ok, "match %s links to missing %s", m.Key, *m.NextKey)
		assert.Equal(t, m.RoundNumber+1, next.RoundNumber)
		assert.Equal(t, (m.Position+1)/2, next.Position)
		if m.Position%2 == 1 {
			assert.Equal(t, 1, *m.NextSlot)
		} else {
			assert.Equal(t, 2, *m.NextSlot)
		}
	}
}

func TestSingleEliminationByeSpreadAndWalkover(t *testing.T) {
	structure := generate(t, 5)

	var walkovers, real int
	for _, m := range structure.Matches {
		if m.RoundNumber != 1 {
			continue
		}
		if m.Athlete2ID == nil {
			walkovers++
			assert.Equal(t, models.MatchStatusFinished, m.Status)
			require.NotNil(t, m.WinnerID)
			assert.Equal(t, *m.Athlete1ID, *m.WinnerID)
		} else {
			real++
			assert.Equal(t, models.MatchStatusNotStarted, m.Status)
			assert.Nil(t, m.WinnerID)
		}
	}
	assert.Equal(t, 3, walkovers)
	assert.Equal(t, 1, real)

	// Победители walkover-матчей уже проведены во второй раунд.
	byKey := make(map[string]*PlannedMatch)
	for _, m := range structure.Matches {
		byKey[m.Key] = m
	}
	for _, m := range structure.Matches {
		if m.RoundNumber != 1 || m.WinnerID == nil {
			continue
		}
		next := byKey[*m.NextKey]
		if *m.NextSlot == 1 {
			require.NotNil(t, next.Athlete1ID)
			assert.Equal(t, *m.WinnerID, *next.Athlete1ID)
		} else {
			require.NotNil(t, next.Athlete2ID)
			assert.Equal(t, *m.WinnerID, *next.Athlete2ID)
		}
	}
}

func TestSingleEliminationDeterministic(t *testing.T) {
	first := generate(t, 7)
	second := generate(t, 7)

	require.Len(t, second.Matches, len(first.Matches))
	for i := range first.Matches {
		a, b := first.Matches[i], second.Matches[i]
		assert.Equal(t, a.Key, b.Key)
		assert.Equal(t, a.RoundNumber, b.RoundNumber)
		assert.Equal(t, a.Position, b.Position)
		assert.Equal(t, a.RoundType, b.RoundType)
		assert.Equal(t, a.Athlete1ID, b.Athlete1ID)
		assert.Equal(t, a.Athlete2ID, b.Athlete2ID)
	}
}
