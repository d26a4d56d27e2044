package services

import (
	"context"
	"testing"

	"github.com/lyp1noff/champion-arena-sub000/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store       *fakeStore
	bracketRepo *fakeBracketRepo
	matchRepo   *fakeMatchRepo
	syncRepo    *fakeSyncRepo

	brackets BracketService
	matches  MatchService
	sync     SyncService
}

func newTestEnv() *testEnv {
	store := newFakeStore()
	bracketRepo := &fakeBracketRepo{store: store}
	matchRepo := &fakeMatchRepo{store: store}
	athleteRepo := &fakeAthleteRepo{athletes: map[int]*models.Athlete{}}
	syncRepo := newFakeSyncRepo()
	logger := testLogger()

	return &testEnv{
		store:       store,
		bracketRepo: bracketRepo,
		matchRepo:   matchRepo,
		syncRepo:    syncRepo,
		brackets:    NewBracketService(fakeTx{}, bracketRepo, matchRepo, athleteRepo, NopNotifier{}, logger),
		matches:     NewMatchService(fakeTx{}, bracketRepo, matchRepo, nil, NopNotifier{}, logger),
		sync:        NewSyncService(fakeTx{}, syncRepo, bracketRepo, matchRepo, NopNotifier{}, logger),
	}
}

// seedBracket создаёт сетку с участниками 100, 200, ... и строит дерево.
func (e *testEnv) seedBracket(t *testing.T, bracketID, participants int) *models.Bracket {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, e.bracketRepo.Create(ctx, nil, &models.Bracket{
		ID:      bracketID,
		Kind:    models.KindSingleElimination,
		Status:  models.BracketStatusPending,
		State:   models.BracketStateDraft,
		Version: 1,
	}))
	for i := 1; i <= participants; i++ {
		athleteID := i * 100
		require.NoError(t, e.bracketRepo.CreateParticipant(ctx, nil, &models.BracketParticipant{
			BracketID: bracketID,
			AthleteID: &athleteID,
			Seed:      i,
		}))
	}

	bracket, err := e.brackets.BuildOrRegenerate(ctx, bracketID)
	require.NoError(t, err)
	return bracket
}

func (e *testEnv) slot(t *testing.T, bracketID int, stage models.MatchStage, round, position int) *models.BracketMatch {
	t.Helper()
	slots, err := e.bracketRepo.ListSlots(context.Background(), nil, bracketID)
	require.NoError(t, err)
	for _, s := range slots {
		if s.Stage == stage && s.RoundNumber == round && s.Position == position {
			return s
		}
	}
	t.Fatalf("slot not found: stage=%s round=%d position=%d", stage, round, position)
	return nil
}

func (e *testEnv) repechage(t *testing.T, bracketID int) []*models.BracketMatch {
	t.Helper()
	slots, err := e.bracketRepo.ListSlots(context.Background(), nil, bracketID)
	require.NoError(t, err)
	result := make([]*models.BracketMatch, 0)
	for _, s := range slots {
		if s.Stage == models.StageRepechage {
			result = append(result, s)
		}
	}
	return result
}

func (e *testEnv) repechageStep(t *testing.T, bracketID int, side models.RepechageSide, step int) *models.BracketMatch {
	t.Helper()
	for _, s := range e.repechage(t, bracketID) {
		if s.RepechageSide != nil && *s.RepechageSide == side &&
			s.RepechageStep != nil && *s.RepechageStep == step {
			return s
		}
	}
	t.Fatalf("repechage slot not found: side=%s step=%d", side, step)
	return nil
}

// winByAthlete1 проводит матч от старта до победы первого атлета.
func (e *testEnv) winByAthlete1(t *testing.T, matchID int) {
	t.Helper()
	ctx := context.Background()

	match, err := e.matches.StartMatch(ctx, matchID, nil)
	require.NoError(t, err)
	require.NotNil(t, match.Athlete1ID)

	_, err = e.matches.FinishMatch(ctx, matchID, FinishMatchInput{
		WinnerID:      match.Athlete1ID,
		ScoreAthlete1: intPtr(10),
		ScoreAthlete2: intPtr(0),
	}, nil)
	require.NoError(t, err)
}

func TestStartMatchTransitions(t *testing.T) {
	env := newTestEnv()
	env.seedBracket(t, 1, 4)
	ctx := context.Background()

	matchID := env.slot(t, 1, models.StageMain, 1, 1).MatchID

	match, err := env.matches.StartMatch(ctx, matchID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusStarted, match.Status)
	assert.Equal(t, 0, *match.ScoreAthlete1)
	assert.Equal(t, 0, *match.ScoreAthlete2)
	assert.NotNil(t, match.StartedAt)

	// Повторный старт отклоняется.
	_, err = env.matches.StartMatch(ctx, matchID, nil)
	assert.ErrorIs(t, err, ErrMatchAlreadyStarted)

	// Сетка перешла в started/running.
	bracket, err := env.bracketRepo.GetByID(ctx, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, models.BracketStatusStarted, bracket.Status)
	assert.Equal(t, models.BracketStateRunning, bracket.State)
}

func TestStartMatchRequiresBothSlots(t *testing.T) {
	env := newTestEnv()
	env.seedBracket(t, 1, 4)

	// Финал ещё пуст: полуфиналы не сыграны.
	finalID := env.slot(t, 1, models.StageMain, 2, 1).MatchID
	_, err := env.matches.StartMatch(context.Background(), finalID, nil)
	assert.ErrorIs(t, err, ErrMatchSlotsNotFilled)
}

func TestFinishRejectedBeforeStart(t *testing.T) {
	env := newTestEnv()
	env.seedBracket(t, 1, 4)
	ctx := context.Background()

	matchID := env.slot(t, 1, models.StageMain, 1, 1).MatchID
	_, err := env.matches.FinishMatch(ctx, matchID, FinishMatchInput{
		WinnerID:      intPtr(100),
		ScoreAthlete1: intPtr(10),
		ScoreAthlete2: intPtr(0),
	}, nil)
	assert.ErrorIs(t, err, ErrMatchNotStarted)

	// Ни счёт, ни победитель не записаны.
	match, err := env.matchRepo.GetByID(ctx, nil, matchID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusNotStarted, match.Status)
	assert.Nil(t, match.WinnerID)
	assert.Nil(t, match.ScoreAthlete1)
	assert.Nil(t, match.ScoreAthlete2)
}

func TestFinishValidation(t *testing.T) {
	env := newTestEnv()
	env.seedBracket(t, 1, 4)
	ctx := context.Background()

	matchID := env.slot(t, 1, models.StageMain, 1, 1).MatchID
	_, err := env.matches.StartMatch(ctx, matchID, nil)
	require.NoError(t, err)

	_, err = env.matches.FinishMatch(ctx, matchID, FinishMatchInput{
		ScoreAthlete1: intPtr(10), ScoreAthlete2: intPtr(0),
	}, nil)
	assert.ErrorIs(t, err, ErrMatchWinnerRequired)

	_, err = env.matches.FinishMatch(ctx, matchID, FinishMatchInput{
		WinnerID: intPtr(100), ScoreAthlete1: intPtr(10),
	}, nil)
	assert.ErrorIs(t, err, ErrMatchScoresRequired)

	_, err = env.matches.FinishMatch(ctx, matchID, FinishMatchInput{
		WinnerID: intPtr(999), ScoreAthlete1: intPtr(10), ScoreAthlete2: intPtr(0),
	}, nil)
	assert.ErrorIs(t, err, ErrMatchWinnerUnknown)
}

func TestUpdateScoresRequiresStarted(t *testing.T) {
	env := newTestEnv()
	env.seedBracket(t, 1, 4)
	ctx := context.Background()

	matchID := env.slot(t, 1, models.StageMain, 1, 1).MatchID
	_, err := env.matches.UpdateMatchScores(ctx, matchID, intPtr(3), nil, nil)
	assert.ErrorIs(t, err, ErrMatchNotStarted)

	_, err = env.matches.StartMatch(ctx, matchID, nil)
	require.NoError(t, err)

	// Частичное обновление: только одна сторона.
	match, err := env.matches.UpdateMatchScores(ctx, matchID, intPtr(3), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, *match.ScoreAthlete1)
	assert.Equal(t, 0, *match.ScoreAthlete2)
}

func TestExpectedVersionConflict(t *testing.T) {
	env := newTestEnv()
	bracket := env.seedBracket(t, 1, 4)
	ctx := context.Background()

	matchID := env.slot(t, 1, models.StageMain, 1, 1).MatchID
	stale := bracket.Version - 1
	_, err := env.matches.StartMatch(ctx, matchID, &stale)
	assert.ErrorIs(t, err, ErrBracketVersionConflict)

	match, err := env.matchRepo.GetByID(ctx, nil, matchID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusNotStarted, match.Status)
}

func TestWinnerAdvancesToNextRound(t *testing.T) {
	env := newTestEnv()
	env.seedBracket(t, 1, 8)

	env.winByAthlete1(t, env.slot(t, 1, models.StageMain, 1, 1).MatchID)

	semi := env.slot(t, 1, models.StageMain, 2, 1)
	require.NotNil(t, semi.Match.Athlete1ID)
	assert.Equal(t, 100, *semi.Match.Athlete1ID)
	assert.Nil(t, semi.Match.Athlete2ID)
}

func TestWalkoverPropagatedAtBuild(t *testing.T) {
	env := newTestEnv()
	env.seedBracket(t, 1, 5)

	// Три walkover-а первого раунда уже закрыты и проведены дальше.
	finished := 0
	slots, err := env.bracketRepo.ListSlots(context.Background(), nil, 1)
	require.NoError(t, err)
	for _, s := range slots {
		if s.RoundNumber == 1 && s.Match.Status == models.MatchStatusFinished {
			finished++
		}
	}
	assert.Equal(t, 3, finished)

	semi2 := env.slot(t, 1, models.StageMain, 2, 2)
	require.NotNil(t, semi2.Match.Athlete1ID)
	require.NotNil(t, semi2.Match.Athlete2ID)
}

func TestEightParticipantScenario(t *testing.T) {
	env := newTestEnv()
	env.seedBracket(t, 1, 8)
	ctx := context.Background()

	// Первый раунд: везде побеждает athlete1.
	for p := 1; p <= 4; p++ {
		env.winByAthlete1(t, env.slot(t, 1, models.StageMain, 1, p).MatchID)
	}
	assert.Empty(t, env.repechage(t, 1), "утешительная сетка до полуфиналов не строится")

	// Полуфиналы.
	env.winByAthlete1(t, env.slot(t, 1, models.StageMain, 2, 1).MatchID)
	env.winByAthlete1(t, env.slot(t, 1, models.StageMain, 2, 2).MatchID)

	repechage := env.repechage(t, 1)
	require.Len(t, repechage, 2, "по одному матчу за бронзу на сторону")
	for _, s := range repechage {
		assert.Equal(t, models.RoundTypeBronze, s.Match.RoundType)
		require.NotNil(t, s.Match.Athlete1ID)
		require.NotNil(t, s.Match.Athlete2ID)
	}

	// Финал: 100 против 500.
	final := env.slot(t, 1, models.StageMain, 3, 1)
	assert.Equal(t, 100, *final.Match.Athlete1ID)
	assert.Equal(t, 500, *final.Match.Athlete2ID)
	env.winByAthlete1(t, final.MatchID)

	bracket, err := env.bracketRepo.GetByID(ctx, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, 100, *bracket.Place1AthleteID)
	assert.Equal(t, 500, *bracket.Place2AthleteID)
	assert.Nil(t, bracket.Place3AAthleteID)
	assert.Nil(t, bracket.Place3BAthleteID)
	assert.NotEqual(t, models.BracketStatusFinished, bracket.Status)

	// Бронзовые матчи; победитель финала ни в одном не участвует.
	for _, s := range env.repechage(t, 1) {
		assert.False(t, s.Match.HasAthlete(100))
		env.winByAthlete1(t, s.MatchID)
	}

	bracket, err = env.bracketRepo.GetByID(ctx, nil, 1)
	require.NoError(t, err)
	require.NotNil(t, bracket.Place3AAthleteID)
	require.NotNil(t, bracket.Place3BAthleteID)
	assert.Equal(t, 300, *bracket.Place3AAthleteID)
	assert.Equal(t, 700, *bracket.Place3BAthleteID)
	assert.Equal(t, models.BracketStatusFinished, bracket.Status)
	assert.Equal(t, models.BracketStateFinished, bracket.State)
}

func TestSixteenParticipantRepechageLadder(t *testing.T) {
	env := newTestEnv()
	env.seedBracket(t, 1, 16)
	ctx := context.Background()

	// Три круга основной сетки, везде побеждает athlete1.
	for _, round := range []struct{ number, matches int }{{1, 8}, {2, 4}, {3, 2}} {
		for p := 1; p <= round.matches; p++ {
			env.winByAthlete1(t, env.slot(t, 1, models.StageMain, round.number, p).MatchID)
		}
	}

	// Глубина 4: на каждую сторону лестница из ступени и бронзы.
	require.Len(t, env.repechage(t, 1), 4)

	// Проигравшие финалисту входят в лестницу по убыванию раунда:
	// ступень 1 сводит проигравшего второго круга с проигравшим первого.
	stepA := env.repechageStep(t, 1, models.RepechageSideA, 1)
	assert.Equal(t, 300, *stepA.Match.Athlete1ID)
	assert.Equal(t, 200, *stepA.Match.Athlete2ID)
	stepB := env.repechageStep(t, 1, models.RepechageSideB, 1)
	assert.Equal(t, 1100, *stepB.Match.Athlete1ID)
	assert.Equal(t, 1000, *stepB.Match.Athlete2ID)

	// Верх лестницы — бронза: проигравший полуфинала уже на месте,
	// второй слот ждёт победителя ступени.
	bronzeA := env.repechageStep(t, 1, models.RepechageSideA, 2)
	assert.Equal(t, models.RoundTypeBronze, bronzeA.Match.RoundType)
	assert.Equal(t, 500, *bronzeA.Match.Athlete1ID)
	assert.Nil(t, bronzeA.Match.Athlete2ID)

	env.winByAthlete1(t, stepA.MatchID)
	env.winByAthlete1(t, stepB.MatchID)

	bronzeA = env.repechageStep(t, 1, models.RepechageSideA, 2)
	require.NotNil(t, bronzeA.Match.Athlete2ID)
	assert.Equal(t, 300, *bronzeA.Match.Athlete2ID)
	bronzeB := env.repechageStep(t, 1, models.RepechageSideB, 2)
	require.NotNil(t, bronzeB.Match.Athlete2ID)
	assert.Equal(t, 1100, *bronzeB.Match.Athlete2ID)

	env.winByAthlete1(t, env.slot(t, 1, models.StageMain, 4, 1).MatchID)
	env.winByAthlete1(t, bronzeA.MatchID)
	env.winByAthlete1(t, bronzeB.MatchID)

	for _, s := range env.repechage(t, 1) {
		assert.False(t, s.Match.HasAthlete(100), "победитель финала не играет в утешиловке")
	}

	bracket, err := env.bracketRepo.GetByID(ctx, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, 100, *bracket.Place1AthleteID)
	assert.Equal(t, 900, *bracket.Place2AthleteID)
	assert.Equal(t, 500, *bracket.Place3AAthleteID)
	assert.Equal(t, 1300, *bracket.Place3BAthleteID)
	assert.Equal(t, models.BracketStatusFinished, bracket.Status)
	assert.Equal(t, models.BracketStateFinished, bracket.State)
}

func TestFourParticipantDirectThirds(t *testing.T) {
	env := newTestEnv()
	env.seedBracket(t, 1, 4)
	ctx := context.Background()

	// Полуфиналы (глубина 2: первый раунд и есть полуфинал).
	env.winByAthlete1(t, env.slot(t, 1, models.StageMain, 1, 1).MatchID)
	env.winByAthlete1(t, env.slot(t, 1, models.StageMain, 1, 2).MatchID)

	assert.Empty(t, env.repechage(t, 1), "для глубины 2 утешительных матчей нет")

	bracket, err := env.bracketRepo.GetByID(ctx, nil, 1)
	require.NoError(t, err)
	require.NotNil(t, bracket.Place3AAthleteID)
	require.NotNil(t, bracket.Place3BAthleteID)
	assert.Equal(t, 200, *bracket.Place3AAthleteID)
	assert.Equal(t, 400, *bracket.Place3BAthleteID)
	assert.Nil(t, bracket.Place1AthleteID)

	env.winByAthlete1(t, env.slot(t, 1, models.StageMain, 2, 1).MatchID)

	bracket, err = env.bracketRepo.GetByID(ctx, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, 100, *bracket.Place1AthleteID)
	assert.Equal(t, 300, *bracket.Place2AthleteID)
	assert.Equal(t, models.BracketStatusFinished, bracket.Status)
}

func TestRegenerateResetsStructure(t *testing.T) {
	env := newTestEnv()
	env.seedBracket(t, 1, 8)
	ctx := context.Background()

	// Частично отыгранная сетка.
	for p := 1; p <= 4; p++ {
		env.winByAthlete1(t, env.slot(t, 1, models.StageMain, 1, p).MatchID)
	}

	bracket, err := env.brackets.BuildOrRegenerate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.BracketStatusPending, bracket.Status)
	assert.Equal(t, models.BracketStateDraft, bracket.State)
	assert.Nil(t, bracket.Place1AthleteID)

	slots, err := env.bracketRepo.ListSlots(ctx, nil, 1)
	require.NoError(t, err)
	assert.Len(t, slots, 7)
	for _, s := range slots {
		assert.Equal(t, models.MatchStatusNotStarted, s.Match.Status)
	}
}
