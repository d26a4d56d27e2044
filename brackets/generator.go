package brackets

import (
	"context"
	"strconv"

	"github.com/lyp1noff/champion-arena-sub000/models"
)

// Seat — одно посевное место: атлет или пустой слот.
type Seat struct {
	AthleteID *int
	Seed      int
}

type GenerateParams struct {
	Seats []Seat
}

// PlannedMatch — матч, спланированный генератором до сохранения в БД.
// Key и NextKey связывают матчи между собой, пока у них нет настоящих id.
type PlannedMatch struct {
	Key         string
	Stage       models.MatchStage
	RoundNumber int
	Position    int
	RoundType   string

	NextKey  *string
	NextSlot *int

	Athlete1ID *int
	Athlete2ID *int
	Status     models.MatchStatus
	WinnerID   *int

	RepechageSide *models.RepechageSide
	RepechageStep *int
}

// Structure — полный результат генерации: матчи отсортированы по
// раунду и позиции, Rounds — глубина основной сетки.
type Structure struct {
	Matches []*PlannedMatch
	Rounds  int
}

type Generator interface {
	Generate(ctx context.Context, params GenerateParams) (*Structure, error)

	Name() string
}

// roundLabel возвращает метку раунда: три последних раунда всегда
// quarterfinal/semifinal/final независимо от глубины сетки.
func roundLabel(round, totalRounds int) string {
	switch totalRounds - round {
	case 0:
		return models.RoundTypeFinal
	case 1:
		return models.RoundTypeSemifinal
	case 2:
		return models.RoundTypeQuarterfinal
	}
	return "round_" + strconv.Itoa(round)
}
