package services

import (
	"context"
	"io"
	"log/slog"
	"sort"

	"github.com/lyp1noff/champion-arena-sub000/models"
	"github.com/lyp1noff/champion-arena-sub000/repositories"
)

// In-memory реализация репозиториев для тестов сервисного слоя.
// Возвращает копии, чтобы тесты честно ловили незаписанные изменения.

type fakeTx struct{}

func (fakeTx) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeStore struct {
	brackets     map[int]*models.Bracket
	participants map[int][]*models.BracketParticipant
	slots        []*models.BracketMatch
	matches      map[int]*models.Match

	nextMatchID       int
	nextSlotID        int
	nextParticipantID int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		brackets:     make(map[int]*models.Bracket),
		participants: make(map[int][]*models.BracketParticipant),
		matches:      make(map[int]*models.Match),
	}
}

func copyMatch(m *models.Match) *models.Match {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}

func copySlot(s *models.BracketMatch) *models.BracketMatch {
	c := *s
	c.Match = nil
	return &c
}

// --- BracketRepository ---

type fakeBracketRepo struct{ store *fakeStore }

func (r *fakeBracketRepo) Create(ctx context.Context, exec repositories.SQLExecutor, bracket *models.Bracket) error {
	c := *bracket
	r.store.brackets[bracket.ID] = &c
	return nil
}

func (r *fakeBracketRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Bracket, error) {
	b, ok := r.store.brackets[id]
	if !ok {
		return nil, repositories.ErrBracketNotFound
	}
	c := *b
	return &c, nil
}

func (r *fakeBracketRepo) BumpVersion(ctx context.Context, exec repositories.SQLExecutor, id, expectedVersion int) error {
	b, ok := r.store.brackets[id]
	if !ok {
		return repositories.ErrBracketNotFound
	}
	if b.Version != expectedVersion {
		return repositories.ErrBracketVersionConflict
	}
	b.Version++
	return nil
}

func (r *fakeBracketRepo) UpdateStatusState(ctx context.Context, exec repositories.SQLExecutor, id int, status models.BracketStatus, state models.BracketState) error {
	b, ok := r.store.brackets[id]
	if !ok {
		return repositories.ErrBracketNotFound
	}
	b.Status = status
	b.State = state
	return nil
}

func (r *fakeBracketRepo) UpdatePlacements(ctx context.Context, exec repositories.SQLExecutor, id int, p1, p2, p3a, p3b *int) error {
	b, ok := r.store.brackets[id]
	if !ok {
		return repositories.ErrBracketNotFound
	}
	b.Place1AthleteID = p1
	b.Place2AthleteID = p2
	b.Place3AAthleteID = p3a
	b.Place3BAthleteID = p3b
	return nil
}

func (r *fakeBracketRepo) DeleteStructure(ctx context.Context, exec repositories.SQLExecutor, bracketID int) error {
	kept := r.store.slots[:0]
	for _, s := range r.store.slots {
		if s.BracketID == bracketID {
			delete(r.store.matches, s.MatchID)
		} else {
			kept = append(kept, s)
		}
	}
	r.store.slots = kept
	delete(r.store.participants, bracketID)
	return nil
}

func (r *fakeBracketRepo) CreateParticipant(ctx context.Context, exec repositories.SQLExecutor, participant *models.BracketParticipant) error {
	r.store.nextParticipantID++
	participant.ID = r.store.nextParticipantID
	c := *participant
	r.store.participants[participant.BracketID] = append(r.store.participants[participant.BracketID], &c)
	return nil
}

func (r *fakeBracketRepo) ListParticipants(ctx context.Context, exec repositories.SQLExecutor, bracketID int) ([]*models.BracketParticipant, error) {
	list := r.store.participants[bracketID]
	result := make([]*models.BracketParticipant, 0, len(list))
	for _, p := range list {
		c := *p
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Seed < result[j].Seed })
	return result, nil
}

func (r *fakeBracketRepo) CreateSlot(ctx context.Context, exec repositories.SQLExecutor, slot *models.BracketMatch) error {
	r.store.nextSlotID++
	slot.ID = r.store.nextSlotID
	r.store.slots = append(r.store.slots, copySlot(slot))
	return nil
}

func (r *fakeBracketRepo) UpdateSlotLinks(ctx context.Context, exec repositories.SQLExecutor, slotID int, nextMatchID, nextSlot *int) error {
	for _, s := range r.store.slots {
		if s.ID == slotID {
			s.NextMatchID = nextMatchID
			s.NextSlot = nextSlot
			return nil
		}
	}
	return repositories.ErrBracketSlotNotFound
}

func (r *fakeBracketRepo) ListSlots(ctx context.Context, exec repositories.SQLExecutor, bracketID int) ([]*models.BracketMatch, error) {
	result := make([]*models.BracketMatch, 0)
	for _, s := range r.store.slots {
		if s.BracketID != bracketID {
			continue
		}
		c := copySlot(s)
		c.Match = copyMatch(r.store.matches[s.MatchID])
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Stage != b.Stage {
			return a.Stage == models.StageMain
		}
		if a.RoundNumber != b.RoundNumber {
			return a.RoundNumber < b.RoundNumber
		}
		return a.Position < b.Position
	})
	return result, nil
}

func (r *fakeBracketRepo) GetSlotByMatchID(ctx context.Context, exec repositories.SQLExecutor, matchID int) (*models.BracketMatch, error) {
	for _, s := range r.store.slots {
		if s.MatchID == matchID {
			c := copySlot(s)
			c.Match = copyMatch(r.store.matches[matchID])
			return c, nil
		}
	}
	return nil, repositories.ErrBracketSlotNotFound
}

// --- MatchRepository ---

type fakeMatchRepo struct{ store *fakeStore }

func (r *fakeMatchRepo) Create(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	r.store.nextMatchID++
	match.ID = r.store.nextMatchID
	r.store.matches[match.ID] = copyMatch(match)
	return nil
}

func (r *fakeMatchRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	m, ok := r.store.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return copyMatch(m), nil
}

func (r *fakeMatchRepo) Update(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	stored, ok := r.store.matches[match.ID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	stored.Athlete1ID = match.Athlete1ID
	stored.Athlete2ID = match.Athlete2ID
	stored.Status = match.Status
	stored.WinnerID = match.WinnerID
	stored.ScoreAthlete1 = match.ScoreAthlete1
	stored.ScoreAthlete2 = match.ScoreAthlete2
	stored.StartedAt = match.StartedAt
	stored.EndedAt = match.EndedAt
	return nil
}

func (r *fakeMatchRepo) UpdateAthletes(ctx context.Context, exec repositories.SQLExecutor, id int, athlete1ID, athlete2ID *int) error {
	stored, ok := r.store.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	stored.Athlete1ID = athlete1ID
	stored.Athlete2ID = athlete2ID
	return nil
}

// --- AthleteRepository ---

type fakeAthleteRepo struct {
	athletes map[int]*models.Athlete
}

func (r *fakeAthleteRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Athlete, error) {
	a, ok := r.athletes[id]
	if !ok {
		return nil, repositories.ErrAthleteNotFound
	}
	c := *a
	return &c, nil
}

func (r *fakeAthleteRepo) ListByIDs(ctx context.Context, exec repositories.SQLExecutor, ids []int) (map[int]*models.Athlete, error) {
	result := make(map[int]*models.Athlete, len(ids))
	for _, id := range ids {
		if a, ok := r.athletes[id]; ok {
			c := *a
			result[id] = &c
		}
	}
	return result, nil
}

// --- SyncRepository ---

type fakeSyncRepo struct {
	events      []*models.SyncInboxEvent
	states      map[string]*models.SyncEdgeState
	stations    map[string]*models.EdgeStation
	nextEventID int
}

func newFakeSyncRepo() *fakeSyncRepo {
	return &fakeSyncRepo{
		states:   make(map[string]*models.SyncEdgeState),
		stations: make(map[string]*models.EdgeStation),
	}
}

func (r *fakeSyncRepo) GetEvent(ctx context.Context, exec repositories.SQLExecutor, edgeID string, seq int64) (*models.SyncInboxEvent, error) {
	for _, e := range r.events {
		if e.EdgeID == edgeID && e.Seq == seq {
			c := *e
			return &c, nil
		}
	}
	return nil, repositories.ErrSyncEventNotFound
}

func (r *fakeSyncRepo) InsertEvent(ctx context.Context, exec repositories.SQLExecutor, event *models.SyncInboxEvent) error {
	for _, e := range r.events {
		if e.EdgeID == event.EdgeID && e.Seq == event.Seq {
			return repositories.ErrSyncEventConflict
		}
	}
	r.nextEventID++
	event.ID = r.nextEventID
	c := *event
	r.events = append(r.events, &c)
	return nil
}

func (r *fakeSyncRepo) UpdateEventOutcome(ctx context.Context, exec repositories.SQLExecutor, id int, applied bool, errText *string) error {
	for _, e := range r.events {
		if e.ID == id {
			e.Applied = applied
			e.Error = errText
			return nil
		}
	}
	return repositories.ErrSyncEventNotFound
}

func (r *fakeSyncRepo) GetEdgeState(ctx context.Context, exec repositories.SQLExecutor, edgeID string) (*models.SyncEdgeState, error) {
	s, ok := r.states[edgeID]
	if !ok {
		return nil, repositories.ErrEdgeStationNotFound
	}
	c := *s
	return &c, nil
}

func (r *fakeSyncRepo) EnsureEdgeState(ctx context.Context, exec repositories.SQLExecutor, edgeID string) (*models.SyncEdgeState, error) {
	if _, ok := r.states[edgeID]; !ok {
		r.states[edgeID] = &models.SyncEdgeState{EdgeID: edgeID}
	}
	c := *r.states[edgeID]
	return &c, nil
}

func (r *fakeSyncRepo) AdvanceEdgeSeq(ctx context.Context, exec repositories.SQLExecutor, edgeID string, seq int64) error {
	s, ok := r.states[edgeID]
	if !ok {
		return repositories.ErrEdgeStationNotFound
	}
	if s.LastAppliedSeq < seq {
		s.LastAppliedSeq = seq
	}
	return nil
}

func (r *fakeSyncRepo) CreateStation(ctx context.Context, exec repositories.SQLExecutor, station *models.EdgeStation) error {
	if _, ok := r.stations[station.EdgeID]; ok {
		return repositories.ErrEdgeStationConflict
	}
	c := *station
	r.stations[station.EdgeID] = &c
	return nil
}

func (r *fakeSyncRepo) GetStation(ctx context.Context, exec repositories.SQLExecutor, edgeID string) (*models.EdgeStation, error) {
	s, ok := r.stations[edgeID]
	if !ok {
		return nil, repositories.ErrEdgeStationNotFound
	}
	c := *s
	return &c, nil
}
