package simulator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/sawdustofmind/matchcenter/internal/apperr"
	"github.com/sawdustofmind/matchcenter/internal/generator"
	"github.com/sawdustofmind/matchcenter/internal/matches"
	"github.com/sawdustofmind/matchcenter/internal/models"
	"github.com/sawdustofmind/matchcenter/internal/store"
)

type broadcast struct {
	matchID string
	kind    string
	status  models.MatchStatus
	home    int
	away    int
	minute  int
}

type recorder struct {
	mu  sync.Mutex
	all []broadcast
}

func (r *recorder) add(b broadcast) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, b)
}

func (r *recorder) BroadcastScore(_ context.Context, matchID string, home, away, minute int) {
	r.add(broadcast{matchID: matchID, kind: "score", home: home, away: away, minute: minute})
}

func (r *recorder) BroadcastEvent(_ context.Context, matchID string, e models.MatchEvent) {
	r.add(broadcast{matchID: matchID, kind: "event", minute: e.Minute})
}

func (r *recorder) BroadcastStats(_ context.Context, matchID string, _ models.StatisticsValues) {
	r.add(broadcast{matchID: matchID, kind: "stats"})
}

func (r *recorder) BroadcastStatus(_ context.Context, matchID string, status models.MatchStatus, minute int) {
	r.add(broadcast{matchID: matchID, kind: "status", status: status, minute: minute})
}

func (r *recorder) For(matchID string) []broadcast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Filter(r.all, func(b broadcast, _ int) bool { return b.matchID == matchID })
}

func (r *recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = nil
}

func kinds(bs []broadcast) []string {
	return lo.Map(bs, func(b broadcast, _ int) string { return b.kind })
}

// scripted emits the configured events and otherwise nothing.
type scripted struct {
	mu     sync.Mutex
	events map[string]map[int]models.GeneratedEvent
}

func (s *scripted) on(matchID string, minute int, ev models.GeneratedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.events == nil {
		s.events = make(map[string]map[int]models.GeneratedEvent)
	}
	if s.events[matchID] == nil {
		s.events[matchID] = make(map[int]models.GeneratedEvent)
	}
	ev.Minute = minute
	s.events[matchID][minute] = ev
}

func (s *scripted) GenerateEvent(state *models.SimulationState, minute int) *models.GeneratedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !state.Status.InPlay() {
		return nil
	}
	if ev, ok := s.events[state.MatchID][minute]; ok {
		return &ev
	}
	return nil
}

func (s *scripted) GenerateStatistics(_ models.MatchStatus, minute int) models.StatisticsValues {
	v := models.DefaultStatisticsValues()
	v.HomeShots = minute
	return v
}

// failingStore fails match updates of one match while armed.
type failingStore struct {
	*store.MemoryStore
	mu      sync.Mutex
	failFor string
}

func (f *failingStore) arm(matchID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failFor = matchID
}

func (f *failingStore) UpdateMatch(ctx context.Context, id string, update models.MatchUpdate) error {
	f.mu.Lock()
	fail := f.failFor == id
	f.mu.Unlock()
	if fail {
		return errors.New("connection reset by peer")
	}
	return f.MemoryStore.UpdateMatch(ctx, id, update)
}

type fixture struct {
	engine *Engine
	store  *failingStore
	rec    *recorder
	clock  *clockwork.FakeClock
}

func newFixture(t *testing.T, events EventSource) *fixture {
	t.Helper()
	st := &failingStore{MemoryStore: store.NewMemoryStore()}
	rec := &recorder{}
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC))
	svc := matches.NewService(st, rec)
	return &fixture{
		engine: NewEngine(st, svc, rec, events, clock, DefaultConfig()),
		store:  st,
		rec:    rec,
		clock:  clock,
	}
}

func (f *fixture) createMatch(t *testing.T, kickoff int64) *models.Match {
	t.Helper()
	m := &models.Match{HomeTeam: "Home FC", AwayTeam: "Away United", KickoffTime: kickoff}
	require.NoError(t, f.store.CreateMatch(context.Background(), m))
	return m
}

// runTo ticks once per simulated minute until minute is reached.
func (f *fixture) runTo(ctx context.Context, from, minute int) {
	for i := from; i < minute; i++ {
		f.clock.Advance(time.Second)
		f.engine.Tick(ctx)
	}
}

func (f *fixture) match(t *testing.T, id string) *models.Match {
	t.Helper()
	m, err := f.store.GetMatchDetails(context.Background(), id)
	require.NoError(t, err)
	return m
}

func TestEngine_Start_KicksOff(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, &scripted{})
	m := f.createMatch(t, 100)

	res, err := f.engine.Start(ctx, m.ID)
	req.NoError(err)
	req.False(res.AlreadyRunning)

	got := f.match(t, m.ID)
	req.Equal(models.StatusFirstHalf, got.Status)
	req.Zero(got.Minute)
	req.NotNil(got.Statistics)
	req.Equal(models.DefaultStatisticsValues(), got.Statistics.StatisticsValues)
	req.True(f.engine.IsActive(m.ID))
}

func TestEngine_Start_Twice(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, &scripted{})
	m := f.createMatch(t, 100)

	_, err := f.engine.Start(ctx, m.ID)
	req.NoError(err)
	f.runTo(ctx, 0, 3)

	res, err := f.engine.Start(ctx, m.ID)
	req.NoError(err)
	req.True(res.AlreadyRunning)
	req.Equal([]string{m.ID}, f.engine.Active())

	// The running simulation kept its clock
	f.runTo(ctx, 3, 4)
	req.Equal(4, f.match(t, m.ID).Minute)
}

func TestEngine_Start_UnknownMatch(t *testing.T) {
	f := newFixture(t, &scripted{})

	_, err := f.engine.Start(context.Background(), "missing")

	require.True(t, apperr.IsNotFound(err))
	require.Empty(t, f.engine.Active())
}

func TestEngine_Start_FailedKickoffIsNotActive(t *testing.T) {
	f := newFixture(t, &scripted{})
	m := f.createMatch(t, 100)
	f.store.arm(m.ID)

	_, err := f.engine.Start(context.Background(), m.ID)

	require.Error(t, err)
	require.False(t, f.engine.IsActive(m.ID))
}

func TestEngine_Tick_SecondHalfAfter46Minutes(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, generator.New(99))
	m := f.createMatch(t, time.Now().Unix())

	// Given a started match
	_, err := f.engine.Start(ctx, m.ID)
	req.NoError(err)

	// When 46 seconds elapse
	f.runTo(ctx, 0, 46)

	// Then the match is in the second half at minute 46
	got := f.match(t, m.ID)
	req.Equal(models.StatusSecondHalf, got.Status)
	req.Equal(46, got.Minute)
	for _, e := range got.Events {
		req.LessOrEqual(e.Minute, 46)
		req.NotEqual(45, e.Minute, "no events during half time")
	}

	statuses := lo.Filter(f.rec.For(m.ID), func(b broadcast, _ int) bool { return b.kind == "status" })
	req.Equal([]models.MatchStatus{models.StatusHalfTime, models.StatusSecondHalf},
		lo.Map(statuses, func(b broadcast, _ int) models.MatchStatus { return b.status }))
	req.Equal(45, statuses[0].minute)
	req.Equal(46, statuses[1].minute)
}

func TestEngine_Tick_SkippedHalfTimeLeavesFirstHalf(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, &scripted{})
	m := f.createMatch(t, 100)
	_, err := f.engine.Start(ctx, m.ID)
	req.NoError(err)

	// A delayed driver that jumps past minutes 45 and 46 never sees them
	f.clock.Advance(47 * time.Second)
	f.engine.Tick(ctx)

	got := f.match(t, m.ID)
	req.Equal(models.StatusFirstHalf, got.Status)
	req.Equal(47, got.Minute)
	req.True(f.engine.IsActive(m.ID))
}

func TestEngine_Tick_FullTimeStopsSimulation(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, generator.New(7))
	m := f.createMatch(t, 100)
	_, err := f.engine.Start(ctx, m.ID)
	req.NoError(err)

	f.runTo(ctx, 0, 90)

	got := f.match(t, m.ID)
	req.Equal(models.StatusFullTime, got.Status)
	req.Equal(90, got.Minute)
	req.False(f.engine.IsActive(m.ID))

	goals := lo.Filter(got.Events, func(e models.MatchEvent, _ int) bool { return e.IsGoal() })
	home := lo.CountBy(goals, func(e models.MatchEvent) bool { return e.Team == models.TeamHome })
	req.Equal(home, got.HomeScore)
	req.Equal(len(goals)-home, got.AwayScore)

	last := f.rec.For(m.ID)[len(f.rec.For(m.ID))-1]
	req.Equal("status", last.kind)
	req.Equal(models.StatusFullTime, last.status)

	// Further ticks leave the finished match alone
	f.rec.Reset()
	f.runTo(ctx, 90, 95)
	req.Empty(f.rec.For(m.ID))
	req.Equal(90, f.match(t, m.ID).Minute)
}

func TestEngine_Tick_UnchangedMinuteDoesNothing(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, &scripted{})
	m := f.createMatch(t, 100)
	_, err := f.engine.Start(ctx, m.ID)
	req.NoError(err)

	f.engine.Tick(ctx)
	f.clock.Advance(500 * time.Millisecond)
	f.engine.Tick(ctx)

	req.Empty(f.rec.For(m.ID))
	req.Zero(f.match(t, m.ID).Minute)
}

func TestEngine_Tick_GoalIsInFollowingScoreBroadcast(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	events := &scripted{}
	f := newFixture(t, events)
	m := f.createMatch(t, 100)
	events.on(m.ID, 1, models.GeneratedEvent{Type: models.EventGoal, Team: models.TeamAway, Description: "Goal"})
	_, err := f.engine.Start(ctx, m.ID)
	req.NoError(err)

	f.runTo(ctx, 0, 1)

	got := f.rec.For(m.ID)
	req.Equal([]string{"score", "event", "score"}, kinds(got))
	req.Equal(broadcast{matchID: m.ID, kind: "score", home: 0, away: 1, minute: 1}, got[2])
	req.Equal(1, f.match(t, m.ID).AwayScore)
}

func TestEngine_Tick_StatisticsEveryFiveMinutes(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, &scripted{})
	m := f.createMatch(t, 100)
	_, err := f.engine.Start(ctx, m.ID)
	req.NoError(err)

	f.runTo(ctx, 0, 12)

	stats := lo.Filter(f.rec.For(m.ID), func(b broadcast, _ int) bool { return b.kind == "stats" })
	req.Len(stats, 2)
	req.Equal(10, f.match(t, m.ID).Statistics.HomeShots)

	// Every changed minute ends with a score broadcast
	scores := lo.Filter(f.rec.For(m.ID), func(b broadcast, _ int) bool { return b.kind == "score" })
	req.Len(scores, 12)
}

func TestEngine_Tick_FailureIsIsolated(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, &scripted{})
	broken := f.createMatch(t, 100)
	healthy := f.createMatch(t, 200)
	_, err := f.engine.Start(ctx, broken.ID)
	req.NoError(err)
	_, err = f.engine.Start(ctx, healthy.ID)
	req.NoError(err)

	// When persisting one match fails
	f.store.arm(broken.ID)
	f.runTo(ctx, 0, 3)

	// Then the other keeps progressing and both stay active
	req.Equal(3, f.match(t, healthy.ID).Minute)
	req.Zero(f.match(t, broken.ID).Minute)
	req.Empty(f.rec.For(broken.ID))
	req.True(f.engine.IsActive(broken.ID))

	// And the next tick after recovery picks it up again
	f.store.arm("")
	f.runTo(ctx, 3, 4)
	req.Equal(4, f.match(t, broken.ID).Minute)
}

func TestEngine_Tick_MatchesAreIndependent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	script := func(events *scripted, id string) {
		events.on(id, 3, models.GeneratedEvent{Type: models.EventGoal, Team: models.TeamHome})
		events.on(id, 7, models.GeneratedEvent{Type: models.EventGoal, Team: models.TeamAway})
		events.on(id, 8, models.GeneratedEvent{Type: models.EventYellowCard, Team: models.TeamAway})
	}

	// Alone
	aloneEvents := &scripted{}
	alone := newFixture(t, aloneEvents)
	a := alone.createMatch(t, 100)
	script(aloneEvents, a.ID)
	_, err := alone.engine.Start(ctx, a.ID)
	req.NoError(err)
	alone.runTo(ctx, 0, 10)

	// Next to another match
	pairEvents := &scripted{}
	pair := newFixture(t, pairEvents)
	b := pair.createMatch(t, 100)
	other := pair.createMatch(t, 200)
	script(pairEvents, b.ID)
	pairEvents.on(other.ID, 3, models.GeneratedEvent{Type: models.EventGoal, Team: models.TeamAway})
	_, err = pair.engine.Start(ctx, b.ID)
	req.NoError(err)
	_, err = pair.engine.Start(ctx, other.ID)
	req.NoError(err)
	pair.runTo(ctx, 0, 10)

	strip := func(bs []broadcast) []broadcast {
		return lo.Map(bs, func(x broadcast, _ int) broadcast { x.matchID = ""; return x })
	}
	req.Equal(strip(alone.rec.For(a.ID)), strip(pair.rec.For(b.ID)))
	ga, gb := alone.match(t, a.ID), pair.match(t, b.ID)
	req.Equal(ga.HomeScore, gb.HomeScore)
	req.Equal(ga.AwayScore, gb.AwayScore)
	req.Equal(ga.Status, gb.Status)
}

func TestEngine_Stop(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, &scripted{})
	m := f.createMatch(t, 100)
	_, err := f.engine.Start(ctx, m.ID)
	req.NoError(err)
	f.runTo(ctx, 0, 20)
	f.rec.Reset()

	req.NoError(f.engine.Stop(ctx, m.ID))

	req.False(f.engine.IsActive(m.ID))
	req.Equal(models.StatusFullTime, f.match(t, m.ID).Status)
	req.Equal([]broadcast{{matchID: m.ID, kind: "status", status: models.StatusFullTime, minute: 20}}, f.rec.For(m.ID))

	// Stopping again is a no-op
	req.NoError(f.engine.Stop(ctx, m.ID))
	req.Len(f.rec.For(m.ID), 1)
}

func TestEngine_StartMultiple_OldestFirst(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, &scripted{})

	newest := f.createMatch(t, 400)
	oldest := f.createMatch(t, 100)
	second := f.createMatch(t, 200)
	third := f.createMatch(t, 300)
	finished := f.createMatch(t, 50)
	status := models.StatusFullTime
	req.NoError(f.store.UpdateMatch(ctx, finished.ID, models.MatchUpdate{Status: &status}))

	started, err := f.engine.StartMultiple(ctx, 2)
	req.NoError(err)
	req.Equal([]string{oldest.ID, second.ID}, started)

	started, err = f.engine.StartMultiple(ctx, 5)
	req.NoError(err)
	req.Equal([]string{third.ID, newest.ID}, started)
	req.Len(f.engine.Active(), 4)
	req.False(f.engine.IsActive(finished.ID))

	started, err = f.engine.StartMultiple(ctx, 5)
	req.NoError(err)
	req.Empty(started)
}

func TestEngine_Run_DrivesTicks(t *testing.T) {
	req := require.New(t)
	st := store.NewMemoryStore()
	rec := &recorder{}
	engine := NewEngine(st, matches.NewService(st, rec), rec, &scripted{}, clockwork.NewRealClock(), Config{
		TickInterval:   5 * time.Millisecond,
		MinuteDuration: 10 * time.Millisecond,
	})
	m := &models.Match{HomeTeam: "A", AwayTeam: "B"}
	req.NoError(st.CreateMatch(context.Background(), m))

	ctx, cancel := context.WithCancel(context.Background())
	_, err := engine.Start(ctx, m.ID)
	req.NoError(err)

	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	req.Eventually(func() bool {
		got, err := st.GetMatch(context.Background(), m.ID)
		return err == nil && got.Minute >= 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(2 * time.Second):
		t.Fatal("driver did not stop")
	}
}

func TestNextStatus(t *testing.T) {
	cases := []struct {
		status models.MatchStatus
		minute int
		want   models.MatchStatus
		change bool
	}{
		{models.StatusNotStarted, 0, models.StatusFirstHalf, true},
		{models.StatusNotStarted, 1, models.StatusNotStarted, false},
		{models.StatusFirstHalf, 44, models.StatusFirstHalf, false},
		{models.StatusFirstHalf, 45, models.StatusHalfTime, true},
		{models.StatusFirstHalf, 46, models.StatusFirstHalf, false},
		{models.StatusHalfTime, 46, models.StatusSecondHalf, true},
		{models.StatusHalfTime, 47, models.StatusHalfTime, false},
		{models.StatusSecondHalf, 89, models.StatusSecondHalf, false},
		{models.StatusSecondHalf, 90, models.StatusFullTime, true},
		{models.StatusSecondHalf, 93, models.StatusFullTime, true},
		{models.StatusFullTime, 95, models.StatusFullTime, false},
	}
	for _, c := range cases {
		got, changed := nextStatus(c.status, c.minute)
		require.Equal(t, c.want, got, "%s at %d", c.status, c.minute)
		require.Equal(t, c.change, changed, "%s at %d", c.status, c.minute)
	}
}
