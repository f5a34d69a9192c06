package simulator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sawdustofmind/matchcenter/internal/log"
	"github.com/sawdustofmind/matchcenter/internal/matches"
	"github.com/sawdustofmind/matchcenter/internal/metrics"
	"github.com/sawdustofmind/matchcenter/internal/models"
	"github.com/sawdustofmind/matchcenter/internal/store"
)

const (
	HalfTimeMinute     = 45
	SecondHalfMinute   = 46
	FullTimeMinute     = 90
	StatsRefreshPeriod = 5
)

// EventSource produces the random side of a simulation.
type EventSource interface {
	GenerateEvent(state *models.SimulationState, minute int) *models.GeneratedEvent
	GenerateStatistics(status models.MatchStatus, minute int) models.StatisticsValues
}

type Config struct {
	// TickInterval is the cadence of the tick driver.
	TickInterval time.Duration
	// MinuteDuration is the wall-clock time of one simulated minute.
	MinuteDuration time.Duration
	// Workers bounds how many matches one tick processes in parallel.
	Workers int
	// MatchTimeout bounds the work of one match within a tick.
	MatchTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		TickInterval:   time.Second,
		MinuteDuration: time.Second,
		Workers:        8,
		MatchTimeout:   5 * time.Second,
	}
}

type simulation struct {
	// mu is held by whoever advances the state: Start while initialising,
	// one tick at a time afterwards, and Stop.
	mu    sync.Mutex
	state *models.SimulationState
	done  bool
}

// StartResult reports what Start did.
type StartResult struct {
	MatchID        string
	AlreadyRunning bool
}

// Engine advances every active match on each tick.
type Engine struct {
	mu   sync.Mutex
	sims map[string]*simulation

	store     store.Store
	matches   *matches.Service
	broadcast matches.Broadcaster
	events    EventSource
	clock     clockwork.Clock
	cfg       Config
}

func NewEngine(s store.Store, svc *matches.Service, b matches.Broadcaster, events EventSource, clock clockwork.Clock, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.MinuteDuration <= 0 {
		cfg.MinuteDuration = def.MinuteDuration
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.MatchTimeout <= 0 {
		cfg.MatchTimeout = def.MatchTimeout
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Engine{
		sims:      make(map[string]*simulation),
		store:     s,
		matches:   svc,
		broadcast: b,
		events:    events,
		clock:     clock,
		cfg:       cfg,
	}
}

// Start begins simulating the match. Starting an active match is reported
// through StartResult, not as an error.
func (e *Engine) Start(ctx context.Context, matchID string) (StartResult, error) {
	res := StartResult{MatchID: matchID}

	m, err := e.store.GetMatch(ctx, matchID)
	if err != nil {
		return res, err
	}

	e.mu.Lock()
	if _, ok := e.sims[matchID]; ok {
		e.mu.Unlock()
		log.Warn("Match is already being simulated", log.MatchID(matchID))
		res.AlreadyRunning = true
		return res, nil
	}
	sim := &simulation{state: models.NewSimulationState(matchID, e.clock.Now())}
	sim.mu.Lock()
	defer sim.mu.Unlock()
	e.sims[matchID] = sim
	active := len(e.sims)
	e.mu.Unlock()

	if err := e.initialise(ctx, sim); err != nil {
		sim.done = true
		e.remove(matchID, sim)
		return res, err
	}

	metrics.ActiveSimulations.Inc()
	log.Info("Started simulation",
		log.MatchID(matchID),
		zap.String("home_team", m.HomeTeam),
		zap.String("away_team", m.AwayTeam),
		zap.Int("active", active),
	)
	return res, nil
}

func (e *Engine) initialise(ctx context.Context, sim *simulation) error {
	id := sim.state.MatchID
	if _, err := e.matches.EnsureStatistics(ctx, id); err != nil {
		return fmt.Errorf("failed to initialise statistics of match %s: %w", id, err)
	}

	status, minute := models.StatusFirstHalf, 0
	if err := e.store.UpdateMatch(ctx, id, models.MatchUpdate{Status: &status, Minute: &minute}); err != nil {
		return fmt.Errorf("failed to kick off match %s: %w", id, err)
	}
	sim.state.Status = status
	return nil
}

// Stop ends the simulation and marks the match FULL_TIME. Stopping an
// inactive match does nothing.
func (e *Engine) Stop(ctx context.Context, matchID string) error {
	e.mu.Lock()
	sim, ok := e.sims[matchID]
	e.mu.Unlock()
	if !ok {
		return nil
	}

	sim.mu.Lock()
	defer sim.mu.Unlock()
	if sim.done {
		return nil
	}

	status := models.StatusFullTime
	if err := e.store.UpdateMatch(ctx, matchID, models.MatchUpdate{Status: &status}); err != nil {
		return fmt.Errorf("failed to stop match %s: %w", matchID, err)
	}
	sim.done = true
	e.remove(matchID, sim)
	metrics.ActiveSimulations.Dec()

	e.broadcast.BroadcastStatus(ctx, matchID, status, sim.state.CurrentMinute)
	log.Info("Stopped simulation", log.MatchID(matchID))
	return nil
}

func (e *Engine) remove(matchID string, sim *simulation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sims[matchID] == sim {
		delete(e.sims, matchID)
	}
}

func (e *Engine) IsActive(matchID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.sims[matchID]
	return ok
}

// Active lists the matches under simulation.
func (e *Engine) Active() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return lo.Keys(e.sims)
}

// StartMultiple starts up to limit not yet started matches, oldest kickoff
// first, and returns the ones it started.
func (e *Engine) StartMultiple(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	status := models.StatusNotStarted
	candidates, err := e.store.ListMatches(ctx, store.MatchFilter{
		Status: &status,
		Order:  store.KickoffAsc,
		Limit:  limit + len(e.Active()),
	})
	if err != nil {
		return nil, err
	}

	candidates = lo.Filter(candidates, func(m models.Match, _ int) bool {
		return !e.IsActive(m.ID)
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	started := make([]string, 0, len(candidates))
	for _, m := range candidates {
		res, err := e.Start(ctx, m.ID)
		if err != nil {
			log.Error("Failed to start match", log.MatchID(m.ID), zap.Error(err))
			continue
		}
		if !res.AlreadyRunning {
			started = append(started, m.ID)
		}
	}

	log.Info("Started matches",
		zap.Int("started", len(started)),
		zap.Int("active", len(e.Active())),
	)
	return started, nil
}

// Tick advances every active match once. Matches are processed in
// parallel and a failing match never affects the others.
func (e *Engine) Tick(ctx context.Context) {
	e.mu.Lock()
	sims := lo.Values(e.sims)
	e.mu.Unlock()
	if len(sims) == 0 {
		return
	}

	begin := e.clock.Now()
	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)
	for _, sim := range sims {
		g.Go(func() error {
			e.tickMatch(ctx, sim)
			return nil
		})
	}
	_ = g.Wait()

	metrics.Ticks.Inc()
	metrics.TickDuration.Observe(e.clock.Since(begin).Seconds())
}

func (e *Engine) tickMatch(ctx context.Context, sim *simulation) {
	// A match still busy from an earlier tick is skipped, not queued.
	if !sim.mu.TryLock() {
		log.Debug("Skipping busy match", log.MatchID(sim.state.MatchID))
		return
	}
	defer sim.mu.Unlock()
	if sim.done {
		return
	}

	mctx, cancel := context.WithTimeout(ctx, e.cfg.MatchTimeout)
	defer cancel()

	if err := e.advance(mctx, sim); err != nil {
		metrics.TickFailures.Inc()
		log.Error("Failed to progress match",
			log.MatchID(sim.state.MatchID),
			zap.Int("minute", sim.state.CurrentMinute),
			zap.Error(err),
		)
	}
}

// nextStatus resolves the status transition at minute. Only the last one
// is a threshold, the others fire on the exact minute.
func nextStatus(status models.MatchStatus, minute int) (models.MatchStatus, bool) {
	switch {
	case status == models.StatusNotStarted && minute == 0:
		return models.StatusFirstHalf, true
	case status == models.StatusFirstHalf && minute == HalfTimeMinute:
		return models.StatusHalfTime, true
	case status == models.StatusHalfTime && minute == SecondHalfMinute:
		return models.StatusSecondHalf, true
	case status == models.StatusSecondHalf && minute >= FullTimeMinute:
		return models.StatusFullTime, true
	}
	return status, false
}

func (e *Engine) advance(ctx context.Context, sim *simulation) error {
	state := sim.state
	id := state.MatchID

	minute := int(e.clock.Since(state.StartTime) / e.cfg.MinuteDuration)
	if minute == state.CurrentMinute {
		return nil
	}
	state.CurrentMinute = minute

	if next, changed := nextStatus(state.Status, minute); changed {
		if err := e.store.UpdateMatch(ctx, id, models.MatchUpdate{Status: &next, Minute: &minute}); err != nil {
			return fmt.Errorf("failed to persist status %s: %w", next, err)
		}
		state.Status = next
		e.broadcast.BroadcastStatus(ctx, id, next, minute)

		if next == models.StatusFullTime {
			sim.done = true
			e.remove(id, sim)
			metrics.ActiveSimulations.Dec()
			log.Info("Match finished", log.MatchID(id), zap.Int("minute", minute))
			return nil
		}
	} else if err := e.store.UpdateMatch(ctx, id, models.MatchUpdate{Minute: &minute}); err != nil {
		return fmt.Errorf("failed to persist minute: %w", err)
	}

	if state.Status.InPlay() {
		if err := e.generateEvent(ctx, state, minute); err != nil {
			return err
		}
	}

	if minute-state.LastStatsMinute >= StatsRefreshPeriod {
		v := e.events.GenerateStatistics(state.Status, minute)
		if _, err := e.matches.UpsertStatistics(ctx, id, models.PatchFrom(v)); err != nil {
			return fmt.Errorf("failed to refresh statistics: %w", err)
		}
		state.LastStatsMinute = minute
	}

	m, err := e.store.GetMatch(ctx, id)
	if err != nil {
		return err
	}
	log.Info("Match progressed",
		log.MatchID(id),
		zap.Int("minute", minute),
		zap.Int("home", m.HomeScore),
		zap.Int("away", m.AwayScore),
		zap.String("status", string(m.Status)),
	)
	e.broadcast.BroadcastScore(ctx, id, m.HomeScore, m.AwayScore, minute)
	return nil
}

func (e *Engine) generateEvent(ctx context.Context, state *models.SimulationState, minute int) error {
	gen := e.events.GenerateEvent(state, minute)
	if gen == nil {
		return nil
	}

	ev := gen.ToMatchEvent(state.MatchID)
	if _, err := e.matches.CreateEvent(ctx, state.MatchID, &ev); err != nil {
		return fmt.Errorf("failed to record %s: %w", gen.Type, err)
	}
	state.LastEventMinute = minute
	metrics.GeneratedEvents.WithLabelValues(string(gen.Type)).Inc()
	return nil
}

// Run drives Tick every TickInterval until ctx is done. A tick that
// overruns the interval delays the next one instead of overlapping it.
func (e *Engine) Run(ctx context.Context) error {
	sched, err := gocron.NewScheduler(gocron.WithClock(e.clock))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(e.cfg.TickInterval),
		gocron.NewTask(func() {
			e.Tick(ctx)
		}),
		gocron.WithName("simulation-tick"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule ticks: %w", err)
	}

	sched.Start()
	log.Info("Simulation driver started", zap.Duration("interval", e.cfg.TickInterval))

	<-ctx.Done()
	if err := sched.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	log.Info("Simulation driver stopped")
	return nil
}
