package generator

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/sawdustofmind/matchcenter/internal/models"
)

// Per-minute event probabilities.
const (
	GoalFirstHalf        = 0.020
	GoalSecondHalf       = 0.035
	YellowCardFirstHalf  = 0.030
	YellowCardSecondHalf = 0.050
	RedCard              = 0.002
	Substitution         = 0.01
	Foul                 = 0.40
	Shot                 = 0.25

	// HomeBias is the chance an event belongs to the home side.
	HomeBias = 0.52

	SubstitutionWindowStart = 60
	SubstitutionWindowEnd   = 85

	FullTimeMinute = 90
)

// NameSource produces display names for players.
type NameSource interface {
	Name() string
}

// Generator turns match progress into events and statistics. It is safe
// for concurrent use; two generators built with the same seed produce the
// same sequence of outputs.
type Generator struct {
	mu    sync.Mutex
	rng   *rand.Rand
	names NameSource
}

func New(seed uint64) *Generator {
	return &Generator{
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		names: gofakeit.New(seed),
	}
}

// NewRandom seeds the generator from the runtime's entropy source.
func NewRandom() *Generator {
	return New(rand.Uint64())
}

// WithNames replaces the player name source.
func (g *Generator) WithNames(names NameSource) *Generator {
	g.names = names
	return g
}

type band struct {
	eventType   models.EventType
	probability float64
}

func bands(status models.MatchStatus, minute int) []band {
	secondHalf := status == models.StatusSecondHalf
	goal, yellow := GoalFirstHalf, YellowCardFirstHalf
	if secondHalf {
		goal, yellow = GoalSecondHalf, YellowCardSecondHalf
	}
	sub := 0.0
	if minute >= SubstitutionWindowStart && minute <= SubstitutionWindowEnd {
		sub = Substitution
	}
	return []band{
		{models.EventGoal, goal},
		{models.EventYellowCard, yellow},
		{models.EventRedCard, RedCard},
		{models.EventSubstitution, sub},
		{models.EventFoul, Foul},
		{models.EventShot, Shot},
	}
}

// GenerateEvent draws at most one event for the given minute. The only
// side effect is advancing the state's substitution counter when a
// substitution is produced.
func (g *Generator) GenerateEvent(state *models.SimulationState, minute int) *models.GeneratedEvent {
	if !state.Status.InPlay() {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	r := g.rng.Float64()
	team := models.TeamAway
	if g.rng.Float64() < HomeBias {
		team = models.TeamHome
	}

	upper := 0.0
	for _, b := range bands(state.Status, minute) {
		upper += b.probability
		if r >= upper {
			continue
		}
		if b.eventType == models.EventSubstitution {
			if !state.CanSubstitute(team) {
				return nil
			}
			state.AddSubstitution(team)
		}
		return g.build(b.eventType, minute, team)
	}
	return nil
}

// build must be called with g.mu held.
func (g *Generator) build(t models.EventType, minute int, team models.Team) *models.GeneratedEvent {
	side := strings.ToLower(string(team))
	ev := &models.GeneratedEvent{Type: t, Minute: minute, Team: team}

	switch t {
	case models.EventGoal:
		ev.Description = fmt.Sprintf("%s team scores!", strings.ToUpper(side[:1])+side[1:])
	case models.EventYellowCard:
		ev.Description = fmt.Sprintf("Yellow card shown to %s team player", side)
	case models.EventRedCard:
		ev.Description = fmt.Sprintf("Red card shown to %s team player", side)
	case models.EventSubstitution:
		ev.Description = fmt.Sprintf("Substitution for %s team", side)
	case models.EventFoul:
		ev.Description = fmt.Sprintf("Foul committed by %s team", side)
		return ev
	case models.EventShot:
		ev.Description = fmt.Sprintf("Shot by %s team", side)
	}

	player := g.names.Name()
	ev.Player = &player
	return ev
}

// GenerateStatistics produces a plausible statistics snapshot for the
// minute reached. Values grow with progress = minute/90.
func (g *Generator) GenerateStatistics(status models.MatchStatus, minute int) models.StatisticsValues {
	g.mu.Lock()
	defer g.mu.Unlock()

	progress := float64(minute) / FullTimeMinute
	rnd := g.rng.Float64
	floor := func(f float64) int { return int(math.Floor(f)) }

	homePossession := int(math.Round(clamp(50+(rnd()-0.5)*10, 40, 60)))

	baseShots := floor(progress*20 + rnd()*5)
	homeShots := baseShots + floor(rnd()*3)
	awayShots := baseShots - floor(rnd()*3)

	homeOnTarget := floor(float64(homeShots) * (0.35 + rnd()*0.1))
	awayOnTarget := floor(float64(awayShots) * (0.35 + rnd()*0.1))

	passBase := 200.0
	if status == models.StatusSecondHalf {
		passBase = 400
	}
	basePasses := floor(passBase + progress*200 + rnd()*100)
	homePasses := basePasses + floor(rnd()*50)
	awayPasses := basePasses - floor(rnd()*50)

	homeCompleted := floor(float64(homePasses) * (0.85 + rnd()*0.1))
	awayCompleted := floor(float64(awayPasses) * (0.85 + rnd()*0.1))

	return models.StatisticsValues{
		HomePossession:      homePossession,
		AwayPossession:      100 - homePossession,
		HomeShots:           nonNegative(homeShots),
		AwayShots:           nonNegative(awayShots),
		HomeShotsOnTarget:   nonNegative(homeOnTarget),
		AwayShotsOnTarget:   nonNegative(awayOnTarget),
		HomePasses:          nonNegative(homePasses),
		AwayPasses:          nonNegative(awayPasses),
		HomePassesCompleted: nonNegative(homeCompleted),
		AwayPassesCompleted: nonNegative(awayCompleted),
		HomeFouls:           nonNegative(floor(progress*8 + rnd()*3)),
		AwayFouls:           nonNegative(floor(progress*8 + rnd()*3)),
		HomeCorners:         nonNegative(floor(progress*5 + rnd()*2)),
		AwayCorners:         nonNegative(floor(progress*5 + rnd()*2)),
		HomeOffsides:        nonNegative(floor(progress*2 + rnd())),
		AwayOffsides:        nonNegative(floor(progress*2 + rnd())),
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
