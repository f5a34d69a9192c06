package hub

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sawdustofmind/matchcenter/internal/log"
	"github.com/sawdustofmind/matchcenter/internal/metrics"
	"github.com/sawdustofmind/matchcenter/internal/models"
)

// Kind tags a record on the per-match stream.
type Kind string

const (
	KindScore  Kind = "score_update"
	KindEvent  Kind = "match_event"
	KindStats  Kind = "stats_update"
	KindStatus Kind = "status_update"
)

// EventName is the push-channel event name for a kind.
func EventName(k Kind) string {
	switch k {
	case KindScore:
		return "match:score_update"
	case KindEvent:
		return "match:event"
	case KindStats:
		return "match:stats_update"
	case KindStatus:
		return "match:status_update"
	}
	return "match:" + string(k)
}

func idPrefix(k Kind) string {
	switch k {
	case KindScore:
		return "score"
	case KindEvent:
		return "event"
	case KindStats:
		return "stats"
	case KindStatus:
		return "status"
	}
	return string(k)
}

// Record is one logical change of a match, as handed to every sink.
type Record struct {
	ID   string `json:"id"`
	Kind Kind   `json:"type"`
	Data any    `json:"data"`
}

// Sink is a transport that delivers records to the audience of a match.
type Sink interface {
	Name() string
	Publish(ctx context.Context, matchID string, rec Record) error
}

// Hub publishes each change once to every registered sink. Delivery is
// best effort: sink failures are logged and counted, never returned to
// producers.
type Hub struct {
	sinks []Sink
	newID func() string
}

func New(sinks ...Sink) *Hub {
	return &Hub{
		sinks: sinks,
		newID: uuid.NewString,
	}
}

// Register adds a sink; it must be called before the hub is shared.
func (h *Hub) Register(s Sink) {
	h.sinks = append(h.sinks, s)
}

// Broadcast wraps data in a freshly identified record and hands it to all sinks.
// A failing sink is logged and counted; the others still receive the record.
func (h *Hub) Broadcast(ctx context.Context, matchID string, kind Kind, data any) {
	rec := Record{
		ID:   fmt.Sprintf("%s-%s", idPrefix(kind), h.newID()),
		Kind: kind,
		Data: data,
	}
	metrics.Broadcasts.WithLabelValues(string(kind)).Inc()

	for _, s := range h.sinks {
		if err := s.Publish(ctx, matchID, rec); err != nil {
			metrics.SinkFailures.WithLabelValues(s.Name()).Inc()
			log.Warn("Failed to publish record",
				log.MatchID(matchID),
				zap.String("sink", s.Name()),
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
		}
	}
}

func (h *Hub) BroadcastScore(ctx context.Context, matchID string, home, away, minute int) {
	log.Debug("Broadcasting score update",
		log.MatchID(matchID),
		zap.Int("home", home),
		zap.Int("away", away),
		zap.Int("minute", minute),
	)
	h.Broadcast(ctx, matchID, KindScore, models.ScoreUpdate{
		MatchID:   matchID,
		HomeScore: home,
		AwayScore: away,
		Minute:    minute,
	})
}

func (h *Hub) BroadcastEvent(ctx context.Context, matchID string, e models.MatchEvent) {
	log.Debug("Broadcasting match event",
		log.MatchID(matchID),
		zap.String("type", string(e.Type)),
		zap.Int("minute", e.Minute),
	)
	h.Broadcast(ctx, matchID, KindEvent, models.EventBroadcast{
		MatchID: matchID,
		Event:   models.NewEventPayload(e),
	})
}

func (h *Hub) BroadcastStats(ctx context.Context, matchID string, v models.StatisticsValues) {
	log.Debug("Broadcasting statistics update",
		log.MatchID(matchID),
		zap.Int("home_possession", v.HomePossession),
		zap.Int("away_possession", v.AwayPossession),
	)
	h.Broadcast(ctx, matchID, KindStats, models.StatsUpdate{
		MatchID:    matchID,
		Statistics: models.NewStatsPayload(v),
	})
}

func (h *Hub) BroadcastStatus(ctx context.Context, matchID string, status models.MatchStatus, minute int) {
	log.Debug("Broadcasting status update",
		log.MatchID(matchID),
		zap.String("status", string(status)),
		zap.Int("minute", minute),
	)
	h.Broadcast(ctx, matchID, KindStatus, models.StatusUpdate{
		MatchID: matchID,
		Status:  status,
		Minute:  minute,
	})
}
