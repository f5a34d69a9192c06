package hub

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sawdustofmind/matchcenter/internal/log"
	"github.com/sawdustofmind/matchcenter/internal/metrics"
	"github.com/sawdustofmind/matchcenter/internal/models"
)

type recordingSink struct {
	mu      sync.Mutex
	name    string
	err     error
	records map[string][]Record
}

func newRecordingSink(name string) *recordingSink {
	return &recordingSink{name: name, records: make(map[string][]Record)}
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Publish(_ context.Context, matchID string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records[matchID] = append(s.records[matchID], rec)
	return nil
}

func (s *recordingSink) For(matchID string) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records[matchID]...)
}

func TestHub_Broadcast_ReachesEverySink(t *testing.T) {
	req := require.New(t)
	rooms := newRecordingSink("rooms")
	streams := newRecordingSink("stream")
	h := New(rooms, streams)

	h.BroadcastScore(context.Background(), "m1", 2, 1, 67)

	req.Len(rooms.For("m1"), 1)
	req.Len(streams.For("m1"), 1)
	rec := rooms.For("m1")[0]
	req.Equal(rec, streams.For("m1")[0])
	req.Equal(KindScore, rec.Kind)
	req.True(strings.HasPrefix(rec.ID, "score-"))
	req.Equal(models.ScoreUpdate{MatchID: "m1", HomeScore: 2, AwayScore: 1, Minute: 67}, rec.Data)
	req.Empty(rooms.For("m2"))
}

func TestHub_Broadcast_FreshIDPerEmission(t *testing.T) {
	req := require.New(t)
	sink := newRecordingSink("rooms")
	h := New(sink)

	h.BroadcastStatus(context.Background(), "m1", models.StatusHalfTime, 45)
	h.BroadcastStatus(context.Background(), "m1", models.StatusSecondHalf, 46)

	recs := sink.For("m1")
	req.Len(recs, 2)
	req.NotEqual(recs[0].ID, recs[1].ID)
	req.True(strings.HasPrefix(recs[0].ID, "status-"))
}

func TestHub_Broadcast_FailingSinkDoesNotStopOthers(t *testing.T) {
	req := require.New(t)
	broken := newRecordingSink("rooms")
	broken.err = errors.New("connection reset")
	healthy := newRecordingSink("stream")
	h := New(broken, healthy)

	core, logs := observer.New(zapcore.WarnLevel)
	log.Set(zap.New(core))
	t.Cleanup(func() { log.Set(nil) })
	failed := metrics.SinkFailures.WithLabelValues("rooms")
	before := testutil.ToFloat64(failed)

	h.Broadcast(context.Background(), "m1", KindEvent, models.EventBroadcast{MatchID: "m1"})

	req.Len(healthy.For("m1"), 1)

	failures := logs.FilterMessage("Failed to publish record").All()
	req.Len(failures, 1)
	req.Equal("rooms", failures[0].ContextMap()["sink"])
	req.Equal("m1", failures[0].ContextMap()["match_id"])
	req.Equal(before+1, testutil.ToFloat64(failed))
}

func TestHub_Register_AddsSink(t *testing.T) {
	h := New()
	sink := newRecordingSink("extra")
	h.Register(sink)

	h.BroadcastStats(context.Background(), "m1", models.DefaultStatisticsValues())

	recs := sink.For("m1")
	require.Len(t, recs, 1)
	require.Equal(t, KindStats, recs[0].Kind)
	require.Equal(t, 50, recs[0].Data.(models.StatsUpdate).Statistics.HomePossession)
}

func TestEventName(t *testing.T) {
	require.Equal(t, "match:score_update", EventName(KindScore))
	require.Equal(t, "match:event", EventName(KindEvent))
	require.Equal(t, "match:stats_update", EventName(KindStats))
	require.Equal(t, "match:status_update", EventName(KindStatus))
}

func receive(t *testing.T, sub *Subscription) Record {
	t.Helper()
	select {
	case rec := <-sub.C():
		return rec
	case <-time.After(time.Second):
		t.Fatal("no record received")
	}
	return Record{}
}

func TestStreams_LateReaderNeverSeesEarlierRecord(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewStreams(8)

	// Given a reader attached before the first publish
	early := s.Attach("m1")
	defer early.Close()

	// When a record is published
	req.NoError(s.Publish(ctx, "m1", Record{ID: "event-1", Kind: KindEvent}))

	// And a second reader attaches afterwards
	late := s.Attach("m1")
	defer late.Close()
	req.NoError(s.Publish(ctx, "m1", Record{ID: "event-2", Kind: KindEvent}))

	// Then the early reader saw both, the late one only the second
	req.Equal("event-1", receive(t, early).ID)
	req.Equal("event-2", receive(t, early).ID)
	req.Equal("event-2", receive(t, late).ID)
	select {
	case rec := <-late.C():
		t.Fatalf("unexpected record %s", rec.ID)
	default:
	}
}

func TestStreams_DetachIsolatedAndReleasesOnLastReader(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewStreams(8)

	a := s.Attach("m1")
	b := s.Attach("m1")
	req.Equal(2, s.Readers("m1"))

	// When one reader detaches
	a.Close()
	a.Close()

	// Then the other still receives
	req.Equal(1, s.Readers("m1"))
	req.True(s.Active("m1"))
	req.NoError(s.Publish(ctx, "m1", Record{ID: "x"}))
	req.Equal("x", receive(t, b).ID)

	// And the detached channel is closed
	_, open := <-a.C()
	req.False(open)

	// When the last reader detaches the stream is released
	b.Close()
	req.Zero(s.Readers("m1"))
	req.False(s.Active("m1"))
}

func TestStreams_PublishCreatesStreamLazily(t *testing.T) {
	s := NewStreams(0)
	require.False(t, s.Active("m1"))

	require.NoError(t, s.Publish(context.Background(), "m1", Record{ID: "x"}))

	require.True(t, s.Active("m1"))
	require.Zero(t, s.Readers("m1"))
}

func TestStreams_SlowReaderDropsInsteadOfBlocking(t *testing.T) {
	req := require.New(t)
	s := NewStreams(2)
	slow := s.Attach("m1")
	defer slow.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			_ = s.Publish(context.Background(), "m1", Record{ID: "r"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on slow reader")
	}
	req.Len(slow.C(), 2)
}

func TestStreams_OnlyMatchingMatchReceives(t *testing.T) {
	s := NewStreams(4)
	other := s.Attach("m2")
	defer other.Close()

	require.NoError(t, s.Publish(context.Background(), "m1", Record{ID: "x"}))

	require.Len(t, other.C(), 0)
}
