package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixtures.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseFile(t *testing.T) {
	req := require.New(t)
	now := time.Unix(1_700_000_000, 0)

	path := writeFile(t, `# weekend fixtures
{"home_team":"Arsenal","away_team":"Chelsea","kickoff_in":"2h"}

{"home_team":"Leeds","away_team":"Everton","kickoff_time":1600000000}
{"home_team":"Fulham"
{"home_team":"","away_team":"Burnley"}
{"home_team":"Wolves","away_team":"Brentford","kickoff_in":"soon"}
{"home_team":"Spurs","away_team":"Villa"}
`)

	fixtures, err := ParseFile(path, now)
	req.NoError(err)
	req.Len(fixtures, 3)

	// Sorted by kickoff
	req.Equal("Leeds", fixtures[0].Fixture.HomeTeam)
	req.Equal(4, fixtures[0].LineNumber)
	req.Equal("Spurs", fixtures[1].Fixture.HomeTeam)
	req.Equal(now, fixtures[1].Kickoff)
	req.Equal("Arsenal", fixtures[2].Fixture.HomeTeam)
	req.Equal(now.Add(2*time.Hour), fixtures[2].Kickoff)
}

func TestParseFile_Missing(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "nope.jsonl"), time.Now())
	require.Error(t, err)
}

type fakeCenter struct {
	mu      sync.Mutex
	created []createMatchBody
	started int
}

func (f *fakeCenter) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /api/v1/matches", func(w http.ResponseWriter, r *http.Request) {
		var body createMatchBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.HomeTeam == "Broken" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":"VALIDATION_ERROR","message":"bad"}}`))
			return
		}
		f.mu.Lock()
		f.created = append(f.created, body)
		n := len(f.created)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_, _ = fmt.Fprintf(w, `{"data":{"id":"m%d"}}`, n)
	})
	mux.HandleFunc("POST /api/v1/simulator/matches/start-multiple", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		f.started++
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"matchIds":["m1","m2"],"message":"Started simulating 2 match(es). Total active matches: 2"}}`))
	})
	return mux
}

func TestSender_Seed(t *testing.T) {
	req := require.New(t)
	center := &fakeCenter{}
	srv := httptest.NewServer(center.handler())
	defer srv.Close()

	kickoff := time.Unix(1_600_000_000, 0)
	fixtures := []ParsedFixture{
		{LineNumber: 1, Fixture: Fixture{HomeTeam: "Arsenal", AwayTeam: "Chelsea"}, Kickoff: kickoff},
		{LineNumber: 2, Fixture: Fixture{HomeTeam: "Broken", AwayTeam: "Chelsea"}, Kickoff: kickoff},
		{LineNumber: 3, Fixture: Fixture{HomeTeam: "Leeds", AwayTeam: "Everton"}, Kickoff: kickoff},
	}

	// When seeding with a pace
	sender := NewSender(srv.URL)
	start := time.Now()
	ids, err := sender.Seed(context.Background(), fixtures, 20*time.Millisecond)

	// Then the failing fixture is skipped and the rest are paced
	req.NoError(err)
	req.Equal([]string{"m1", "m2"}, ids)
	req.GreaterOrEqual(time.Since(start), 20*time.Millisecond)
	req.Len(center.created, 2)
	req.Equal(kickoff.Unix(), center.created[0].KickoffTime)

	started, err := sender.StartMultiple(context.Background())
	req.NoError(err)
	req.Equal([]string{"m1", "m2"}, started)
	req.Equal(1, center.started)
}

func TestSender_SeedStopsOnCancel(t *testing.T) {
	center := &fakeCenter{}
	srv := httptest.NewServer(center.handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	fixtures := []ParsedFixture{
		{Fixture: Fixture{HomeTeam: "A", AwayTeam: "B"}},
		{Fixture: Fixture{HomeTeam: "C", AwayTeam: "D"}},
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	ids, err := NewSender(srv.URL).Seed(ctx, fixtures, time.Hour)

	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []string{"m1"}, ids)
}

func TestSender_HeartbeatFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewSender(srv.URL).Seed(context.Background(), nil, time.Millisecond)
	require.Error(t, err)
}
