package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sawdustofmind/matchcenter/internal/log"
)

type Sender struct {
	httpClient *http.Client
	baseURL    string
}

func NewSender(baseURL string) *Sender {
	return &Sender{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type createMatchBody struct {
	HomeTeam    string `json:"home_team"`
	AwayTeam    string `json:"away_team"`
	KickoffTime int64  `json:"kickoff_time"`
}

type dataEnvelope[T any] struct {
	Data T `json:"data"`
}

type createdMatch struct {
	ID string `json:"id"`
}

type startedMatches struct {
	MatchIDs []string `json:"matchIds"`
	Message  string   `json:"message"`
}

func (s *Sender) post(ctx context.Context, path string, body any, want int, dst any) error {
	var payload io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		payload = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Error("Failed to close response body", zap.Error(closeErr))
		}
	}()

	if resp.StatusCode != want {
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%s returned status %d and failed to read body", path, resp.StatusCode)
		}
		return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, string(raw))
	}
	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// SendHeartbeat checks that the match center is up.
func (s *Sender) SendHeartbeat(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create heartbeat request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send heartbeat: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Error("Failed to close heartbeat response body", zap.Error(closeErr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("heartbeat returned status %d", resp.StatusCode)
	}
	return nil
}

// CreateMatch creates the fixture and returns the new match id.
func (s *Sender) CreateMatch(ctx context.Context, f ParsedFixture) (string, error) {
	var out dataEnvelope[createdMatch]
	err := s.post(ctx, "/api/v1/matches", createMatchBody{
		HomeTeam:    f.Fixture.HomeTeam,
		AwayTeam:    f.Fixture.AwayTeam,
		KickoffTime: f.Kickoff.Unix(),
	}, http.StatusCreated, &out)
	if err != nil {
		return "", err
	}
	return out.Data.ID, nil
}

// StartMultiple asks the simulator to kick off the oldest pending matches.
func (s *Sender) StartMultiple(ctx context.Context) ([]string, error) {
	var out dataEnvelope[startedMatches]
	if err := s.post(ctx, "/api/v1/simulator/matches/start-multiple", nil, http.StatusCreated, &out); err != nil {
		return nil, err
	}
	log.Info("Requested simulations", zap.String("message", out.Data.Message))
	return out.Data.MatchIDs, nil
}

// Seed creates the fixtures in order, at most one per pace interval.
// Failed fixtures are logged and skipped. It returns the created ids.
func (s *Sender) Seed(ctx context.Context, fixtures []ParsedFixture, pace time.Duration) ([]string, error) {
	if err := s.SendHeartbeat(ctx); err != nil {
		return nil, err
	}

	var created []string
	lastSent := time.Time{}

	for _, f := range fixtures {
		now := time.Now()
		if !lastSent.IsZero() && now.Sub(lastSent) < pace {
			select {
			case <-ctx.Done():
				return created, ctx.Err()
			case <-time.After(pace - now.Sub(lastSent)):
			}
		}

		id, err := s.CreateMatch(ctx, f)
		if err != nil {
			if ctx.Err() != nil {
				return created, ctx.Err()
			}
			log.Error("Failed to create match",
				zap.Int("line_number", f.LineNumber),
				zap.String("home_team", f.Fixture.HomeTeam),
				zap.String("away_team", f.Fixture.AwayTeam),
				zap.Error(err),
			)
			continue
		}
		log.Info("Created match",
			log.MatchID(id),
			zap.Int("line_number", f.LineNumber),
			zap.Int("total_fixtures", len(fixtures)),
			zap.Time("kickoff", f.Kickoff),
		)
		created = append(created, id)
		lastSent = time.Now()
	}
	return created, nil
}
