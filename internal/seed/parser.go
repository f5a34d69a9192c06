package seed

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sawdustofmind/matchcenter/internal/log"
)

// Fixture is one line of a fixtures file. Kickoff is either absolute
// (kickoff_time, unix seconds) or relative to load time (kickoff_in).
type Fixture struct {
	HomeTeam    string `json:"home_team"`
	AwayTeam    string `json:"away_team"`
	KickoffTime int64  `json:"kickoff_time,omitempty"`
	KickoffIn   string `json:"kickoff_in,omitempty"`
}

type ParsedFixture struct {
	LineNumber int
	Fixture    Fixture
	Kickoff    time.Time
}

// ParseFile reads a JSON-lines fixtures file and returns the fixtures
// ordered by kickoff. Blank lines and lines starting with # are skipped;
// malformed lines are logged and skipped.
func ParseFile(filePath string, now time.Time) ([]ParsedFixture, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Error("Failed to close file", zap.Error(closeErr))
		}
	}()

	scanner := bufio.NewScanner(file)
	var fixtures []ParsedFixture
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var f Fixture
		if err := json.Unmarshal([]byte(line), &f); err != nil {
			log.Warn("Failed to parse line as JSON",
				zap.Int("line_number", lineNum),
				zap.Error(err),
			)
			continue
		}
		if f.HomeTeam == "" || f.AwayTeam == "" {
			log.Warn("Skipping fixture without teams", zap.Int("line_number", lineNum))
			continue
		}

		kickoff, err := f.kickoff(now)
		if err != nil {
			log.Warn("Skipping fixture with bad kickoff",
				zap.Int("line_number", lineNum),
				zap.Error(err),
			)
			continue
		}

		fixtures = append(fixtures, ParsedFixture{
			LineNumber: lineNum,
			Fixture:    f,
			Kickoff:    kickoff,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	sort.SliceStable(fixtures, func(i, j int) bool {
		return fixtures[i].Kickoff.Before(fixtures[j].Kickoff)
	})

	log.Info("Successfully parsed fixtures", zap.Int("fixture_count", len(fixtures)))
	return fixtures, nil
}

func (f Fixture) kickoff(now time.Time) (time.Time, error) {
	switch {
	case f.KickoffTime > 0:
		return time.Unix(f.KickoffTime, 0), nil
	case f.KickoffIn != "":
		d, err := time.ParseDuration(f.KickoffIn)
		if err != nil {
			return time.Time{}, err
		}
		return now.Add(d), nil
	}
	return now, nil
}
