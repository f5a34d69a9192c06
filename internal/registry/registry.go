package registry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sawdustofmind/matchcenter/internal/log"
)

const DefaultConnectionTTL = 24 * time.Hour

func subscribersKey(matchID string) string {
	return fmt.Sprintf("match:%s:subscribers", matchID)
}

func connectionKey(connID string) string {
	return fmt.Sprintf("socket:%s", connID)
}

func connectionMatchesKey(connID string) string {
	return fmt.Sprintf("socket:%s:matches", connID)
}

// Registry tracks which connections joined which match rooms. It keeps two
// indices, match -> connections and connection -> matches.
type Registry struct {
	store     SetStore
	ttl       time.Duration
	namespace string
	now       func() time.Time
}

func New(store SetStore, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultConnectionTTL
	}
	return &Registry{
		store:     store,
		ttl:       ttl,
		namespace: "/matches",
		now:       time.Now,
	}
}

func (r *Registry) nowMillis() string {
	return strconv.FormatInt(r.now().UnixMilli(), 10)
}

// Track records a new connection with an expiring metadata entry.
func (r *Registry) Track(ctx context.Context, connID string) error {
	now := r.nowMillis()
	key := connectionKey(connID)
	if err := r.store.HSet(ctx, key, map[string]any{
		"connected_at": now,
		"last_ping":    now,
		"namespace":    r.namespace,
	}); err != nil {
		return fmt.Errorf("failed to track connection %s: %w", connID, err)
	}
	if err := r.store.Expire(ctx, key, r.ttl); err != nil {
		return fmt.Errorf("failed to set expiry of connection %s: %w", connID, err)
	}
	return nil
}

// Touch refreshes the connection's last ping.
func (r *Registry) Touch(ctx context.Context, connID string) error {
	if err := r.store.HSet(ctx, connectionKey(connID), map[string]any{
		"last_ping": r.nowMillis(),
	}); err != nil {
		return fmt.Errorf("failed to touch connection %s: %w", connID, err)
	}
	return nil
}

// Join adds the connection to the match's subscribers. Adding twice is a no-op.
func (r *Registry) Join(ctx context.Context, connID, matchID string) error {
	if err := r.store.SAdd(ctx, subscribersKey(matchID), connID); err != nil {
		return fmt.Errorf("failed to add subscriber to match %s: %w", matchID, err)
	}
	if err := r.store.SAdd(ctx, connectionMatchesKey(connID), matchID); err != nil {
		return fmt.Errorf("failed to index match %s for connection %s: %w", matchID, connID, err)
	}
	if err := r.store.Expire(ctx, connectionMatchesKey(connID), r.ttl); err != nil {
		return fmt.Errorf("failed to set expiry of connection %s: %w", connID, err)
	}
	return nil
}

// Leave removes the connection from the match's subscribers.
func (r *Registry) Leave(ctx context.Context, connID, matchID string) error {
	if err := r.store.SRem(ctx, subscribersKey(matchID), connID); err != nil {
		return fmt.Errorf("failed to remove subscriber from match %s: %w", matchID, err)
	}
	if err := r.store.SRem(ctx, connectionMatchesKey(connID), matchID); err != nil {
		return fmt.Errorf("failed to unindex match %s for connection %s: %w", matchID, connID, err)
	}
	return nil
}

// Disconnect removes the connection from every match it joined, then
// deletes the connection's own entries. Stopping at the first failure keeps
// the connection index intact so a later cleanup can finish the job.
func (r *Registry) Disconnect(ctx context.Context, connID string) error {
	matchIDs, err := r.store.SMembers(ctx, connectionMatchesKey(connID))
	if err != nil {
		return fmt.Errorf("failed to load matches of connection %s: %w", connID, err)
	}

	for _, matchID := range matchIDs {
		if err := r.store.SRem(ctx, subscribersKey(matchID), connID); err != nil {
			return fmt.Errorf("failed to remove connection %s from match %s: %w", connID, matchID, err)
		}
	}

	if err := r.store.Del(ctx, connectionKey(connID), connectionMatchesKey(connID)); err != nil {
		return fmt.Errorf("failed to delete connection %s: %w", connID, err)
	}

	log.Debug("Cleaned up connection",
		zap.String("conn_id", connID),
		zap.Int("matches", len(matchIDs)),
	)
	return nil
}

// Count is the number of connections present in the match room.
func (r *Registry) Count(ctx context.Context, matchID string) (int64, error) {
	n, err := r.store.SCard(ctx, subscribersKey(matchID))
	if err != nil {
		return 0, fmt.Errorf("failed to count subscribers of match %s: %w", matchID, err)
	}
	return n, nil
}

// Members lists the connections present in the match room.
func (r *Registry) Members(ctx context.Context, matchID string) ([]string, error) {
	members, err := r.store.SMembers(ctx, subscribersKey(matchID))
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers of match %s: %w", matchID, err)
	}
	return members, nil
}

// Matches lists the matches the connection joined.
func (r *Registry) Matches(ctx context.Context, connID string) ([]string, error) {
	matchIDs, err := r.store.SMembers(ctx, connectionMatchesKey(connID))
	if err != nil {
		return nil, fmt.Errorf("failed to list matches of connection %s: %w", connID, err)
	}
	return matchIDs, nil
}
