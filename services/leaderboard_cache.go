// services/leaderboard_cache.go
package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// LeaderboardCache mirrors tournament gem scores into a Redis sorted set so
// leaderboard reads don't hit the database on every request. The store stays
// the source of truth; the cache is a read accelerator and every method on a
// nil receiver is a no-op, so running without Redis just falls back to SQL.
type LeaderboardCache struct {
	client *redis.Client
}

func NewLeaderboardCache(addr, password string) (*LeaderboardCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &LeaderboardCache{client: client}, nil
}

func leaderboardKey(tournamentID string) string {
	return fmt.Sprintf("tournament:%s:leaderboard", tournamentID)
}

// BumpScore adds delta to the user's cached tournament score. Best-effort:
// a cache miss only means the next read falls back to the database.
func (c *LeaderboardCache) BumpScore(tournamentID, userID string, delta int) {
	if c == nil || delta == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.client.ZIncrBy(ctx, leaderboardKey(tournamentID), float64(delta), userID).Err(); err != nil {
		log.Printf("⚠️ [Cache] score bump failed for %s: %v", userID, err)
	}
}

// Top returns up to limit (userID, score) pairs, highest score first.
func (c *LeaderboardCache) Top(tournamentID string, limit int) ([]redis.Z, error) {
	if c == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.client.ZRevRangeWithScores(ctx, leaderboardKey(tournamentID), 0, int64(limit-1)).Result()
}

// Rank returns the user's zero-based position, or -1 when absent.
func (c *LeaderboardCache) Rank(tournamentID, userID string) int64 {
	if c == nil {
		return -1
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rank, err := c.client.ZRevRank(ctx, leaderboardKey(tournamentID), userID).Result()
	if err != nil {
		return -1
	}
	return rank
}

// Drop discards the cached board when a tournament closes.
func (c *LeaderboardCache) Drop(tournamentID string) {
	if c == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.client.Del(ctx, leaderboardKey(tournamentID)).Err(); err != nil {
		log.Printf("⚠️ [Cache] drop failed for %s: %v", tournamentID, err)
	}
}

func (c *LeaderboardCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
