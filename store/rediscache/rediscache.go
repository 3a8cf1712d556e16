// Package rediscache caches normalized ballot batches per contest, the
// fast-path role the teacher's VOTE_BACKEND_FAST slot reserved for a Redis
// backend: a short-lived store in front of the durable Postgres record so
// a re-run against the same CVR batch skips re-parsing it.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/rcvtab/tabulator/tabulation"
)

// DefaultTTL is how long a cached ballot batch survives before it must be
// re-read from its CVR source.
const DefaultTTL = 24 * time.Hour

// Cache wraps a redigo connection pool. Build one with New.
type Cache struct {
	pool *redis.Pool
	ttl  time.Duration
}

// New builds a Cache dialing addr (host:port) on demand, up to maxIdle
// idle connections kept warm.
func New(addr string, maxIdle int) *Cache {
	pool := &redis.Pool{
		MaxIdle:     maxIdle,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			_, err := c.Do("PING")
			return err
		},
	}
	return &Cache{pool: pool, ttl: DefaultTTL}
}

// Close releases every pooled connection.
func (c *Cache) Close() error {
	return c.pool.Close()
}

func batchKey(contestID, batchID string) string {
	return fmt.Sprintf("rcvtab:ballots:%s:%s", contestID, batchID)
}

// SaveBallots caches the normalized ballots read from one CVR batch.
func (c *Cache) SaveBallots(ctx context.Context, contestID, batchID string, ballots []tabulation.Ballot) error {
	data, err := json.Marshal(ballots)
	if err != nil {
		return fmt.Errorf("encoding ballot batch: %w", err)
	}

	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("getting redis connection: %w", err)
	}
	defer conn.Close()

	_, err = conn.Do("SET", batchKey(contestID, batchID), data, "EX", int(c.ttl.Seconds()))
	if err != nil {
		return fmt.Errorf("caching ballot batch %s/%s: %w", contestID, batchID, err)
	}
	return nil
}

// LoadBallots returns the cached ballots for a batch, and whether they were
// found at all.
func (c *Cache) LoadBallots(ctx context.Context, contestID, batchID string) ([]tabulation.Ballot, bool, error) {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("getting redis connection: %w", err)
	}
	defer conn.Close()

	data, err := redis.Bytes(conn.Do("GET", batchKey(contestID, batchID)))
	if err != nil {
		if err == redis.ErrNil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("fetching ballot batch %s/%s: %w", contestID, batchID, err)
	}

	var ballots []tabulation.Ballot
	if err := json.Unmarshal(data, &ballots); err != nil {
		return nil, false, fmt.Errorf("decoding cached ballot batch: %w", err)
	}
	return ballots, true, nil
}

// ClearBatch evicts one cached batch ahead of its TTL, for a CVR file that
// was re-read after a correction.
func (c *Cache) ClearBatch(ctx context.Context, contestID, batchID string) error {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("getting redis connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Do("DEL", batchKey(contestID, batchID)); err != nil {
		return fmt.Errorf("clearing ballot batch %s/%s: %w", contestID, batchID, err)
	}
	return nil
}
