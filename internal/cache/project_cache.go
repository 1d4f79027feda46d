// Package cache keeps materialized project views in Redis for single-project
// reads. Writers invalidate after commit by bumping a per-project generation;
// a reader only fills the cache if the generation it saw before fetching is
// still current. The TTL bounds staleness if an invalidation is lost.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"geo-bknd/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	projectKeyPrefix    = "geo:project:"     // geo:project:{project_id}
	generationKeyPrefix = "geo:project:gen:" // geo:project:gen:{project_id}

	// generationTTL outlives any read that can be in flight.
	generationTTL = 24 * time.Hour
)

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// NewClient parses a redis:// URL and checks the server answers.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// Get returns the cached view for id. A miss reports false with a nil error.
func (c *RedisCache) Get(ctx context.Context, id int64) (*models.ProjectView, bool, error) {
	data, err := c.client.Get(ctx, projectKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get cached project %d: %w", id, err)
	}

	var view models.ProjectView
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached project %d: %w", id, err)
	}
	return &view, true, nil
}

// Generation returns the invalidation counter of project id. A project never
// invalidated is at generation zero.
func (c *RedisCache) Generation(ctx context.Context, id int64) (int64, error) {
	gen, err := readGeneration(ctx, c.client, generationKey(id))
	if err != nil {
		return 0, fmt.Errorf("failed to get generation of project %d: %w", id, err)
	}
	return gen, nil
}

// SetIfCurrent caches view only while the project is still at generation gen.
// A view fetched before a concurrent invalidation is silently dropped.
func (c *RedisCache) SetIfCurrent(ctx context.Context, view *models.ProjectView, gen int64) error {
	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to encode project %d: %w", view.ID, err)
	}

	genKey := generationKey(view.ID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readGeneration(ctx, tx, genKey)
		if err != nil {
			return err
		}
		if current != gen {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, projectKey(view.ID), data, c.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil, errors.Is(err, errStale), errors.Is(err, redis.TxFailedErr):
		return nil
	default:
		return fmt.Errorf("failed to cache project %d: %w", view.ID, err)
	}
}

// Invalidate bumps the generation of project id and drops its cached view.
func (c *RedisCache) Invalidate(ctx context.Context, id int64) error {
	genKey := generationKey(id)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, generationTTL)
		pipe.Del(ctx, projectKey(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate project %d: %w", id, err)
	}
	return nil
}

var errStale = errors.New("cache: generation moved")

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readGeneration(ctx context.Context, r stringGetter, key string) (int64, error) {
	gen, err := r.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func projectKey(id int64) string {
	return projectKeyPrefix + strconv.FormatInt(id, 10)
}

func generationKey(id int64) string {
	return generationKeyPrefix + strconv.FormatInt(id, 10)
}

// NopCache is used when no Redis is configured. Every Get misses.
type NopCache struct{}

func (NopCache) Get(context.Context, int64) (*models.ProjectView, bool, error) {
	return nil, false, nil
}

func (NopCache) Generation(context.Context, int64) (int64, error) { return 0, nil }

func (NopCache) SetIfCurrent(context.Context, *models.ProjectView, int64) error { return nil }

func (NopCache) Invalidate(context.Context, int64) error { return nil }
