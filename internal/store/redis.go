package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dgallion1/sectiongest/internal/doctree"
)

const (
	redisDocPrefix  = "sectiongest:doc:"
	redisHashPrefix = "sectiongest:hash:"
	redisDocsSet    = "sectiongest:docs"
)

// Redis stores results as JSON strings with an optional TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to Redis and verifies the connection with PING.
func NewRedis(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Redis, error) {
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, &RetryableError{Op: "connect redis", Err: err}
	}

	return &Redis{client: client, ttl: ttl}, nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Put(ctx context.Context, res *doctree.Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisDocPrefix+res.DocID, data, r.ttl)
		if res.ContentHash != "" {
			pipe.Set(ctx, redisHashPrefix+res.ContentHash, res.DocID, r.ttl)
		}
		pipe.SAdd(ctx, redisDocsSet, res.DocID)
		return nil
	})
	if err != nil {
		return &RetryableError{Op: "put document", Err: err}
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, docID string) (*doctree.Result, error) {
	data, err := r.client.Get(ctx, redisDocPrefix+docID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, &RetryableError{Op: "get document", Err: err}
	}
	var res doctree.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", docID, err)
	}
	return &res, nil
}

func (r *Redis) List(ctx context.Context) ([]doctree.Summary, error) {
	ids, err := r.client.SMembers(ctx, redisDocsSet).Result()
	if err != nil {
		return nil, &RetryableError{Op: "list documents", Err: err}
	}
	summaries := []doctree.Summary{}
	if len(ids) == 0 {
		return summaries, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisDocPrefix + id
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, &RetryableError{Op: "list documents", Err: err}
	}

	var expired []any
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		var res doctree.Result
		if err := json.Unmarshal([]byte(s), &res); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", ids[i], err)
		}
		summaries = append(summaries, res.Summary())
	}
	if len(expired) > 0 {
		// Members whose document key expired.
		r.client.SRem(ctx, redisDocsSet, expired...)
	}

	sortSummaries(summaries)
	return summaries, nil
}

func (r *Redis) Delete(ctx context.Context, docID string) error {
	res, err := r.Get(ctx, docID)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisDocPrefix+docID)
		pipe.SRem(ctx, redisDocsSet, docID)
		return nil
	})
	if err != nil {
		return &RetryableError{Op: "delete document", Err: err}
	}
	if res.ContentHash != "" {
		key := redisHashPrefix + res.ContentHash
		if owner, err := r.client.Get(ctx, key).Result(); err == nil && owner == docID {
			r.client.Del(ctx, key)
		}
	}
	return nil
}

func (r *Redis) FindByHash(ctx context.Context, hash string) (string, error) {
	docID, err := r.client.Get(ctx, redisHashPrefix+hash).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", &RetryableError{Op: "find hash", Err: err}
	}
	return docID, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
