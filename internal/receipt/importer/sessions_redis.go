package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "pending_import:"

// RedisSessions parks pending imports in Redis so a confirmation can land on
// any instance. The TTL bounds how long a preview stays claimable.
type RedisSessions struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessions(client *redis.Client, ttl time.Duration) *RedisSessions {
	return &RedisSessions{client: client, ttl: ttl}
}

func sessionKey(id uuid.UUID) string {
	return sessionKeyPrefix + id.String()
}

func (s *RedisSessions) Put(ctx context.Context, run Run) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal pending import: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(run.ID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("store pending import: %w", err)
	}
	return nil
}

func (s *RedisSessions) Get(ctx context.Context, id uuid.UUID) (Run, error) {
	payload, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Run{}, ErrSessionNotFound
		}
		return Run{}, fmt.Errorf("load pending import: %w", err)
	}
	var run Run
	if err := json.Unmarshal(payload, &run); err != nil {
		return Run{}, fmt.Errorf("decode pending import: %w", err)
	}
	return run, nil
}

func (s *RedisSessions) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("delete pending import: %w", err)
	}
	return nil
}
