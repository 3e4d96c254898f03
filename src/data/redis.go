package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stake-plus/mod-review/src/types"
)

const (
	statePrefix      = "oauth:state:"
	stateTTL         = 5 * time.Minute
	StreamTransition = "review.transitions"
)

// ErrStateNotFound is returned for an unknown, expired or already used OAuth state.
var ErrStateNotFound = errors.New("oauth state not found or expired")

// ConnectRedis parses a redis:// URL and pings the server.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// NewOAuthState stores a 5-minute login state nonce and returns it.
func NewOAuthState(ctx context.Context, rdb *redis.Client, redirect string) (string, error) {
	state := uuid.NewString()
	return state, rdb.Set(ctx, statePrefix+state, redirect, stateTTL).Err()
}

// ConsumeOAuthState deletes the nonce and returns the redirect saved with it.
func ConsumeOAuthState(ctx context.Context, rdb *redis.Client, state string) (string, error) {
	redirect, err := rdb.GetDel(ctx, statePrefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrStateNotFound
	}
	return redirect, err
}

// PublishTransition appends a transition event to the review stream.
func PublishTransition(ctx context.Context, rdb *redis.Client, maxLen int64, ev types.TransitionEvent) (string, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return "", err
	}
	return rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamTransition,
		MaxLen: maxLen,
		Approx: maxLen > 0,
		Values: map[string]interface{}{
			"application_id": string(ev.ApplicationID),
			"action":         string(ev.Action),
			"event":          string(payload),
		},
	}).Result()
}
