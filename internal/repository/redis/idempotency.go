// Package redis stores checkout idempotency keys so that a retried request
// replays the original response instead of placing a second order.
package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix    = "idempotency:"
	pendingValue = "pending"
)

// ErrInFlight is returned when the same key is being processed by another request
var ErrInFlight = stderrors.New("request with this idempotency key is still in progress")

// releasePendingScript deletes the key only while it is still pending, so a
// completed response is never dropped by a late release
var releasePendingScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// Response is the stored outcome of a completed request
type Response struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

// Reserve claims key for the caller. It returns (nil, nil) when the claim
// succeeded, the stored response when the key already completed, or
// ErrInFlight while another request holds it.
func (s *IdempotencyStore) Reserve(ctx context.Context, key string) (*Response, error) {
	ok, err := s.client.SetNX(ctx, keyPrefix+key, pendingValue, s.ttl).Result()
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, nil
	}

	raw, err := s.client.Get(ctx, keyPrefix+key).Result()
	if err == redis.Nil {
		// expired between SETNX and GET; claim again
		return s.Reserve(ctx, key)
	}
	if err != nil {
		return nil, err
	}
	if raw == pendingValue {
		return nil, ErrInFlight
	}

	var resp Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Complete stores the response for replay and keeps the key for the TTL
func (s *IdempotencyStore) Complete(ctx context.Context, key string, resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, keyPrefix+key, data, s.ttl).Err()
}

// Release frees a pending key so the client may retry after a failure
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return releasePendingScript.Run(ctx, s.client, []string{keyPrefix + key}, pendingValue).Err()
}
