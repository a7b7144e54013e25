package guard

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"intake-workers/internal/common/errors"
	"intake-workers/internal/common/metrics"

	"github.com/redis/go-redis/v9"
)

const eventPrefix = "intake:event:"

// Dedupe caches the reply of each processed event, keyed per identity.
type Dedupe struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDedupe(client *redis.Client, ttl time.Duration) *Dedupe {
	return &Dedupe{client: client, ttl: ttl}
}

func eventKey(identity, eventID string) string {
	return eventPrefix + identity + ":" + eventID
}

// Seen decodes the cached reply for the identity's eventID into out and reports whether one existed.
func (d *Dedupe) Seen(ctx context.Context, identity, eventID string, out interface{}) (bool, error) {
	if eventID == "" {
		return false, nil
	}

	raw, err := d.client.Get(ctx, eventKey(identity, eventID)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, errors.NewDedupeFailedError(err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, errors.NewDedupeFailedError(err)
	}

	metrics.IntakeDuplicateEvents.Inc()
	return true, nil
}

// Remember stores reply for the identity's eventID. Events without an ID are not cached.
func (d *Dedupe) Remember(ctx context.Context, identity, eventID string, reply interface{}) error {
	if eventID == "" {
		return nil
	}

	raw, err := json.Marshal(reply)
	if err != nil {
		return errors.NewDedupeFailedError(err)
	}
	if err := d.client.Set(ctx, eventKey(identity, eventID), raw, d.ttl).Err(); err != nil {
		return errors.NewDedupeFailedError(err)
	}
	return nil
}
