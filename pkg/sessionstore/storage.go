// Package sessionstore is the session-scoped key-value storage the client
// SDK keeps its caches in. Values are JSON envelopes carrying the time they
// were written so readers can apply their own TTL.
package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Storage is a flat string-keyed byte store scoped to one client session.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// Envelope wraps a cached value. Timestamp is unix milliseconds.
type Envelope struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	Params    string          `json:"params,omitempty"`
}

// WrittenAt is the envelope timestamp as a time.Time.
func (e Envelope) WrittenAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Fresh reports whether now - timestamp < ttl.
func (e Envelope) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.WrittenAt()) < ttl
}

// Decode unmarshals the envelope payload into out.
func (e Envelope) Decode(out any) error {
	return json.Unmarshal(e.Data, out)
}

// Write stores data under key wrapped in an envelope stamped with now.
func Write(ctx context.Context, s Storage, key string, data any, params string, now time.Time) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", key, err)
	}
	raw, err := json.Marshal(Envelope{Data: payload, Timestamp: now.UnixMilli(), Params: params})
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}

// Read loads the envelope under key. A value that does not parse is removed
// and reported as a miss.
func Read(ctx context.Context, s Storage, key string) (Envelope, bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return Envelope{}, false, err
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if rmErr := s.Remove(ctx, key); rmErr != nil {
			return Envelope{}, false, rmErr
		}
		return Envelope{}, false, nil
	}
	return env, true, nil
}
