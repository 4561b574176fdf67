package ratelimit

import (
	"context"
	"time"
)

// Entry is the persisted state of one client's current window.
type Entry struct {
	Count   int64
	ResetAt time.Time
}

// Mutation computes the next state of a key from its current state.
// found is false when the store holds nothing for the key. Returning
// write=false leaves the stored state untouched.
type Mutation func(current Entry, found bool) (next Entry, write bool)

// Store defines the interface for rate limit data storage.
//
// Update must run fn with exclusive ownership of key: concurrent updates of
// the same key are serialized, updates of different keys are not.
// Implementations may call fn more than once when they retry an optimistic
// transaction, so fn must not have side effects beyond its return values.
type Store interface {
	Update(ctx context.Context, key string, fn Mutation) error
	Delete(ctx context.Context, key string) error
}
