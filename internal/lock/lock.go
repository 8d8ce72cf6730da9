// Package lock serialises checkouts per user. A lock is advisory and expires
// after its TTL even if never released.
package lock

import (
	"context"
	"errors"
)

// ErrNotAcquired is returned when another holder owns the key.
var ErrNotAcquired = errors.New("lock is held by another owner")

// Locker hands out exclusive, expiring locks by key.
type Locker interface {
	// Acquire takes the lock for key without waiting. It returns
	// ErrNotAcquired if the key is already held.
	Acquire(ctx context.Context, key string) (Lock, error)
}

// Lock is a held lock.
type Lock interface {
	// Release frees the lock if it is still owned by this holder.
	Release(ctx context.Context) error
}

// CheckoutKey is the lock key for a user's checkout.
func CheckoutKey(userEmail string) string {
	return "lock:checkout:" + userEmail
}
