package repository

import (
	"context"

	"orderflow/internal/domain"
)

// OrderRepository is the transactional writer over the authoritative store.
// Every mutating method runs inside a serializable transaction scoped to the
// order document; mutate closures must be re-executable because the store
// may retry the transaction body on contention.
type OrderRepository interface {
	// Create writes an order and its item snapshot atomically. It re-checks
	// the one-active-order-per-table invariant under a locking read inside
	// the transaction and returns domain.ErrActiveOrderExists on conflict.
	Create(ctx context.Context, order *domain.Order) error

	// FindByID returns the order with its items, or domain.ErrOrderNotFound.
	// A cross-account mismatch is indistinguishable from a missing order.
	FindByID(ctx context.Context, accountID, id uint64) (*domain.Order, error)

	// ListByAccount returns the account's live orders, optionally filtered
	// by status, newest first.
	ListByAccount(ctx context.Context, accountID uint64, status domain.Status) ([]domain.Order, error)

	// HasActiveOrder reports whether a pending/approved/ready order exists
	// for the table. Non-transactional fast path; Create re-checks.
	HasActiveOrder(ctx context.Context, accountID, tableID uint64) (bool, error)

	// Mutate re-reads the order inside a transaction, applies the closure
	// and persists the result. The closure returning an error rolls the
	// transaction back and surfaces that error unchanged.
	Mutate(ctx context.Context, accountID, id uint64, apply func(*domain.Order) error) (*domain.Order, error)

	// Archive copies the order and its items into archive storage tagged
	// with reason, then deletes the live rows, as one atomic batch. Returns
	// false when the live order no longer exists (already archived).
	Archive(ctx context.Context, id uint64, reason domain.ArchiveReason) (bool, error)
}

// SequenceAllocator issues monotonic ids and per-day order numbers via
// atomic increment-and-read. Gaps are possible when a caller fails after
// the increment; values are never reissued.
type SequenceAllocator interface {
	Next(ctx context.Context, name string) (uint64, error)
	NextDaily(ctx context.Context, accountID uint64, day string) (uint64, error)
	// ResetDaily forces a daily counter back to zero for administrative
	// correction. Previously issued numbers are not reclaimed.
	ResetDaily(ctx context.Context, accountID uint64, day string) error
}
