// Package store defines the collection-store boundary: the operations the
// sync controller needs from whatever service holds the shared list.
package store

import (
	"context"
	"errors"

	"github.com/vbonduro/freshcart/internal/domain"
)

// ErrNotFound is returned by Update and Delete when no row matches the id.
var ErrNotFound = errors.New("item not found")

// Field names a column a Predicate may select on. Implementations reject
// fields outside this set.
type Field string

const (
	FieldIsPurchased Field = "is_purchased"
	FieldCategory    Field = "category"
	FieldUserID      Field = "user_id"
)

// Predicate is a single-field equality test used by DeleteWhere.
type Predicate struct {
	Field Field
	Value any
}

// PurchasedIs builds the predicate behind the "clear all purchased" action.
func PurchasedIs(v bool) Predicate {
	return Predicate{Field: FieldIsPurchased, Value: v}
}

// Collection is the remote store holding the authoritative item list.
//
// All mutations are confirmed remotely before they become visible locally:
// callers never patch their own cache, they wait for the change feed.
type Collection interface {
	// FetchAll returns a full snapshot of raw rows, freshest-first by
	// creation time. Rows are unvalidated; callers run them through
	// domain.ParseRecord.
	FetchAll(ctx context.Context) ([]domain.Record, error)

	// Insert stores one or more new items owned by userID.
	Insert(ctx context.Context, userID string, items []domain.NewItem) error

	// Update applies the non-nil fields of patch to the row with the given id.
	Update(ctx context.Context, id string, patch domain.ItemPatch) error

	// Delete removes a single row.
	Delete(ctx context.Context, id string) error

	// DeleteWhere removes every row matching the predicate.
	DeleteWhere(ctx context.Context, pred Predicate) error

	// Subscribe registers onChange to run after any confirmed mutation by
	// any writer, including the subscriber's own. The signal carries no
	// payload. The feed stops when ctx is cancelled or the returned cancel
	// function is called; cancel is safe to call more than once.
	Subscribe(ctx context.Context, onChange func()) (cancel func(), err error)
}
