// Package sync owns the in-memory copy of the shared list and keeps it
// converged with the backing store. The store is the only source of truth:
// mutations are forwarded and never applied locally, and the change feed's
// dirty signal triggers a full refetch-and-replace.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vbonduro/freshcart/internal/auth"
	"github.com/vbonduro/freshcart/internal/domain"
	"github.com/vbonduro/freshcart/internal/store"
)

// ErrNoSession is returned by Initialize when the context carries no
// authenticated principal.
var ErrNoSession = errors.New("no authenticated session")

// refreshTimeout bounds the refetch triggered by a change notification,
// which runs outside any caller's request context.
const refreshTimeout = 30 * time.Second

type Controller struct {
	store  store.Collection
	logger *slog.Logger

	mu      sync.Mutex
	items   []domain.GroceryItem
	loading bool
	issued  uint64 // sequence handed to the most recently started fetch
	applied uint64 // sequence of the snapshot currently in items

	userID    string
	subCancel func()
	onUpdate  func()
}

func New(col store.Collection, logger *slog.Logger) *Controller {
	return &Controller{store: col, logger: logger}
}

// Initialize loads the full collection and opens the change subscription.
// It requires an authenticated principal in ctx; the principal's id is
// stamped onto every subsequent insert. A fetch failure still leaves the
// subscription open so a later change notification can recover the cache.
func (c *Controller) Initialize(ctx context.Context) error {
	p, ok := auth.FromContext(ctx)
	if !ok {
		return ErrNoSession
	}

	c.mu.Lock()
	c.userID = p.UserID
	c.mu.Unlock()

	fetchErr := c.refresh(ctx)

	cancel, err := c.store.Subscribe(ctx, c.onRemoteChange)
	if err != nil {
		return fmt.Errorf("failed to open change subscription: %w", err)
	}
	c.mu.Lock()
	c.subCancel = cancel
	c.mu.Unlock()

	return fetchErr
}

// Close tears down the change subscription. Safe to call more than once;
// tied to sign-out so sessions do not leak a feed connection each cycle.
func (c *Controller) Close() {
	c.mu.Lock()
	cancel := c.subCancel
	c.subCancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Items returns a copy of the current collection snapshot.
func (c *Controller) Items() []domain.GroceryItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.GroceryItem, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// SetOnUpdate registers fn to run after each applied snapshot, so a UI can
// re-render when the cache changes. fn runs outside the controller's lock
// and may read Items. Call before Initialize.
func (c *Controller) SetOnUpdate(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUpdate = fn
}

// onRemoteChange services the store's dirty signal. The feed carries no
// diff, so the only correct reconciliation is re-deriving the snapshot.
func (c *Controller) onRemoteChange() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	if err := c.refresh(ctx); err != nil {
		c.logger.Error("refresh after change notification failed", "error", err)
	}
}

// refresh fetches the full snapshot, validates rows, and replaces the cache
// if no later-issued fetch has already been applied. On error the cache is
// left untouched.
func (c *Controller) refresh(ctx context.Context) error {
	c.mu.Lock()
	c.issued++
	seq := c.issued
	c.loading = true
	c.mu.Unlock()

	records, err := c.store.FetchAll(ctx)

	c.mu.Lock()
	c.loading = false

	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to fetch collection: %w", err)
	}

	items := make([]domain.GroceryItem, 0, len(records))
	dropped := 0
	for _, rec := range records {
		item, perr := domain.ParseRecord(rec)
		if perr != nil {
			dropped++
			continue
		}
		items = append(items, item)
	}
	if dropped > 0 {
		c.logger.Warn("dropped malformed records from snapshot", "dropped", dropped, "kept", len(items))
	}

	// Stale resumption: a fetch that raced with a newer one and lost must
	// not clobber the newer snapshot.
	if seq <= c.applied {
		c.mu.Unlock()
		c.logger.Debug("discarding stale fetch result", "seq", seq, "applied", c.applied)
		return nil
	}
	c.applied = seq
	c.items = items
	fn := c.onUpdate
	c.mu.Unlock()

	// Outside the lock so fn may read Items.
	if fn != nil {
		fn()
	}
	return nil
}

// Add inserts a single item. The cache is not touched; the confirming
// change notification makes the item visible.
func (c *Controller) Add(ctx context.Context, item domain.NewItem) error {
	if strings.TrimSpace(item.Name) == "" {
		return errors.New("item name required")
	}
	if item.Category == "" {
		item.Category = domain.CategoryOther
	}
	return c.insert(ctx, []domain.NewItem{item})
}

// SeedStarterItems bulk-inserts the curated staples list. Seeding twice
// produces duplicates, matching the store's append-only insert semantics.
func (c *Controller) SeedStarterItems(ctx context.Context) error {
	return c.insert(ctx, domain.StarterItems)
}

func (c *Controller) insert(ctx context.Context, items []domain.NewItem) error {
	c.mu.Lock()
	userID := c.userID
	c.mu.Unlock()
	if err := c.store.Insert(ctx, userID, items); err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}
	return nil
}

// Update edits an item's fields.
func (c *Controller) Update(ctx context.Context, id string, patch domain.ItemPatch) error {
	if err := c.store.Update(ctx, id, patch); err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	return nil
}

// TogglePurchased flips the checked state of the cached item with the given
// id. The inverse is computed from the cache, so two members toggling
// concurrently resolve as last-writer-wins at the store.
func (c *Controller) TogglePurchased(ctx context.Context, id string) error {
	c.mu.Lock()
	var current *domain.GroceryItem
	for i := range c.items {
		if c.items[i].ID == id {
			current = &c.items[i]
			break
		}
	}
	if current == nil {
		c.mu.Unlock()
		return store.ErrNotFound
	}
	next := !current.IsPurchased
	c.mu.Unlock()

	return c.Update(ctx, id, domain.ItemPatch{IsPurchased: &next})
}

// Delete removes a single item.
func (c *Controller) Delete(ctx context.Context, id string) error {
	if err := c.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return nil
}

// ClearPurchased removes every purchased item for the whole household.
func (c *Controller) ClearPurchased(ctx context.Context) error {
	if err := c.store.DeleteWhere(ctx, store.PurchasedIs(true)); err != nil {
		return fmt.Errorf("failed to clear purchased items: %w", err)
	}
	return nil
}
