package sync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/freshcart/internal/auth"
	"github.com/vbonduro/freshcart/internal/domain"
	"github.com/vbonduro/freshcart/internal/store"
)

// stubStore is a controllable in-memory store.Collection for tests.
type stubStore struct {
	fetchFn func(ctx context.Context) ([]domain.Record, error)

	insertErr error
	updateErr error
	deleteErr error

	insertedUser string
	inserted     [][]domain.NewItem
	updatedID    string
	updatedPatch domain.ItemPatch
	deletedID    string
	deletedWhere []store.Predicate
	onChange     func()
	subCancelled bool
	subscribeErr error
}

func (s *stubStore) FetchAll(ctx context.Context) ([]domain.Record, error) {
	if s.fetchFn != nil {
		return s.fetchFn(ctx)
	}
	return nil, nil
}

func (s *stubStore) Insert(_ context.Context, userID string, items []domain.NewItem) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.insertedUser = userID
	s.inserted = append(s.inserted, items)
	return nil
}

func (s *stubStore) Update(_ context.Context, id string, patch domain.ItemPatch) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updatedID = id
	s.updatedPatch = patch
	return nil
}

func (s *stubStore) Delete(_ context.Context, id string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deletedID = id
	return nil
}

func (s *stubStore) DeleteWhere(_ context.Context, pred store.Predicate) error {
	s.deletedWhere = append(s.deletedWhere, pred)
	return nil
}

func (s *stubStore) Subscribe(_ context.Context, onChange func()) (func(), error) {
	if s.subscribeErr != nil {
		return nil, s.subscribeErr
	}
	s.onChange = onChange
	return func() { s.subCancelled = true }, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func authedCtx() context.Context {
	return auth.WithPrincipal(context.Background(), auth.Principal{UserID: "user-1"})
}

func records(names ...string) []domain.Record {
	out := make([]domain.Record, 0, len(names))
	for i, n := range names {
		out = append(out, domain.Record{ID: n, Name: n, Category: "Other", CreatedAt: int64(len(names) - i)})
	}
	return out
}

func TestInitializeRequiresSession(t *testing.T) {
	c := New(&stubStore{}, testLogger())
	err := c.Initialize(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestInitializeFetchesCollection(t *testing.T) {
	st := &stubStore{fetchFn: func(context.Context) ([]domain.Record, error) {
		return records("Milk", "Bread"), nil
	}}
	c := New(st, testLogger())

	require.NoError(t, c.Initialize(authedCtx()))
	defer c.Close()

	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "Milk", items[0].Name)
	assert.Equal(t, "Bread", items[1].Name)
	assert.False(t, c.Loading())
	assert.NotNil(t, st.onChange, "initialize must open the change subscription")
}

func TestInitializeDropsMalformedRecords(t *testing.T) {
	st := &stubStore{fetchFn: func(context.Context) ([]domain.Record, error) {
		return []domain.Record{
			{ID: "1", Name: "Milk", Category: "Dairy"},
			{ID: "", Name: "Phantom", Category: "Dairy"},
			{ID: "3", Name: "", Category: "Dairy"},
			{ID: "4", Name: "Gummy Bears", Category: "Candy"},
		}, nil
	}}
	c := New(st, testLogger())

	require.NoError(t, c.Initialize(authedCtx()))
	defer c.Close()

	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "Milk", items[0].Name)
	assert.Equal(t, domain.CategoryOther, items[1].Category, "unknown category must fall back to Other")
}

func TestInitializeFetchErrorKeepsCacheAndSubscribes(t *testing.T) {
	st := &stubStore{fetchFn: func(context.Context) ([]domain.Record, error) {
		return nil, errors.New("store down")
	}}
	c := New(st, testLogger())

	err := c.Initialize(authedCtx())
	defer c.Close()

	assert.Error(t, err)
	assert.Empty(t, c.Items())
	assert.NotNil(t, st.onChange, "subscription must open so a later signal can recover the cache")
	assert.False(t, c.Loading())
}

func TestCloseAfterFailedInitializeCancelsSubscription(t *testing.T) {
	st := &stubStore{fetchFn: func(context.Context) ([]domain.Record, error) {
		return nil, errors.New("store down")
	}}
	c := New(st, testLogger())

	require.Error(t, c.Initialize(authedCtx()))
	require.NotNil(t, st.onChange)

	c.Close()
	assert.True(t, st.subCancelled, "the feed opened during a failed initialize must still be torn down")
}

func TestInitializeSubscribeError(t *testing.T) {
	st := &stubStore{subscribeErr: errors.New("feed down")}
	c := New(st, testLogger())
	assert.Error(t, c.Initialize(authedCtx()))
}

func TestChangeNotificationRefetches(t *testing.T) {
	var snapshot atomic.Pointer[[]domain.Record]
	first := records("Milk")
	snapshot.Store(&first)

	st := &stubStore{fetchFn: func(context.Context) ([]domain.Record, error) {
		return *snapshot.Load(), nil
	}}
	c := New(st, testLogger())
	require.NoError(t, c.Initialize(authedCtx()))
	defer c.Close()

	second := records("Milk", "Eggs")
	snapshot.Store(&second)
	st.onChange()

	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "Eggs", items[1].Name)
}

func TestOnUpdateFiresPerAppliedSnapshot(t *testing.T) {
	st := &stubStore{fetchFn: func(context.Context) ([]domain.Record, error) {
		return records("Milk"), nil
	}}
	c := New(st, testLogger())

	var renders atomic.Int32
	c.SetOnUpdate(func() {
		renders.Add(1)
		assert.Len(t, c.Items(), 1, "callback must observe the applied snapshot")
	})

	require.NoError(t, c.Initialize(authedCtx()))
	defer c.Close()
	assert.Equal(t, int32(1), renders.Load())

	st.onChange()
	assert.Equal(t, int32(2), renders.Load())
}

func TestStaleFetchResultDiscarded(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	st := &stubStore{fetchFn: func(context.Context) ([]domain.Record, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
			return records("Old"), nil
		}
		return records("New"), nil
	}}
	c := New(st, testLogger())

	done := make(chan error, 1)
	go func() { done <- c.Initialize(authedCtx()) }()
	<-started

	// A change-feed refresh starts after the first fetch and completes
	// before it; the first fetch's result is now stale.
	c.onRemoteChange()

	close(release)
	require.NoError(t, <-done)
	defer c.Close()

	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "New", items[0].Name, "the later-completing, later-issued fetch must win")
}

func TestAddForwardsInsertWithOwner(t *testing.T) {
	st := &stubStore{}
	c := New(st, testLogger())
	require.NoError(t, c.Initialize(authedCtx()))
	defer c.Close()

	require.NoError(t, c.Add(context.Background(), domain.NewItem{Name: "Milk", Category: domain.CategoryDairy}))

	require.Len(t, st.inserted, 1)
	assert.Equal(t, "user-1", st.insertedUser)
	assert.Equal(t, "Milk", st.inserted[0][0].Name)
	assert.Empty(t, c.Items(), "cache must not be optimistically mutated")
}

func TestAddRejectsEmptyName(t *testing.T) {
	c := New(&stubStore{}, testLogger())
	require.NoError(t, c.Initialize(authedCtx()))
	defer c.Close()

	assert.Error(t, c.Add(context.Background(), domain.NewItem{Name: "   "}))
}

func TestAddDefaultsCategoryToOther(t *testing.T) {
	st := &stubStore{}
	c := New(st, testLogger())
	require.NoError(t, c.Initialize(authedCtx()))
	defer c.Close()

	require.NoError(t, c.Add(context.Background(), domain.NewItem{Name: "Mystery"}))
	assert.Equal(t, domain.CategoryOther, st.inserted[0][0].Category)
}

func TestAddBubblesStoreError(t *testing.T) {
	st := &stubStore{insertErr: errors.New("store down")}
	c := New(st, testLogger())
	require.NoError(t, c.Initialize(authedCtx()))
	defer c.Close()

	assert.Error(t, c.Add(context.Background(), domain.NewItem{Name: "Milk"}))
}

func TestSeedStarterItems(t *testing.T) {
	st := &stubStore{}
	c := New(st, testLogger())
	require.NoError(t, c.Initialize(authedCtx()))
	defer c.Close()

	require.NoError(t, c.SeedStarterItems(context.Background()))
	require.Len(t, st.inserted, 1)
	assert.Len(t, st.inserted[0], len(domain.StarterItems))
	assert.Equal(t, "user-1", st.insertedUser)
}

func TestTogglePurchasedUsesCachedState(t *testing.T) {
	recs := []domain.Record{{ID: "abc", Name: "Milk", Category: "Dairy", IsPurchased: true}}
	st := &stubStore{fetchFn: func(context.Context) ([]domain.Record, error) { return recs, nil }}
	c := New(st, testLogger())
	require.NoError(t, c.Initialize(authedCtx()))
	defer c.Close()

	require.NoError(t, c.TogglePurchased(context.Background(), "abc"))
	assert.Equal(t, "abc", st.updatedID)
	require.NotNil(t, st.updatedPatch.IsPurchased)
	assert.False(t, *st.updatedPatch.IsPurchased)
}

func TestTogglePurchasedUnknownID(t *testing.T) {
	c := New(&stubStore{}, testLogger())
	require.NoError(t, c.Initialize(authedCtx()))
	defer c.Close()

	err := c.TogglePurchased(context.Background(), "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteForwards(t *testing.T) {
	st := &stubStore{}
	c := New(st, testLogger())
	require.NoError(t, c.Initialize(authedCtx()))
	defer c.Close()

	require.NoError(t, c.Delete(context.Background(), "abc"))
	assert.Equal(t, "abc", st.deletedID)
}

func TestClearPurchased(t *testing.T) {
	st := &stubStore{}
	c := New(st, testLogger())
	require.NoError(t, c.Initialize(authedCtx()))
	defer c.Close()

	require.NoError(t, c.ClearPurchased(context.Background()))
	require.Len(t, st.deletedWhere, 1)
	assert.Equal(t, store.FieldIsPurchased, st.deletedWhere[0].Field)
	assert.Equal(t, true, st.deletedWhere[0].Value)
}

func TestCloseCancelsSubscription(t *testing.T) {
	st := &stubStore{}
	c := New(st, testLogger())
	require.NoError(t, c.Initialize(authedCtx()))

	c.Close()
	c.Close() // idempotent
	assert.True(t, st.subCancelled)
}
