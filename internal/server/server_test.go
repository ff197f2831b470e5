package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/freshcart/internal/domain"
	"github.com/vbonduro/freshcart/internal/store/sqlite"
)

func newTestServer(t *testing.T) (*Server, *sqlite.Store) {
	t.Helper()
	db, err := sqlite.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, db.Close()) })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := sqlite.New(db, logger)
	srv := NewServer(st, "secret", logger)
	t.Cleanup(srv.Close)
	return srv, st
}

func doRequest(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("X-User-ID", "user-1")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestAuthRequired(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/items", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	req.Header.Set("X-User-ID", "user-1")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRequiresUserID(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInsertAndFetchAll(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/items", []domain.NewItem{
		{Name: "Milk", Category: domain.CategoryDairy},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/items", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var records []domain.Record
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&records))
	require.Len(t, records, 1)
	assert.Equal(t, "Milk", records[0].Name)
	assert.Equal(t, "user-1", records[0].UserID, "insert must stamp the principal")
}

func TestFetchAllEmptyIsArray(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/items", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestInsertValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/items", []domain.NewItem{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/items", []domain.NewItem{{Name: "   "}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInsertCoercesUnknownCategory(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/items", []map[string]any{
		{"name": "Gummy Bears", "category": "Candy"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/items", nil)
	var records []domain.Record
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&records))
	require.Len(t, records, 1)
	assert.Equal(t, "Other", records[0].Category)
}

func TestUpdate(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, st.Insert(ctx, "user-1", []domain.NewItem{{Name: "Milk", Category: domain.CategoryDairy}}))
	records, err := st.FetchAll(ctx)
	require.NoError(t, err)
	id := records[0].ID

	purchased := true
	rec := doRequest(t, srv, http.MethodPatch, "/api/items/"+id, domain.ItemPatch{IsPurchased: &purchased})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	records, err = st.FetchAll(ctx)
	require.NoError(t, err)
	assert.True(t, records[0].IsPurchased)
}

func TestUpdateNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	purchased := true
	rec := doRequest(t, srv, http.MethodPatch, "/api/items/ghost", domain.ItemPatch{IsPurchased: &purchased})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateRejectsBlankName(t *testing.T) {
	srv, _ := newTestServer(t)

	name := "  "
	rec := doRequest(t, srv, http.MethodPatch, "/api/items/any", domain.ItemPatch{Name: &name})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDelete(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, st.Insert(ctx, "user-1", []domain.NewItem{{Name: "Milk", Category: domain.CategoryDairy}}))
	records, err := st.FetchAll(ctx)
	require.NoError(t, err)

	rec := doRequest(t, srv, http.MethodDelete, "/api/items/"+records[0].ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	records, err = st.FetchAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDeleteNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodDelete, "/api/items/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteWhere(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, st.Insert(ctx, "user-1", []domain.NewItem{
		{Name: "Done", Category: domain.CategoryOther, IsPurchased: true},
		{Name: "Pending", Category: domain.CategoryOther},
	}))

	rec := doRequest(t, srv, http.MethodDelete, "/api/items?purchased=true", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	records, err := st.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Pending", records[0].Name)
}

func TestDeleteWhereRequiresPredicate(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodDelete, "/api/items", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// syncBuffer lets the test read logs the server writes from other goroutines.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestChangeFeedLogsCountAfterRegistration(t *testing.T) {
	db, err := sqlite.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, db.Close()) })

	var buf syncBuffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	srv := NewServer(sqlite.New(db, logger), "", logger)
	t.Cleanup(srv.Close)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	headers := make(http.Header)
	headers.Set("X-User-ID", "user-1")
	conn, _, err := ws.Dial(context.Background(), ts.URL+"/api/ws", &ws.DialOptions{HTTPHeader: headers})
	require.NoError(t, err)

	// The count is taken after registration, so the first client logs as 1.
	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), `"msg":"change feed client connected","clients":1`)
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close(ws.StatusNormalClosure, ""))
	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), `"msg":"change feed client disconnected","clients":0`)
	}, 2*time.Second, 10*time.Millisecond)
}
