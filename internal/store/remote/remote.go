// Package remote implements the collection store against the freshcartd
// daemon: JSON calls for the collection operations and a WebSocket
// subscription for the change feed.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	ws "github.com/coder/websocket"

	"github.com/vbonduro/freshcart/internal/domain"
	"github.com/vbonduro/freshcart/internal/store"
)

const (
	requestTimeout = 15 * time.Second
	dialTimeout    = 15 * time.Second
)

type Store struct {
	baseURL string
	token   string
	userID  string
	client  *http.Client
	logger  *slog.Logger
}

// New builds a store client for one authenticated session. baseURL is the
// daemon root (e.g. http://localhost:8080); userID identifies the principal
// stamped on every request.
func New(baseURL, token, userID string, logger *slog.Logger) *Store {
	return &Store{
		baseURL: baseURL,
		token:   token,
		userID:  userID,
		client:  &http.Client{Timeout: requestTimeout},
		logger:  logger,
	}
}

func (s *Store) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	s.setAuthHeaders(req.Header)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (s *Store) setAuthHeaders(h http.Header) {
	if s.token != "" {
		h.Set("Authorization", "Bearer "+s.token)
	}
	h.Set("X-User-ID", s.userID)
}

func (s *Store) FetchAll(ctx context.Context) ([]domain.Record, error) {
	req, err := s.newRequest(ctx, http.MethodGet, "/api/items", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch items: %w", err)
	}
	defer s.closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("store returned status %d", resp.StatusCode)
	}

	var records []domain.Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}
	return records, nil
}

func (s *Store) Insert(ctx context.Context, userID string, items []domain.NewItem) error {
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal items: %w", err)
	}

	req, err := s.newRequest(ctx, http.MethodPost, "/api/items", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to insert items: %w", err)
	}
	defer s.closeBody(resp)

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("store returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, id string, patch domain.ItemPatch) error {
	payload, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("failed to marshal patch: %w", err)
	}

	req, err := s.newRequest(ctx, http.MethodPatch, "/api/items/"+url.PathEscape(id), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return s.doMutation(req, "update")
}

func (s *Store) Delete(ctx context.Context, id string) error {
	req, err := s.newRequest(ctx, http.MethodDelete, "/api/items/"+url.PathEscape(id), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return s.doMutation(req, "delete")
}

func (s *Store) DeleteWhere(ctx context.Context, pred store.Predicate) error {
	if pred.Field != store.FieldIsPurchased {
		return fmt.Errorf("unsupported predicate field %q", pred.Field)
	}
	purchased, ok := pred.Value.(bool)
	if !ok {
		return fmt.Errorf("predicate value must be a bool, got %T", pred.Value)
	}

	req, err := s.newRequest(ctx, http.MethodDelete,
		fmt.Sprintf("/api/items?purchased=%t", purchased), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return s.doMutation(req, "bulk delete")
}

func (s *Store) doMutation(req *http.Request, op string) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	defer s.closeBody(resp)

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK:
		return nil
	case http.StatusNotFound:
		return store.ErrNotFound
	default:
		return fmt.Errorf("store returned status %d", resp.StatusCode)
	}
}

func (s *Store) closeBody(resp *http.Response) {
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		s.logger.Debug("failed to drain response body", "error", err)
	}
	if err := resp.Body.Close(); err != nil {
		s.logger.Error("failed to close response body", "error", err)
	}
}

// Subscribe dials the change feed and invokes onChange for every frame
// received. The feed lives until ctx is cancelled or cancel is called;
// there is no automatic reconnect — a dropped feed is logged and the
// caller's next session re-establishes it.
func (s *Store) Subscribe(ctx context.Context, onChange func()) (func(), error) {
	dialCtx, dialDone := context.WithTimeout(ctx, dialTimeout)
	defer dialDone()

	headers := make(http.Header)
	s.setAuthHeaders(headers)
	conn, _, err := ws.Dial(dialCtx, s.baseURL+"/api/ws", &ws.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to dial change feed: %w", err)
	}

	feedCtx, cancel := context.WithCancel(ctx)
	go func() {
		defer conn.Close(ws.StatusNormalClosure, "")
		for {
			if _, _, err := conn.Read(feedCtx); err != nil {
				if feedCtx.Err() == nil {
					s.logger.Error("change feed closed", "error", err)
				}
				return
			}
			onChange()
		}
	}()

	return cancel, nil
}
