// Package sqlite implements the collection store on a local SQLite
// database. It backs the freshcartd daemon and serves as the reference
// implementation for tests; the change feed is an in-process notifier.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vbonduro/freshcart/internal/domain"
	"github.com/vbonduro/freshcart/internal/store"
)

type Store struct {
	db     *sql.DB
	logger *slog.Logger

	mu          sync.Mutex
	nextSub     int
	subscribers map[int]func()
}

func New(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{
		db:          db,
		logger:      logger,
		subscribers: make(map[int]func()),
	}
}

func (s *Store) FetchAll(ctx context.Context) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, note, category, is_purchased, created_at, user_id
		FROM grocery_items ORDER BY created_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch items: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("failed to close rows", "error", err)
		}
	}()

	var records []domain.Record
	for rows.Next() {
		var rec domain.Record
		var note sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Name, &note, &rec.Category, &rec.IsPurchased, &rec.CreatedAt, &rec.UserID); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		if note.Valid {
			rec.Note = &note.String
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}

	return records, nil
}

func (s *Store) Insert(ctx context.Context, userID string, items []domain.NewItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, item := range items {
		var note any
		if item.Note != nil {
			note = *item.Note
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO grocery_items (id, name, note, category, is_purchased, created_at, user_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, uuid.NewString(), item.Name, note, string(item.Category), item.IsPurchased, now, userID)
		if err != nil {
			return fmt.Errorf("failed to insert item %q: %w", item.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit insert: %w", err)
	}

	s.notify()
	return nil
}

func (s *Store) Update(ctx context.Context, id string, patch domain.ItemPatch) error {
	var sets []string
	var args []any

	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Note != nil {
		sets = append(sets, "note = ?")
		args = append(args, *patch.Note)
	}
	if patch.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, string(*patch.Category))
	}
	if patch.IsPurchased != nil {
		sets = append(sets, "is_purchased = ?")
		args = append(args, *patch.IsPurchased)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	result, err := s.db.ExecContext(ctx,
		"UPDATE grocery_items SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrNotFound
	}

	s.notify()
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM grocery_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrNotFound
	}

	s.notify()
	return nil
}

// columns whitelists the fields DeleteWhere may filter on. Field names come
// from callers, never from user text, but the whitelist keeps the SQL
// construction obviously safe.
var columns = map[store.Field]string{
	store.FieldIsPurchased: "is_purchased",
	store.FieldCategory:    "category",
	store.FieldUserID:      "user_id",
}

func (s *Store) DeleteWhere(ctx context.Context, pred store.Predicate) error {
	col, ok := columns[pred.Field]
	if !ok {
		return fmt.Errorf("unsupported predicate field %q", pred.Field)
	}

	_, err := s.db.ExecContext(ctx, "DELETE FROM grocery_items WHERE "+col+" = ?", pred.Value)
	if err != nil {
		return fmt.Errorf("failed to delete items: %w", err)
	}

	s.notify()
	return nil
}

func (s *Store) Subscribe(ctx context.Context, onChange func()) (func(), error) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = onChange
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	}
	context.AfterFunc(ctx, cancel)
	return cancel, nil
}

// notify runs after every confirmed mutation, including the caller's own.
// Subscribers treat it as a dirty signal, not a diff.
func (s *Store) notify() {
	s.mu.Lock()
	subs := make([]func(), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}
