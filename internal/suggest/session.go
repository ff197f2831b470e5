package suggest

import (
	"context"
	"fmt"
	"sync"

	"github.com/vbonduro/freshcart/internal/domain"
)

// inserter is the slice of the sync controller the session needs.
type inserter interface {
	Add(ctx context.Context, item domain.NewItem) error
}

// suggester is the slice of Client the session needs.
type suggester interface {
	SuggestItems(ctx context.Context, existingNames []string) []Candidate
}

// Session tracks one round of suggestions: a fetch replaces the whole
// candidate list, accepting a candidate promotes it to a real item and
// removes it locally. Candidates are never persisted; anything not accepted
// just sits there until the next fetch replaces it.
type Session struct {
	client suggester
	list   inserter

	mu         sync.Mutex
	candidates []Candidate
	fetching   bool
}

func NewSession(client suggester, list inserter) *Session {
	return &Session{client: client, list: list}
}

// Request replaces the candidate list with fresh suggestions based on the
// current item names. A failed fetch leaves an empty list; the client has
// already logged the cause.
func (s *Session) Request(ctx context.Context, existingNames []string) {
	s.mu.Lock()
	s.fetching = true
	s.mu.Unlock()

	candidates := s.client.SuggestItems(ctx, existingNames)

	s.mu.Lock()
	s.candidates = candidates
	s.fetching = false
	s.mu.Unlock()
}

// Candidates returns a copy of the current candidate list.
func (s *Session) Candidates() []Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Candidate, len(s.candidates))
	copy(out, s.candidates)
	return out
}

func (s *Session) Fetching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetching
}

// Accept promotes the named candidate to a grocery item insert and removes
// it from the list. The removal is local-only: the candidate list is not
// store-backed, so there is nothing to reconcile.
func (s *Session) Accept(ctx context.Context, name string) error {
	s.mu.Lock()
	idx := -1
	for i, c := range s.candidates {
		if c.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("no candidate named %q", name)
	}
	candidate := s.candidates[idx]
	s.mu.Unlock()

	err := s.list.Add(ctx, domain.NewItem{Name: candidate.Name, Category: candidate.Category})
	if err != nil {
		return fmt.Errorf("failed to add suggested item: %w", err)
	}

	s.mu.Lock()
	s.candidates = deleteByName(s.candidates, name)
	s.mu.Unlock()
	return nil
}

func deleteByName(candidates []Candidate, name string) []Candidate {
	out := candidates[:0]
	for _, c := range candidates {
		if c.Name != name {
			out = append(out, c)
		}
	}
	return out
}
