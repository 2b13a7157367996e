package search

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrSuperseded is returned when a newer query was issued while this one was in flight.
// Its results are dropped so they cannot overwrite fresher suggestions.
var ErrSuperseded = errors.New("search superseded by a newer query")

// Fetcher looks up worker names matching a query.
type Fetcher interface {
	Search(ctx context.Context, query string) ([]string, error)
}

// Suggester holds the name suggestions of one input field.
type Suggester struct {
	fetch Fetcher

	mu     sync.Mutex
	seq    uint64
	query  string
	latest []string
}

func NewSuggester(f Fetcher) *Suggester {
	return &Suggester{fetch: f}
}

// Suggest fetches suggestions for q. Blank queries clear the suggestions without a
// network call.
func (s *Suggester) Suggest(ctx context.Context, q string) ([]string, error) {
	q = strings.TrimSpace(q)

	s.mu.Lock()
	s.seq++
	seq := s.seq
	if q == "" {
		s.query = ""
		s.latest = nil
		s.mu.Unlock()
		return nil, nil
	}
	s.mu.Unlock()

	names, err := s.fetch.Search(ctx, q)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, err
	}
	s.query = q
	s.latest = append([]string(nil), names...)
	return append([]string(nil), names...), nil
}

// Latest returns the suggestions of the newest completed query.
func (s *Suggester) Latest() (query string, names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query, append([]string(nil), s.latest...)
}
