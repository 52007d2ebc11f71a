// Package inmemory stores coaching-suggestion acknowledgements in memory.
// Acknowledgements are advisory state: losing them on restart only means a
// dismissed suggestion may reappear.
package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ecotrace/ecotrace/internal/domain"
)

// Store keeps the latest acknowledgement per (user, suggestion) pair.
type Store struct {
	mu   sync.RWMutex
	acks map[string]domain.Acknowledgement
}

// NewStore creates a new in-memory acknowledgement store.
func NewStore() *Store {
	return &Store{acks: make(map[string]domain.Acknowledgement)}
}

// Record saves an acknowledgement, replacing any earlier action the user
// recorded for the same suggestion.
func (s *Store) Record(ctx context.Context, ack domain.Acknowledgement) error {
	if ack.UserID == "" || ack.SuggestionID == "" {
		return fmt.Errorf("Record: user id and suggestion id are required")
	}
	if ack.RecordedAt.IsZero() {
		ack.RecordedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.acks[ack.UserID+"\x00"+ack.SuggestionID] = ack
	return nil
}

// List returns the acknowledgements recorded for one user, keyed by
// suggestion id.
func (s *Store) List(ctx context.Context, userID string) (map[string]domain.Acknowledgement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.Acknowledgement)
	for _, ack := range s.acks {
		if ack.UserID == userID {
			out[ack.SuggestionID] = ack
		}
	}
	return out, nil
}
