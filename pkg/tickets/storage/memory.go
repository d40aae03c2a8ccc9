package storage

import (
	"context"
	"sync"

	"mercator-hq/tollgate/pkg/tickets"
	"mercator-hq/tollgate/pkg/traffic"
)

// MemoryStorage implements the Storage interface in memory.
// Tickets are kept in insertion order.
type MemoryStorage struct {
	mu      sync.RWMutex
	tickets []*traffic.Ticket
	ids     map[string]bool
}

// NewMemoryStorage creates a new in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		ids: make(map[string]bool),
	}
}

// Store persists a copy of the ticket. Storing an ID twice is an error.
func (s *MemoryStorage) Store(ctx context.Context, ticket *traffic.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ids[ticket.ID] {
		return tickets.NewStorageError("memory", "store", errDuplicate(ticket.ID))
	}
	cp := *ticket
	s.tickets = append(s.tickets, &cp)
	s.ids[ticket.ID] = true
	return nil
}

// Query retrieves copies of the tickets matching the query.
func (s *MemoryStorage) Query(ctx context.Context, query *tickets.Query) ([]*traffic.Ticket, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	matched := query.Apply(s.tickets)
	s.mu.RUnlock()

	out := make([]*traffic.Ticket, len(matched))
	for i, t := range matched {
		cp := *t
		out[i] = &cp
	}
	return out, nil
}

// Count returns the number of tickets matching the query filters.
func (s *MemoryStorage) Count(ctx context.Context, query *tickets.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, t := range s.tickets {
		if query.Matches(t) {
			n++
		}
	}
	return n, nil
}

// Delete removes the tickets matching the query filters.
func (s *MemoryStorage) Delete(ctx context.Context, query *tickets.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.tickets[:0]
	var n int64
	for _, t := range s.tickets {
		if query.Matches(t) {
			delete(s.ids, t.ID)
			n++
			continue
		}
		kept = append(kept, t)
	}
	s.tickets = kept
	return n, nil
}

// Close is a no-op.
func (s *MemoryStorage) Close() error {
	return nil
}
