package message

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is the volatile Store: an insertion-ordered in-process
// collection that lives for the process lifetime. All operations are
// synchronous and never return ErrStoreUnavailable.
type MemoryStore struct {
	mu       sync.RWMutex
	messages []Message
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Create inserts a new message with a generated UUID and returns it.
func (s *MemoryStore) Create(_ context.Context, name, content string) (Message, error) {
	if err := validateNew(name, content); err != nil {
		return Message{}, err
	}

	m := Message{
		ID:      uuid.New().String(),
		Name:    name,
		Content: content,
	}

	s.mu.Lock()
	s.messages = append(s.messages, m)
	s.mu.Unlock()

	return m, nil
}

// Get returns the message with the given id.
func (s *MemoryStore) Get(_ context.Context, id string) (Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.messages {
		if m.ID == id {
			return m, nil
		}
	}
	return Message{}, ErrNotFound
}

// List returns all messages in insertion order.
func (s *MemoryStore) List(_ context.Context) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out, nil
}

// Update replaces the mutable fields of the message with the given id.
func (s *MemoryStore) Update(_ context.Context, id, content, name string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages[i].Content = content
			if name != "" {
				s.messages[i].Name = name
			}
			return s.messages[i], nil
		}
	}
	return Message{}, ErrNotFound
}

// Delete removes the message with the given id, preserving the order of the
// remaining messages.
func (s *MemoryStore) Delete(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return id, nil
		}
	}
	return "", ErrNotFound
}
