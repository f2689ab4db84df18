// Package conversation holds the ordered message history of one chat session.
// Nothing here is persisted: a Store lives as long as its session.
package conversation

import (
	"slices"
	"sync"
	"time"

	"babas/internal/domain"

	"github.com/google/uuid"
)

// Store is an append-only, insertion-ordered list of messages.
type Store struct {
	mu       sync.RWMutex
	messages []domain.Message
}

func NewStore() *Store {
	return &Store{}
}

// NewUserMessage builds a user entry. Callers reject blank text before this.
func NewUserMessage(text string) domain.Message {
	return newMessage(domain.RoleUser, text, false)
}

// NewModelMessage builds a model entry; isError marks a fallback placeholder.
func NewModelMessage(text string, isError bool) domain.Message {
	return newMessage(domain.RoleModel, text, isError)
}

func newMessage(role domain.Role, text string, isError bool) domain.Message {
	return domain.Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Role:      role,
		Text:      text,
		IsError:   isError,
		CreatedAt: time.Now(),
	}
}

func (s *Store) Append(msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

// All returns a copy of the messages in insertion order.
func (s *Store) All() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.messages)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Turns projects the history onto the role/text pairs sent to a provider.
func (s *Store) Turns() []domain.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := make([]domain.Turn, 0, len(s.messages))
	for _, m := range s.messages {
		turns = append(turns, m.Turn())
	}
	return turns
}

// Reset drops every message, as a page reload would.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}
