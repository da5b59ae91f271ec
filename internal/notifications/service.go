package notifications

import (
	"sync"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
)

// Level is the severity shown to the user.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// DefaultCapacity bounds the feed when no capacity is configured.
const DefaultCapacity = 100

// Notification is one transient user-facing message.
type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Service is a bounded in-memory feed of user-facing messages. When full the
// oldest entry is evicted.
type Service interface {
	Push(level Level, message string) Notification
	List() []Notification
	Drain() []Notification
}

type service struct {
	mu       sync.Mutex
	items    []Notification
	capacity int
	now      func() time.Time
}

// NewService builds a feed holding at most capacity entries.
func NewService(capacity int) (Service, error) {
	if capacity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification capacity must be non-negative")
	}
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	return &service{capacity: capacity, now: time.Now}, nil
}

func (s *service) Push(level Level, message string) Notification {
	n := Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		CreatedAt: s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) >= s.capacity {
		s.items = append(s.items[:0], s.items[len(s.items)-s.capacity+1:]...)
	}
	s.items = append(s.items, n)
	return n
}

// List returns pending notifications oldest first without consuming them.
func (s *service) List() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.items))
	copy(out, s.items)
	return out
}

// Drain returns pending notifications oldest first and empties the feed.
func (s *service) Drain() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.items
	if out == nil {
		out = []Notification{}
	}
	s.items = nil
	return out
}
