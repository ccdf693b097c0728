package counter

import (
	"sync"

	"github.com/example/socket-playground-demo/domain/identity"
)

// Service holds the shared counter: a single value plus the identity of
// the last modifier. It lives for the process lifetime and is never
// persisted.
type Service struct {
	value         int64
	lastUpdatedBy *identity.Identity
	mu            sync.Mutex
}

// NewService creates a counter starting at zero with no last modifier.
func NewService() *Service {
	return &Service{}
}

// Increment adds one to the counter and records the actor.
func (s *Service) Increment(actor identity.Identity) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value++
	s.lastUpdatedBy = &actor
	return s.value
}

// Decrement subtracts one from the counter and records the actor.
func (s *Service) Decrement(actor identity.Identity) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value--
	s.lastUpdatedBy = &actor
	return s.value
}

// Reset sets the counter to zero and records the actor.
func (s *Service) Reset(actor identity.Identity) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = 0
	s.lastUpdatedBy = &actor
	return s.value
}

// Set assigns the counter an explicit value and records the actor.
func (s *Service) Set(actor identity.Identity, value int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = value
	s.lastUpdatedBy = &actor
	return s.value
}

// Snapshot returns the current value and last modifier, nil if the
// counter has never been touched.
func (s *Service) Snapshot() (int64, *identity.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastUpdatedBy == nil {
		return s.value, nil
	}
	last := *s.lastUpdatedBy
	return s.value, &last
}
