package agent

import (
	"context"
	"sort"
	"sync"

	"github.com/soyeahso/kairos/internal/domain"
)

// CheckpointStore persists conversation state per thread.
type CheckpointStore interface {
	// Load returns the saved state for a thread, or nil if there is none.
	Load(ctx context.Context, threadID string) (*domain.ConversationState, error)

	// Save durably records the state.
	Save(ctx context.Context, state *domain.ConversationState) error

	// List returns a summary of every stored thread, most recently updated first.
	List(ctx context.Context) ([]domain.ThreadSummary, error)
}

// MemoryCheckpointStore is an in-memory CheckpointStore. States are copied
// on the way in and out.
type MemoryCheckpointStore struct {
	mu     sync.RWMutex
	states map[string]*domain.ConversationState
}

// NewMemoryCheckpointStore creates an empty in-memory store.
func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{states: make(map[string]*domain.ConversationState)}
}

func (s *MemoryCheckpointStore) Load(_ context.Context, threadID string) (*domain.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[threadID].Clone(), nil
}

func (s *MemoryCheckpointStore) Save(_ context.Context, state *domain.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.ThreadID] = state.Clone()
	return nil
}

func (s *MemoryCheckpointStore) List(_ context.Context) ([]domain.ThreadSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ThreadSummary, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, st.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}
