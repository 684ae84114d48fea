package prompts

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store for tests and local development. Values
// are copied on the way in and out so callers cannot mutate stored state.
type MemoryStore struct {
	mu      sync.RWMutex
	prompts map[string]map[string]*Prompt // userID -> promptID -> prompt
	prefs   map[string]*Preferences
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		prompts: make(map[string]map[string]*Prompt),
		prefs:   make(map[string]*Preferences),
	}
}

func copyPrompt(p *Prompt) *Prompt {
	dup := *p
	dup.Tags = append([]string(nil), p.Tags...)
	return &dup
}

func (s *MemoryStore) List(_ context.Context, userID string) ([]*Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Prompt
	for _, p := range s.prompts[userID] {
		out = append(out, copyPrompt(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, userID, id string) (*Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prompts[userID][id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyPrompt(p), nil
}

func (s *MemoryStore) Put(_ context.Context, p *Prompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prompts[p.UserID] == nil {
		s.prompts[p.UserID] = make(map[string]*Prompt)
	}
	s.prompts[p.UserID][p.ID] = copyPrompt(p)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.prompts[userID][id]; !ok {
		return ErrNotFound
	}
	delete(s.prompts[userID], id)
	return nil
}

func (s *MemoryStore) GetPreferences(_ context.Context, userID string) (*Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefs, ok := s.prefs[userID]
	if !ok {
		return nil, ErrNotFound
	}
	dup := *prefs
	dup.DefaultTags = append([]string(nil), prefs.DefaultTags...)
	return &dup, nil
}

func (s *MemoryStore) PutPreferences(_ context.Context, prefs *Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *prefs
	dup.DefaultTags = append([]string(nil), prefs.DefaultTags...)
	s.prefs[prefs.UserID] = &dup
	return nil
}

var _ Store = (*MemoryStore)(nil)
