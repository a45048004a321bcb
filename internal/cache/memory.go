package cache

import (
	"context"
	"sync"
)

// MemoryStore keeps entries in process memory. Entries are copied on the way in and out.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[Key]*Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[Key]*Entry)}
}

func (s *MemoryStore) Get(_ context.Context, key Key) (*Entry, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e.clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, entry *Entry) error {
	c := entry.clone()
	s.mu.Lock()
	s.entries[c.Key()] = c
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key Key) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, filter Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.entries {
		if filter.matches(k) {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st Stats
	symbols := map[string]struct{}{}
	for _, e := range s.entries {
		st.Entries++
		switch e.Kind {
		case KindBars:
			st.BarEntries++
		case KindChain:
			st.ChainEntries++
		}
		symbols[e.Symbol] = struct{}{}
		if st.Oldest.IsZero() || e.FetchedAt.Before(st.Oldest) {
			st.Oldest = e.FetchedAt
		}
		if e.FetchedAt.After(st.Newest) {
			st.Newest = e.FetchedAt
		}
	}
	st.Symbols = int64(len(symbols))
	return st, nil
}

func (s *MemoryStore) Close() error { return nil }
