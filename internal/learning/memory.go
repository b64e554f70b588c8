package learning

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BartekS5/fieldmapper/pkg/models"
)

// MemoryStore keeps the cache in process memory. It is the default when no
// database is configured, and the store used by tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]models.LearningCacheEntry
	now     func() time.Time
}

func NewMemoryStore(seed ...models.LearningCacheEntry) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]models.LearningCacheEntry, len(seed)),
		now:     time.Now,
	}
	for _, e := range seed {
		e.Pattern = PatternKey(e.Pattern)
		s.entries[e.Pattern] = e
	}
	return s
}

func (s *MemoryStore) TopEntries(_ context.Context, limit int) ([]models.LearningCacheEntry, error) {
	s.mu.RLock()
	out := make([]models.LearningCacheEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	s.mu.RUnlock()

	sortByUsage(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Upsert(_ context.Context, items []Upsert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	for _, u := range items {
		key := PatternKey(u.Pattern)
		var existing *models.LearningCacheEntry
		if e, ok := s.entries[key]; ok {
			existing = &e
		}
		s.entries[key] = Apply(existing, u, now)
	}
	return nil
}

// Get returns the entry for a pattern.
func (s *MemoryStore) Get(pattern string) (models.LearningCacheEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[PatternKey(pattern)]
	return e, ok
}

func sortByUsage(entries []models.LearningCacheEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].UsageCount != entries[j].UsageCount {
			return entries[i].UsageCount > entries[j].UsageCount
		}
		return entries[i].Pattern < entries[j].Pattern
	})
}
