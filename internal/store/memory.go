package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/weather-gateway/internal/weather"
)

// MemoryStore is a concurrency-safe in-memory store. Contents are lost on
// restart.
type MemoryStore struct {
	mu sync.RWMutex

	// oldest first; listing reverses
	favorites []Favorite
	prefs     *Preferences

	now func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// ListFavorites returns all favorites, newest first.
func (s *MemoryStore) ListFavorites(ctx context.Context) ([]Favorite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Favorite, 0, len(s.favorites))
	for i := len(s.favorites) - 1; i >= 0; i-- {
		out = append(out, s.favorites[i])
	}
	return out, nil
}

// AddFavorite saves city. Adding a city that is already saved returns the
// existing entry.
func (s *MemoryStore) AddFavorite(ctx context.Context, city weather.CityCandidate) (Favorite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.favorites {
		if sameCity(f.CityCandidate, city) {
			return f, nil
		}
	}

	f := Favorite{
		ID:            uuid.NewString(),
		CityCandidate: city,
		CreatedAt:     s.now().UTC(),
	}
	s.favorites = append(s.favorites, f)
	return f, nil
}

// RemoveFavorite deletes the favorite matching city by name, country and
// coordinates.
func (s *MemoryStore) RemoveFavorite(ctx context.Context, city weather.CityCandidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, f := range s.favorites {
		if sameCity(f.CityCandidate, city) {
			s.favorites = append(s.favorites[:i], s.favorites[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// GetPreferences returns the saved preferences, or the defaults.
func (s *MemoryStore) GetPreferences(ctx context.Context) (Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.prefs == nil {
		return DefaultPreferences(), nil
	}
	return *s.prefs, nil
}

// UpdatePreferences applies fn to the saved preferences under the store lock.
func (s *MemoryStore) UpdatePreferences(ctx context.Context, fn func(Preferences) Preferences) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := DefaultPreferences()
	if s.prefs != nil {
		cur = *s.prefs
	}
	next := fn(cur)
	s.prefs = &next
	return next, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
