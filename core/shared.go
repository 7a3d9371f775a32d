package core

import "sync"

// Shared is the schema-less shared state most graphs use. The engine never
// reads or writes it; nodes agree on keys by convention.
type Shared map[string]any

// Get returns the value stored under key when it has type T.
func Get[T any](s Shared, key string) (T, bool) {
	v, ok := s[key].(T)
	return v, ok
}

// GetOr returns the value stored under key, or def when missing or of another type.
func GetOr[T any](s Shared, key string, def T) T {
	if v, ok := Get[T](s, key); ok {
		return v
	}
	return def
}

// Append appends values to the slice stored under key, creating it if needed.
func Append[T any](s Shared, key string, values ...T) {
	cur, _ := s[key].([]T)
	s[key] = append(cur, values...)
}

// SyncShared is a mutex-guarded store for graphs whose parallel branches write
// to the same keys.
type SyncShared struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewSyncShared creates an empty store.
func NewSyncShared() *SyncShared {
	return &SyncShared{data: make(map[string]any)}
}

// Load returns the value stored under key.
func (s *SyncShared) Load(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Store sets key to value.
func (s *SyncShared) Store(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Update replaces the value under key with fn's result while holding the lock.
func (s *SyncShared) Update(key string, fn func(old any, ok bool) any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.data[key]
	s.data[key] = fn(old, ok)
}

// Snapshot returns a shallow copy of the store.
func (s *SyncShared) Snapshot() Shared {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(Shared, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// Load returns the typed value stored under key.
func Load[T any](s *SyncShared, key string) (T, bool) {
	v, ok := s.Load(key)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// AppendSync appends values to the slice stored under key while holding the lock.
func AppendSync[T any](s *SyncShared, key string, values ...T) {
	s.Update(key, func(old any, _ bool) any {
		cur, _ := old.([]T)
		return append(cur, values...)
	})
}
