package datalake

import (
	"strconv"
	"strings"
	"sync"
)

// KeySet records which dedup keys have been seen. It is what decides the
// surviving row when a table is deduplicated: the first Add of a key wins.
// Implementations must be threadsafe.
type KeySet interface {
	// Add records key and reports whether it was not present before.
	Add(key string) (bool, error)
	Close() error
}

// KeySetFunc returns a fresh, empty KeySet for deduplicating the named table.
type KeySetFunc func(table string) (KeySet, error)

// MapKeySet is an in-memory KeySet.
type MapKeySet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewMapKeySet returns an empty MapKeySet.
func NewMapKeySet() *MapKeySet {
	return &MapKeySet{keys: make(map[string]struct{})}
}

// NewMapKeySetFunc is a KeySetFunc returning MapKeySets.
func NewMapKeySetFunc(string) (KeySet, error) {
	return NewMapKeySet(), nil
}

// Add implements KeySet.
func (s *MapKeySet) Add(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	s.keys[key] = struct{}{}
	return true, nil
}

// Len returns the number of distinct keys added.
func (s *MapKeySet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// Close implements KeySet.
func (s *MapKeySet) Close() error { return nil }

// compositeKey encodes a multi-column key. Each part is length prefixed so
// distinct tuples always give distinct keys.
func compositeKey(parts ...string) string {
	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(strconv.Itoa(len(p)))
		sb.WriteByte(':')
		sb.WriteString(p)
	}
	return sb.String()
}
