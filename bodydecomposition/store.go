package bodydecomposition

import (
	"sort"
	"sync"

	"go.viam.com/proximity/logging"
	"go.viam.com/proximity/spatialmath"
)

// Store owns decompositions keyed by name. Lookups hand out shared references; replacing or
// removing an entry invalidates the references already handed out.
type Store struct {
	mu         sync.RWMutex
	resolution float64
	logger     logging.Logger
	entries    map[string]*BodyDecomposition
}

// NewStore returns an empty store whose decompositions sample collision points at resolution.
func NewStore(resolution float64, logger logging.Logger) *Store {
	return &Store{resolution: resolution, logger: logger, entries: map[string]*BodyDecomposition{}}
}

// LoadDecomposition returns the decomposition stored under name, computing it first when the name
// is new or the geometry or padding changed.
func (s *Store) LoadDecomposition(name string, geometry spatialmath.Geometry, padding float64) (*BodyDecomposition, error) {
	s.mu.RLock()
	existing, ok := s.entries[name]
	s.mu.RUnlock()
	if ok && sameInputs(existing, geometry, padding) {
		return existing, nil
	}

	// Decomposing can be slow; do it outside the lock.
	bd, err := NewBodyDecomposition(name, geometry, padding, s.resolution)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.entries[name]; ok {
		if sameInputs(current, geometry, padding) {
			return current, nil
		}
		current.invalidate()
		s.logger.Debugw("replaced body decomposition", "name", name)
	}
	s.entries[name] = bd
	return bd, nil
}

func sameInputs(bd *BodyDecomposition, geometry spatialmath.Geometry, padding float64) bool {
	return geometry != nil && bd.padding == padding && bd.geometry.AlmostEqual(geometry)
}

// Decomposition looks up a decomposition by name.
func (s *Store) Decomposition(name string) (*BodyDecomposition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bd, ok := s.entries[name]
	if !ok {
		return nil, NewUnknownBodyError(name)
	}
	return bd, nil
}

// Remove deletes and invalidates a decomposition. It returns false when the name is unknown.
func (s *Store) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	bd, ok := s.entries[name]
	if !ok {
		return false
	}
	bd.invalidate()
	delete(s.entries, name)
	return true
}

// Names returns the stored names, sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of stored decompositions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Resolution returns the collision point spacing.
func (s *Store) Resolution() float64 {
	return s.resolution
}
