package dsc

import (
	"sync"

	"github.com/google/uuid"
)

// Loader opens the raw bytes of a DSC file for id, typically backed by a
// provider.Provider.
type Loader func(id uuid.UUID) ([]byte, error)

// Store memoizes parsed Dsc files keyed by UUID, lazily loading on first
// use; a failed load is memoized too. Safe for concurrent use.
type Store struct {
	load Loader

	mtx   sync.Mutex
	files map[uuid.UUID]*Dsc
	errs  map[uuid.UUID]error
}

// NewStore returns a Store that lazily loads DSC files via load.
func NewStore(load Loader) *Store {
	return &Store{
		load:  load,
		files: make(map[uuid.UUID]*Dsc),
		errs:  make(map[uuid.UUID]error),
	}
}

// Get returns the parsed Dsc for id, loading it on first use.
func (s *Store) Get(id uuid.UUID) (*Dsc, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if d, ok := s.files[id]; ok {
		return d, nil
	}
	if err, ok := s.errs[id]; ok {
		return nil, err
	}

	buf, err := s.load(id)
	if err != nil {
		s.errs[id] = err
		return nil, err
	}
	d, err := Parse(buf)
	if err != nil {
		s.errs[id] = err
		return nil, err
	}
	s.files[id] = d
	return d, nil
}
