package uuidtext

import (
	"sync"

	"github.com/google/uuid"
)

// Loader opens the raw bytes of the UUID text file for id, typically
// backed by a provider.Provider. It is called at most once per id.
type Loader func(id uuid.UUID) ([]byte, error)

// Store memoizes parsed Tables keyed by UUID, loading lazily on first
// Resolve/Get so an archive's hundreds of never-referenced UUID text
// files are never opened. Safe for concurrent use.
type Store struct {
	load Loader

	mtx    sync.Mutex
	tables map[uuid.UUID]*Table
	errs   map[uuid.UUID]error
}

// NewStore returns a Store that lazily loads tables via load.
func NewStore(load Loader) *Store {
	return &Store{
		load:   load,
		tables: make(map[uuid.UUID]*Table),
		errs:   make(map[uuid.UUID]error),
	}
}

// Get returns the parsed Table for id, loading and parsing it on first
// use. A failed load is memoized too, so a missing file is only attempted
// once per archive.
func (s *Store) Get(id uuid.UUID) (*Table, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if t, ok := s.tables[id]; ok {
		return t, nil
	}
	if err, ok := s.errs[id]; ok {
		return nil, err
	}

	buf, err := s.load(id)
	if err != nil {
		s.errs[id] = err
		return nil, err
	}
	t, err := Parse(buf)
	if err != nil {
		s.errs[id] = err
		return nil, err
	}
	s.tables[id] = t
	return t, nil
}
