package lstore

import (
	"errors"
	"io/fs"
	"os"
	"sync"

	"github.com/ValentinKolb/tcsd/lib/ps"
	"github.com/ValentinKolb/tcsd/lib/store"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("store")

type storeImpl struct {
	path    string
	dialect ps.Dialect

	mu      sync.RWMutex
	order   []uuid.UUID // store order, the SRK (if registered) is always first
	records map[uuid.UUID]ps.KeyRecord
}

// Open loads the key hierarchy from the persistent store at path.
// A missing or empty file yields an empty hierarchy. All writes use the given dialect,
// independent of the dialect the file was read in.
//
// Open fails with store.ErrIO if the file cannot be read completely and with
// store.ErrFormat if it is malformed or does not describe a valid forest.
func Open(path string, dialect ps.Dialect) (store.IKeyStore, error) {
	s := &storeImpl{
		path:    path,
		dialect: dialect,
		records: make(map[uuid.UUID]ps.KeyRecord),
	}

	records, loadedDialect, err := readStore(path)
	if err != nil {
		return nil, err
	}

	// Validate before anything becomes visible
	if err := validateForest(records); err != nil {
		return nil, err
	}

	for _, rec := range records {
		s.records[rec.UUID] = rec
	}
	s.order = orderedIDs(records)

	if len(records) > 0 && loadedDialect != dialect {
		Logger.Infof("persistent store %s is in %s dialect, it will be rewritten as %s on the next change", path, loadedDialect, dialect)
	}
	Logger.Infof("loaded %d keys from %s", len(records), path)

	return s, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Insert(rec ps.KeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.UUID]; ok {
		return store.NewError(store.RetCKeyExists, "key %s is already registered", rec.UUID)
	}
	if err := checkParent(rec, s.records); err != nil {
		return err
	}

	// Persist the new state first, memory is only changed after the write succeeded
	rec = rec.Clone()
	next := make([]ps.KeyRecord, 0, len(s.order)+1)
	if rec.IsRoot() {
		next = append(next, rec)
	}
	for _, id := range s.order {
		next = append(next, s.records[id])
	}
	if !rec.IsRoot() {
		next = append(next, rec)
	}
	if err := s.persist(next); err != nil {
		return err
	}

	s.records[rec.UUID] = rec
	s.order = orderedIDs(next)
	Logger.Debugf("registered key %s (parent %s)", rec.UUID, rec.ParentUUID)
	return nil
}

func (s *storeImpl) Remove(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return store.NewError(store.RetCKeyNotFound, "key %s is not registered", id)
	}
	if children := s.childrenOf(id); len(children) > 0 {
		return store.NewError(store.RetCHasChildren, "key %s still has %d registered children", id, len(children))
	}

	next := make([]ps.KeyRecord, 0, len(s.order))
	for _, other := range s.order {
		if other != id {
			next = append(next, s.records[other])
		}
	}
	if err := s.persist(next); err != nil {
		return err
	}

	delete(s.records, id)
	s.order = orderedIDs(next)
	Logger.Debugf("unregistered key %s", id)
	return nil
}

func (s *storeImpl) Lookup(id uuid.UUID) (ps.KeyRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return ps.KeyRecord{}, false
	}
	return rec.Clone(), true
}

func (s *storeImpl) ChildrenOf(id uuid.UUID) []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.childrenOf(id)
}

func (s *storeImpl) Records() []ps.KeyRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]ps.KeyRecord, 0, len(s.order))
	for _, id := range s.order {
		records = append(records, s.records[id].Clone())
	}
	return records
}

func (s *storeImpl) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// childrenOf expects the caller to hold the lock
func (s *storeImpl) childrenOf(id uuid.UUID) []uuid.UUID {
	var children []uuid.UUID
	for _, other := range s.order {
		rec := s.records[other]
		if rec.ParentUUID == id && rec.UUID != id {
			children = append(children, rec.UUID)
		}
	}
	return children
}

// persist encodes the complete store and atomically replaces the file
func (s *storeImpl) persist(records []ps.KeyRecord) error {
	data, err := ps.Marshal(ps.NewStoreHeader(s.dialect, len(records)), records)
	if err != nil {
		if errors.Is(err, ps.ErrAmbiguousDialect) {
			return store.NewError(store.RetCFormat, "the %s dialect requires the SRK to be registered first: %v", s.dialect, err)
		}
		return store.NewError(store.RetCFormat, "encode store: %v", err)
	}
	if err := writeFileAtomic(s.path, data, 0o600); err != nil {
		return store.NewError(store.RetCIO, "write %s: %v", s.path, err)
	}
	return nil
}

// readStore decodes the complete file, trailing bytes are rejected
func readStore(path string) ([]ps.KeyRecord, ps.Dialect, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		Logger.Infof("persistent store %s does not exist, starting with an empty key hierarchy", path)
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, store.NewError(store.RetCIO, "open %s: %v", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, store.NewError(store.RetCIO, "stat %s: %v", path, err)
	}
	if info.Size() == 0 {
		return nil, 0, nil
	}

	dec, err := ps.NewDecoder(f)
	if err != nil {
		return nil, 0, codecError(path, err)
	}

	var records []ps.KeyRecord
	for rec, err := range dec.Records() {
		if err != nil {
			return nil, 0, codecError(path, err)
		}
		records = append(records, rec)
	}
	if err := dec.CheckTrailing(); err != nil {
		return nil, 0, codecError(path, err)
	}

	return records, dec.Header().Dialect, nil
}

// codecError maps errors of the ps package to store errors
func codecError(path string, err error) error {
	if errors.Is(err, ps.ErrFormat) {
		return store.NewError(store.RetCFormat, "%s: %v", path, err)
	}
	return store.NewError(store.RetCIO, "%s: %v", path, err)
}
