package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	pkmserr "github.com/ashishacharya123/PKMS-sub000/internal/errors"
)

const lockFileName = ".pkms-search.lock"

// Set bundles the per-type inverted indexes, the document store, and the
// reference tag store under one data directory. A cross-process file lock
// guards the directory so only one process mutates the indexes at a time.
type Set struct {
	dataDir string
	lock    *flock.Flock
	docs    *SQLiteStore
	tags    *SQLiteTagStore
	indexes map[ContentType]TypeIndex
}

// Open opens the full index set under dataDir. An empty dataDir produces
// an in-memory set with no lock, used in tests.
func Open(dataDir string) (*Set, error) {
	s := &Set{
		dataDir: dataDir,
		indexes: make(map[ContentType]TypeIndex, len(AllTypes())),
	}

	if dataDir != "" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, pkmserr.InternalError("create data directory", err)
		}
		s.lock = flock.New(filepath.Join(dataDir, lockFileName))
		locked, err := s.lock.TryLock()
		if err != nil {
			return nil, pkmserr.InternalError("acquire data directory lock", err)
		}
		if !locked {
			return nil, pkmserr.New(pkmserr.ErrCodeIndexLocked,
				fmt.Sprintf("data directory %s is locked by another process", dataDir), nil)
		}
	}

	docs, err := NewSQLiteStore(docPath(dataDir))
	if err != nil {
		s.unlock()
		return nil, err
	}
	s.docs = docs
	s.tags = NewSQLiteTagStore(docs)

	for _, typ := range AllTypes() {
		idx, err := NewBleveTypeIndex(indexPath(dataDir, typ), typ)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.indexes[typ] = idx
	}
	return s, nil
}

func docPath(dataDir string) string {
	if dataDir == "" {
		return ""
	}
	return filepath.Join(dataDir, "documents.db")
}

func indexPath(dataDir string, typ ContentType) string {
	if dataDir == "" {
		return ""
	}
	return filepath.Join(dataDir, "index", string(typ)+".bleve")
}

// Index returns the inverted index for one content type.
func (s *Set) Index(typ ContentType) (TypeIndex, error) {
	idx, ok := s.indexes[typ]
	if !ok {
		return nil, pkmserr.New(pkmserr.ErrCodeSyncUnknownType,
			fmt.Sprintf("unknown content type %q", typ), nil)
	}
	return idx, nil
}

// Documents returns the document store.
func (s *Set) Documents() *SQLiteStore { return s.docs }

// Tags returns the reference tag store.
func (s *Set) Tags() *SQLiteTagStore { return s.tags }

// Close closes every index and the document store, then releases the lock.
// The first error wins but every component is still closed.
func (s *Set) Close() error {
	var firstErr error
	for _, idx := range s.indexes {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.docs != nil {
		if err := s.docs.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.unlock()
	return firstErr
}

func (s *Set) unlock() {
	if s.lock != nil {
		_ = s.lock.Unlock()
	}
}
