package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mkarlsson/taskgraph/pkg/logging"
	"github.com/mkarlsson/taskgraph/pkg/model"
)

// Store reads and writes one task collection file. Each operation follows
// the read-entire-file, mutate in memory, write-entire-file cycle; the write
// goes through a temp file and rename so readers never see a partial
// collection. A lock sentinel guards against a second writer racing the same
// cycle.
type Store struct {
	path string
}

// NewStore creates a store around the given collection file path
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the collection file path
func (s *Store) Path() string {
	return s.path
}

// Load reads and decodes the whole collection
func (s *Store) Load() (*model.TaskCollection, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading collection: %w", err)
	}

	var c model.TaskCollection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding collection: %w", err)
	}
	return &c, nil
}

// Save encodes and writes the whole collection atomically
func (s *Store) Save(c *model.TaskCollection) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding collection: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".tasks-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing collection: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing collection: %w", err)
	}
	return nil
}

// ErrLocked is returned when another writer holds the collection lock
var ErrLocked = errors.New("collection is locked by another writer")

// lockPath derives the sentinel path next to the collection file
func (s *Store) lockPath() string {
	return s.path + ".lock"
}

// Lock takes the single-writer lock. It fails fast with ErrLocked rather
// than blocking; callers decide whether to retry.
func (s *Store) Lock() error {
	f, err := os.OpenFile(s.lockPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return ErrLocked
		}
		return fmt.Errorf("taking lock: %w", err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	return f.Close()
}

// Unlock releases the single-writer lock
func (s *Store) Unlock() {
	if err := os.Remove(s.lockPath()); err != nil && !os.IsNotExist(err) {
		logging.Warn("failed to remove lock file", "path", s.lockPath(), "error", err)
	}
}

// Update runs one locked load-mutate-save cycle. The mutation function
// receives the freshly loaded collection; returning an error aborts the
// cycle without writing.
func (s *Store) Update(fn func(*model.TaskCollection) error) error {
	if err := s.Lock(); err != nil {
		return err
	}
	defer s.Unlock()

	c, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(c); err != nil {
		return err
	}
	return s.Save(c)
}
