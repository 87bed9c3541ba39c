package runtime

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cruciblehq/spfs/internal/encoding"
	"github.com/cruciblehq/spfs/internal/objects"
	"github.com/cruciblehq/spfs/internal/paths"
)

// Status is the mutable part of a Record.
type Status struct {
	Running  bool `json:"running"`
	Owner    int  `json:"owner"`
	Editable bool `json:"editable"`
}

// Record is the on-disk representation of a Runtime, persisted as JSON at
// <root>/runtimes/<name>.json.
type Record struct {
	Name   string            `json:"name"`
	Status Status            `json:"status"`
	Stack  []encoding.Digest `json:"stack"`
	Config map[string]string `json:"config"`
}

func (r *Record) stack() *objects.Stack {
	return objects.NewStack(r.Stack)
}

// Store persists Records under a repository root's runtimes directory.
// Each name is guarded by its own in-process mutex for the duration of a
// read-modify-write cycle; the actual durability step is a
// write-to-temp-then-rename, matching the discipline internal/repo uses
// for objects and tags.
type Store struct {
	root string

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	scratch string // per-store scratch directory for runtime upper/work/merged dirs
}

// NewStore opens (creating if necessary) the runtime record store rooted
// at a repository root.
func NewStore(root string) (*Store, error) {
	dir := paths.Runtimes(root)
	if err := os.MkdirAll(dir, paths.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("init runtime store at %s: %w", dir, err)
	}
	scratch := filepath.Join(dir, ".scratch")
	if err := os.MkdirAll(scratch, paths.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("init runtime scratch at %s: %w", scratch, err)
	}
	return &Store{root: root, locks: make(map[string]*sync.Mutex), scratch: scratch}, nil
}

func (s *Store) lockFor(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[name]
	if !ok {
		m = &sync.Mutex{}
		s.locks[name] = m
	}
	return m
}

func (s *Store) recordPath(name string) string {
	return filepath.Join(paths.Runtimes(s.root), name+".json")
}

// scratchDir returns the directory under which a runtime's upper, work,
// and merged mount directories live.
func (s *Store) scratchDir(name string) string {
	return filepath.Join(s.scratch, name)
}

// Create writes a new record under name, failing with ErrRuntimeExists if
// one is already present.
func (s *Store) Create(name string, editable bool, owner int, stack *objects.Stack, config map[string]string) (*Record, error) {
	lock := s.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	if _, err := os.Stat(s.recordPath(name)); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrRuntimeExists, name)
	}

	rec := &Record{
		Name: name,
		Status: Status{
			Running:  true,
			Owner:    owner,
			Editable: editable,
		},
		Stack:  stack.Layers(),
		Config: config,
	}
	if err := s.writeLocked(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Load reads the record stored under name.
func (s *Store) Load(name string) (*Record, error) {
	data, err := os.ReadFile(s.recordPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRuntime, name)
		}
		return nil, fmt.Errorf("read runtime record %s: %w", name, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode runtime record %s: %w", name, err)
	}
	return &rec, nil
}

// Update loads the record under name, applies fn, and persists the result,
// all while holding the record's lock.
func (s *Store) Update(name string, fn func(rec *Record) error) (*Record, error) {
	lock := s.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.Load(name)
	if err != nil {
		return nil, err
	}
	if err := fn(rec); err != nil {
		return nil, err
	}
	if err := s.writeLocked(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// writeLocked durably persists rec via write-to-temp-then-rename. Callers
// must already hold the record's lock.
func (s *Store) writeLocked(rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode runtime record %s: %w", rec.Name, err)
	}

	dir := paths.Runtimes(s.root)
	tmp, err := os.CreateTemp(dir, rec.Name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp runtime record: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write runtime record %s: %w", rec.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close runtime record %s: %w", rec.Name, err)
	}
	if err := os.Rename(tmp.Name(), s.recordPath(rec.Name)); err != nil {
		return fmt.Errorf("rename runtime record %s: %w", rec.Name, err)
	}
	return nil
}

// Remove deletes the record and its scratch directory for name. Missing
// records are not an error.
func (s *Store) Remove(name string) error {
	lock := s.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(s.recordPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove runtime record %s: %w", name, err)
	}
	if err := os.RemoveAll(s.scratchDir(name)); err != nil {
		return fmt.Errorf("remove runtime scratch %s: %w", name, err)
	}
	return nil
}

// List returns the names of every runtime record currently stored.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(paths.Runtimes(s.root))
	if err != nil {
		return nil, fmt.Errorf("list runtime records: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, e.Name()[:len(e.Name())-len(".json")])
	}
	return names, nil
}
