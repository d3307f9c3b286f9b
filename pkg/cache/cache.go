// Package cache keeps computed program dependence graphs in memory and on
// disk so that repeated slices of an unchanged function skip re-analysis.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/l3aro/go-program-slicer/internal/log"
	"github.com/l3aro/go-program-slicer/pkg/graph"
	"github.com/l3aro/go-program-slicer/pkg/pdg"
)

// ErrKeyNotFound is returned when a key is not found in the cache.
var ErrKeyNotFound = errors.New("key not found")

const fileExt = ".msgpack"

// Snapshot is a flattened PDG together with what it was computed from.
type Snapshot struct {
	Key       string    `msgpack:"key"`
	File      string    `msgpack:"file"`
	Function  string    `msgpack:"function"`
	CreatedAt time.Time `msgpack:"created_at"`
	PDG       pdg.Info  `msgpack:"pdg"`
}

// NewSnapshot flattens p under the key of content and function.
func NewSnapshot(file string, content []byte, function string, p *pdg.PDG) *Snapshot {
	return &Snapshot{
		Key:       Key(content, function),
		File:      file,
		Function:  function,
		CreatedAt: time.Now(),
		PDG:       *p.Info(function),
	}
}

// Restore rebuilds a sliceable PDG from the snapshot.
func (s *Snapshot) Restore() (*pdg.PDG, error) {
	p, err := pdg.FromInfo(&s.PDG)
	if err != nil {
		return nil, fmt.Errorf("restoring %s.%s: %w", s.File, s.Function, err)
	}
	return p, nil
}

// Graph rebuilds the dependence graph of the snapshot.
func (s *Snapshot) Graph() (*graph.Graph, error) {
	p, err := s.Restore()
	if err != nil {
		return nil, err
	}
	return p.Graph(), nil
}

// Key identifies a function by the sha256 of its file's content and its name.
func Key(content []byte, function string) string {
	h := sha256.New()
	h.Write(content)
	h.Write([]byte{0})
	h.Write([]byte(function))
	return hex.EncodeToString(h.Sum(nil))
}

// Options configures a Store.
type Options struct {
	// Dir is where snapshots are persisted. Empty keeps them in memory only.
	Dir string

	// MaxEntries is the number of snapshots kept in memory.
	MaxEntries int
}

// Stats holds cache hit statistics.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

// HitRate returns the fraction of lookups that were hits.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Store is an LRU of snapshots backed by one msgpack file per key.
// It is safe for concurrent use.
type Store struct {
	dir string
	mem *lru.Cache[string, *Snapshot]

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New creates a store, creating opts.Dir if needed.
func New(opts Options) (*Store, error) {
	if opts.MaxEntries <= 0 {
		return nil, fmt.Errorf("max entries must be positive, got %d", opts.MaxEntries)
	}
	s := &Store{dir: opts.Dir}

	mem, err := lru.NewWithEvict[string, *Snapshot](opts.MaxEntries, func(key string, _ *Snapshot) {
		s.evictions.Add(1)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	s.mem = mem

	if s.dir != "" {
		if err := os.MkdirAll(s.dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	return s, nil
}

// Get returns the snapshot stored under key, from memory or from disk.
func (s *Store) Get(key string) (*Snapshot, error) {
	if snap, ok := s.mem.Get(key); ok {
		s.hits.Add(1)
		return snap, nil
	}

	snap, err := s.load(key)
	if err != nil {
		s.misses.Add(1)
		return nil, err
	}
	s.hits.Add(1)
	s.mem.Add(key, snap)
	return snap, nil
}

// Put stores snap in memory and, when the store has a directory, on disk.
func (s *Store) Put(snap *Snapshot) error {
	if snap == nil || snap.Key == "" {
		return errors.New("snapshot has no key")
	}
	s.mem.Add(snap.Key, snap)
	if s.dir == "" {
		return nil
	}
	return s.persist(snap)
}

// Delete removes key from memory and disk.
func (s *Store) Delete(key string) error {
	s.mem.Remove(key)
	if s.dir == "" {
		return nil
	}
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cache file: %w", err)
	}
	return nil
}

// Clear empties memory and removes every persisted snapshot.
func (s *Store) Clear() error {
	s.mem.Purge()
	if s.dir == "" {
		return nil
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			return fmt.Errorf("failed to remove cache file: %w", err)
		}
	}
	return nil
}

// Len returns the number of snapshots held in memory.
func (s *Store) Len() int {
	return s.mem.Len()
}

// Stats returns hit, miss and eviction counts.
func (s *Store) Stats() Stats {
	return Stats{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Evictions: s.evictions.Load(),
	}
}

// GetOrCompute returns the cached snapshot for function in content, calling
// compute and storing its result on a miss. The boolean reports a hit.
func (s *Store) GetOrCompute(file string, content []byte, function string, compute func() (*pdg.PDG, error)) (*Snapshot, bool, error) {
	key := Key(content, function)
	snap, err := s.Get(key)
	if err == nil {
		return snap, true, nil
	}
	if !errors.Is(err, ErrKeyNotFound) {
		log.Default().Warn("Ignoring unreadable cache entry", "key", key, "error", err)
	}

	p, err := compute()
	if err != nil {
		return nil, false, err
	}
	snap = NewSnapshot(file, content, function, p)
	if err := s.Put(snap); err != nil {
		log.Default().Warn("Failed to persist cache entry", "key", key, "error", err)
	}
	return snap, false, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+fileExt)
}

func (s *Store) load(key string) (*Snapshot, error) {
	if s.dir == "" {
		return nil, fmt.Errorf("%s: %w", key, ErrKeyNotFound)
	}
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", key, ErrKeyNotFound)
		}
		return nil, fmt.Errorf("failed to open cache file: %w", err)
	}

	var snap Snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode cache: %w", err)
	}
	if snap.Key != key {
		return nil, fmt.Errorf("cache file %s holds key %s", s.path(key), snap.Key)
	}
	return &snap, nil
}

// persist writes snap next to its final path and renames it into place so
// readers never see a partial file.
func (s *Store) persist(snap *Snapshot) error {
	data, err := msgpack.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, snap.Key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(snap.Key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move cache file: %w", err)
	}
	return nil
}
