// Package engine wires the page manager, append-only logs, record shapes,
// and index into the public key-value storage engine (spec section 2,
// components C7/C8): Store owns a set of named tables sharing one page
// manager and one commit manager, and runs garbage collection against
// them the way the teacher runs its own background maintenance loop
// (mvcc/gc.go's ticker-driven collectVersions).
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tellmvcc/epoch"
	"tellmvcc/pagemanager"
)

// Store is the top-level handle to the storage engine: a page manager,
// an epoch-based reclaimer, a commit manager, and a set of tables.
type Store struct {
	cfg   config
	alloc *epoch.Allocator
	pages *pagemanager.Manager
	cm    *CommitManager

	mu     sync.RWMutex
	tables map[string]*Table

	logger *slog.Logger

	gcCancel context.CancelFunc
	gcWG     sync.WaitGroup
}

// New constructs a Store. Every table created from it shares one page
// manager and memory budget (WithTotalMemory).
func New(opts ...Option) *Store {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	alloc := epoch.New()
	return &Store{
		cfg:    cfg,
		alloc:  alloc,
		pages:  pagemanager.New(alloc, cfg.pageSize, cfg.totalMemory),
		cm:     NewCommitManager(),
		tables: make(map[string]*Table),
		logger: cfg.logger,
	}
}

// StartTx begins a new transaction, returning a snapshot to pass to every
// read and write it performs.
func (s *Store) StartTx() *SimpleSnapshot { return s.cm.StartTx() }

// CreateTable registers a new, empty table under name.
func (s *Store) CreateTable(name string) (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tables[name]; exists {
		return nil, ErrTableExists
	}
	t, err := newTable(name, s.cfg, s.pages)
	if err != nil {
		return nil, err
	}
	s.tables[name] = t
	return t, nil
}

// Table returns a previously created table.
func (s *Store) Table(name string) (*Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return nil, ErrTableNotFound
	}
	return t, nil
}

// ForceGC runs one synchronous garbage collection sweep over every table,
// using the commit manager's current view of the oldest active
// transaction as the cutoff (spec section 4.7).
func (s *Store) ForceGC() map[string]int {
	lowest := s.cm.LowestActive()
	s.mu.RLock()
	tables := make([]*Table, 0, len(s.tables))
	names := make([]string, 0, len(s.tables))
	for name, t := range s.tables {
		tables = append(tables, t)
		names = append(names, name)
	}
	s.mu.RUnlock()

	result := make(map[string]int, len(tables))
	for i, t := range tables {
		result[names[i]] = t.RunGC(lowest)
	}
	return result
}

// StartBackgroundGC runs ForceGC on cfg.gcInterval until StopBackgroundGC
// or Close is called. Calling it twice without an intervening stop is a
// no-op.
func (s *Store) StartBackgroundGC() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gcCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.gcCancel = cancel
	s.gcWG.Add(1)
	go s.runBackgroundGC(ctx)
}

func (s *Store) runBackgroundGC(ctx context.Context) {
	defer s.gcWG.Done()
	ticker := time.NewTicker(s.cfg.gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.logger.Debug("background gc sweep starting")
			s.ForceGC()
		}
	}
}

// StopBackgroundGC stops a goroutine started by StartBackgroundGC, if any.
func (s *Store) StopBackgroundGC() {
	s.mu.Lock()
	cancel := s.gcCancel
	s.gcCancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		s.gcWG.Wait()
	}
}

// Close stops any background GC loop. Safe to call more than once.
func (s *Store) Close() error {
	s.StopBackgroundGC()
	return nil
}
