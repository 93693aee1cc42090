package engine

import (
	"log/slog"
	"sync"

	"tellmvcc/glog"
	"tellmvcc/index"
	"tellmvcc/pagemanager"
	"tellmvcc/record"
)

// allSnapshot sees every version, committed or not, used internally for
// reads that bypass snapshot isolation (GetNewest).
type allSnapshot struct{ lowest uint64 }

func (allSnapshot) InReadSet(uint64) bool         { return true }
func (s allSnapshot) LowestActive() uint64        { return s.lowest }

// Table is one key space: an insert log, an update log, the index mapping
// each key to its NewestPtr, and the write protocol and garbage collector
// operating over them (spec sections 4.6, 4.7; grounded on deltamain's
// Table, which plays the identical role over the same pair of logs).
type Table struct {
	name string
	cfg  config

	pages     *pagemanager.Manager
	insertLog *glog.OrderedLog
	updateLog *glog.UnorderedLog
	idx       *index.Index

	gcMu   sync.Mutex
	logger *slog.Logger
}

func newTable(name string, cfg config, pages *pagemanager.Manager) (*Table, error) {
	insertLog, err := glog.NewOrderedLog(pages)
	if err != nil {
		return nil, ErrLogExhausted
	}
	updateLog, err := glog.NewUnorderedLog(pages)
	if err != nil {
		return nil, ErrLogExhausted
	}
	return &Table{
		name:      name,
		cfg:       cfg,
		pages:     pages,
		insertLog: insertLog,
		updateLog: updateLog,
		idx:       index.New(),
		logger:    cfg.logger.With("table", name),
	}, nil
}

// Insert creates a key's first version. Fails with ErrKeyExists if the
// key is already registered in the index, whether or not its current
// chain is visible to snap -- spec treats the index slot itself, not
// snapshot visibility, as the source of truth for "does this key exist".
func (t *Table) Insert(key uint64, snap *SimpleSnapshot, payload []byte) error {
	if _, ok := t.idx.Get(key); ok {
		return ErrKeyExists
	}
	e, ok := record.NewInsert(t.insertLog, key, snap.Version(), payload)
	if !ok {
		return ErrLogExhausted
	}
	if !t.idx.Insert(key, e.Newest) {
		return ErrKeyExists
	}
	return nil
}

// Get resolves key's version visible to snap.
func (t *Table) Get(key uint64, snap *SimpleSnapshot) ([]byte, error) {
	return t.get(key, snap)
}

// GetNewest resolves key's absolute newest version, committed or not,
// ignoring every snapshot's read set -- a diagnostic escape hatch the spec calls
// for alongside the snapshot-isolated Get.
func (t *Table) GetNewest(key uint64) ([]byte, error) {
	return t.get(key, allSnapshot{})
}

func (t *Table) get(key uint64, snap record.Snapshot) ([]byte, error) {
	ptr, ok := t.idx.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	cur := ptr.Resolve()
	if cur == nil {
		return nil, ErrNotFound
	}
	v := record.Resolve(cur, snap)
	if !v.Found {
		return nil, ErrNotFound
	}
	return v.Data, nil
}

// Update chains a new version behind the current one, retrying the CAS
// against concurrent writers until it succeeds or a write-write conflict
// is detected against snap's own read set (spec section 4.6).
func (t *Table) Update(key uint64, snap *SimpleSnapshot, payload []byte) error {
	ptr, ok := t.idx.Get(key)
	if !ok {
		return ErrNotFound
	}
	for {
		cur := ptr.Resolve()
		if cur == nil {
			return ErrNotFound
		}
		v := record.Resolve(cur, snap)
		if !v.Found {
			return ErrNotFound
		}
		if record.WriteConflict(v) {
			return ErrConflict
		}
		next, ok := record.NewUpdate(t.updateLog, cur, snap.Version(), payload)
		if !ok {
			return ErrLogExhausted
		}
		if ptr.CompareAndSwap(cur, next) {
			return nil
		}
	}
}

// Remove chains a tombstone behind the current version.
func (t *Table) Remove(key uint64, snap *SimpleSnapshot) error {
	ptr, ok := t.idx.Get(key)
	if !ok {
		return ErrNotFound
	}
	for {
		cur := ptr.Resolve()
		if cur == nil {
			return ErrNotFound
		}
		v := record.Resolve(cur, snap)
		if !v.Found {
			return ErrNotFound
		}
		if record.WriteConflict(v) {
			return ErrConflict
		}
		next, ok := record.NewDelete(t.updateLog, cur, snap.Version())
		if !ok {
			return ErrLogExhausted
		}
		if ptr.CompareAndSwap(cur, next) {
			return nil
		}
	}
}

// Revert undoes snap's own most recent write to key, valid only while
// that write is still the chain head -- i.e. no other transaction has had
// a chance to read or write past it (spec section 4.6).
func (t *Table) Revert(key uint64, snap *SimpleSnapshot) error {
	ptr, ok := t.idx.Get(key)
	if !ok {
		return ErrNotFound
	}
	cur := ptr.Resolve()
	if cur == nil || cur.Version() != snap.Version() {
		return ErrRevertTooLate
	}
	prev := record.Previous(cur)
	if !ptr.CompareAndSwap(cur, prev) {
		return ErrRevertTooLate
	}
	if prev == nil {
		t.idx.Erase(key)
	}
	return nil
}
