package lodestone

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/lodestone-db/lodestone/internal/arena"
	"github.com/lodestone-db/lodestone/internal/btree"
	"github.com/lodestone-db/lodestone/internal/bytestring"
	"github.com/lodestone-db/lodestone/internal/txn"
)

// Store is an open lodestone store. All methods are safe for concurrent
// use; writes serialize on the single writer slot, reads run against
// pinned snapshots.
type Store struct {
	arena   *arena.Arena
	entries *bytestring.Codec
	tree    *btree.Store
	manager *txn.Manager
	log     *logrus.Logger

	readOnly bool

	mu     sync.Mutex
	closed bool
}

// Stats is a point-in-time snapshot of a store's space accounting.
type Stats struct {
	// LivePages is the number of pages holding referenced data.
	LivePages uint64
	// FreePages is the number of released pages awaiting reuse.
	FreePages uint64
	// RefCountPages is the number of pages spent on reference counters.
	RefCountPages uint64
	// Bytes is the size of the backing file or buffer.
	Bytes int64
	// LastTxnID is the id of the most recent committed transaction.
	LastTxnID uint64
}

// Open opens or creates the store file at path.
func Open(path string, opts Options) (*Store, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	backing, err := arena.OpenFileBacking(path, 0, opts.PageSize, opts.ReadOnly)
	if err != nil {
		return nil, err
	}
	s, err := open(backing, opts)
	if err != nil {
		backing.Close()
		return nil, err
	}
	return s, nil
}

// OpenMemory creates a transient in-memory store. Its contents are lost
// when it is closed.
func OpenMemory(opts Options) (*Store, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return open(arena.NewMemoryBacking(0), opts)
}

func open(backing arena.Backing, opts Options) (*Store, error) {
	log := opts.Logger
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}

	a, err := arena.NewArena(backing, arena.Config{
		Geometry: opts.geometry(),
		MaxPages: opts.MaxPages,
		ReadOnly: opts.ReadOnly,
		Logger:   log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	entries := bytestring.New(a)
	tree, err := btree.NewStore(a, entries, opts.NodeCacheSize)
	if err != nil {
		a.Close()
		return nil, err
	}

	manager := txn.NewManager(a, tree, entries, txn.Config{
		SyncOnCommit: opts.SyncOnCommit,
		Logger:       log,
	})
	return &Store{
		arena:    a,
		entries:  entries,
		tree:     tree,
		manager:  manager,
		log:      log,
		readOnly: opts.ReadOnly,
	}, nil
}

// BeginRead starts a snapshot read transaction. It never blocks.
func (s *Store) BeginRead() (*ReadTxn, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	inner, err := s.manager.BeginRead()
	if err != nil {
		return nil, err
	}
	return &ReadTxn{inner: inner}, nil
}

// BeginWrite starts the exclusive write transaction, failing fast with
// ErrWriterActive when one is already running.
func (s *Store) BeginWrite() (*WriteTxn, error) {
	if err := s.writeCheck(); err != nil {
		return nil, err
	}
	inner, err := s.manager.BeginWrite()
	if err != nil {
		return nil, err
	}
	return &WriteTxn{inner: inner, maxSize: s.entries.MaxSize()}, nil
}

// BeginWriteContext starts the exclusive write transaction, waiting for a
// running one to finish or for ctx to be done.
func (s *Store) BeginWriteContext(ctx context.Context) (*WriteTxn, error) {
	if err := s.writeCheck(); err != nil {
		return nil, err
	}
	inner, err := s.manager.BeginWriteContext(ctx)
	if err != nil {
		return nil, err
	}
	return &WriteTxn{inner: inner, maxSize: s.entries.MaxSize()}, nil
}

// View runs fn inside a read transaction and ends it afterwards.
func (s *Store) View(fn func(*ReadTxn) error) error {
	tx, err := s.BeginRead()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.End()
		return err
	}
	return tx.End()
}

// Update runs fn inside a write transaction, committing when fn returns
// nil and aborting otherwise.
func (s *Store) Update(fn func(*WriteTxn) error) error {
	tx, err := s.BeginWrite()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Abort()
		return err
	}
	return tx.Commit()
}

// Stats returns a snapshot of the store's space accounting.
func (s *Store) Stats() Stats {
	pages := s.arena.Stats()
	_, lastTxnID := s.manager.Root()
	return Stats{
		LivePages:     pages.Live,
		FreePages:     pages.Free,
		RefCountPages: pages.RefCountPages,
		Bytes:         pages.Bytes,
		LastTxnID:     lastTxnID,
	}
}

// Sync flushes the store to stable storage.
func (s *Store) Sync() error {
	if err := s.check(); err != nil {
		return err
	}
	return s.arena.Sync()
}

// Close closes the store. It fails with ErrActiveTxns while any
// transaction is still running.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if err := s.manager.Close(); err != nil {
		return err
	}
	s.closed = true
	s.tree.Close()
	return s.arena.Close()
}

func (s *Store) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

func (s *Store) writeCheck() error {
	if err := s.check(); err != nil {
		return err
	}
	if s.readOnly {
		return ErrReadOnly
	}
	return nil
}
