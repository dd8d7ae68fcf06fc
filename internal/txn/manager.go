// Package txn coordinates access to a lodestone store: one exclusive writer
// building the next tree version, any number of readers pinned to committed
// versions. Versions are pinned and unpinned through the arena's reference
// counts, so a snapshot stays readable for exactly as long as someone holds
// it.
package txn

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/lodestone-db/lodestone/internal/arena"
	"github.com/lodestone-db/lodestone/internal/btree"
	"github.com/lodestone-db/lodestone/internal/bytestring"
)

// Transaction errors.
var (
	ErrWriterActive  = errors.New("another write transaction is active")
	ErrTxnDone       = errors.New("transaction already finished")
	ErrTxnFailed     = errors.New("transaction failed and must be aborted")
	ErrManagerClosed = errors.New("transaction manager is closed")
	ErrActiveTxns    = errors.New("transactions still active")
)

// Config carries the manager's commit behavior.
type Config struct {
	// SyncOnCommit flushes the backing to stable storage on every commit.
	SyncOnCommit bool

	// Logger receives transaction lifecycle events. Nil disables logging.
	Logger *logrus.Logger
}

// Manager hands out transactions over one tree store. It enforces the
// single-writer rule with a one-slot channel and serializes root publication
// under its mutex.
type Manager struct {
	arena   *arena.Arena
	tree    *btree.Store
	entries *bytestring.Codec

	mu        sync.Mutex
	root      arena.Location // committed root
	lastTxnID uint64
	readers   int
	writer    bool
	closed    bool

	writerSlot chan struct{}

	syncOnCommit bool
	log          *logrus.Logger
}

// NewManager creates a manager whose committed state is the root currently
// published in the arena header.
func NewManager(a *arena.Arena, tree *btree.Store, entries *bytestring.Codec, cfg Config) *Manager {
	log := cfg.Logger
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}
	root, lastTxnID := a.Root()
	return &Manager{
		arena:        a,
		tree:         tree,
		entries:      entries,
		root:         root,
		lastTxnID:    lastTxnID,
		writerSlot:   make(chan struct{}, 1),
		syncOnCommit: cfg.SyncOnCommit,
		log:          log,
	}
}

// BeginRead pins the committed version and returns a read transaction over
// it. Readers never block and never see later commits.
func (m *Manager) BeginRead() (*ReadTxn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}
	if !m.root.IsNil() {
		if err := m.arena.Retain(m.root.Page); err != nil {
			return nil, err
		}
	}
	m.readers++
	return &ReadTxn{m: m, root: m.root, id: m.lastTxnID}, nil
}

// BeginWrite starts the next write transaction, failing fast with
// ErrWriterActive when one is already running.
func (m *Manager) BeginWrite() (*WriteTxn, error) {
	select {
	case m.writerSlot <- struct{}{}:
		return m.setupWriter()
	default:
		return nil, ErrWriterActive
	}
}

// BeginWriteContext starts the next write transaction, waiting for the
// running one to finish or for ctx to be done, whichever comes first.
func (m *Manager) BeginWriteContext(ctx context.Context) (*WriteTxn, error) {
	select {
	case m.writerSlot <- struct{}{}:
		return m.setupWriter()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// setupWriter pins the base version for a writer that holds the slot.
func (m *Manager) setupWriter() (*WriteTxn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		<-m.writerSlot
		return nil, ErrManagerClosed
	}
	if !m.root.IsNil() {
		if err := m.arena.Retain(m.root.Page); err != nil {
			<-m.writerSlot
			return nil, err
		}
	}
	m.writer = true

	w := &WriteTxn{
		m:        m,
		id:       m.lastTxnID + 1,
		base:     m.root,
		working:  m.root,
		baseTail: m.arena.Stats().Tail,
	}
	m.log.WithField("txn", w.id).Debug("write transaction started")
	return w, nil
}

// endRead unpins a reader's version.
func (m *Manager) endRead(root arena.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.readers--
	return m.tree.ReleaseTree(root)
}

// commit publishes the writer's version as the committed state. The writer
// slot frees on every exit; a failed commit leaves the transaction done, not
// the store locked.
func (m *Manager) commit(w *WriteTxn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.finishWriter()

	if w.working == w.base {
		// Nothing changed; just unpin the base.
		return m.tree.ReleaseTree(w.base)
	}

	if err := m.arena.PublishRoot(w.working, w.id); err != nil {
		return err
	}
	old := m.root
	m.root = w.working
	m.lastTxnID = w.id

	// Two references die with the old version: the committed-root pointer
	// and the writer's base pin.
	if err := m.tree.ReleaseTree(old); err != nil {
		return err
	}
	if err := m.tree.ReleaseTree(w.base); err != nil {
		return err
	}

	if m.syncOnCommit {
		if err := m.arena.Sync(); err != nil {
			return err
		}
	}
	m.log.WithFields(logrus.Fields{
		"txn":  w.id,
		"root": w.working,
	}).Debug("write transaction committed")
	return nil
}

// abort discards the writer's version. The base version is untouched, so
// aborting cannot fail; internal release errors mean a corrupted store and
// are only logged.
func (m *Manager) abort(w *WriteTxn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if w.working != w.base {
		if err := m.tree.ReleaseTree(w.working); err != nil {
			m.log.WithError(err).WithField("txn", w.id).Error("failed to discard aborted version")
		}
	}
	if err := m.tree.ReleaseTree(w.base); err != nil {
		m.log.WithError(err).WithField("txn", w.id).Error("failed to unpin base version")
	}

	// Everything the transaction took from the tail is free again; rewind
	// it so the accounting matches the state the transaction started from.
	if err := m.arena.TrimTail(w.baseTail); err != nil {
		m.log.WithError(err).WithField("txn", w.id).Error("failed to trim aborted allocations")
	}
	m.finishWriter()
	m.log.WithField("txn", w.id).Debug("write transaction aborted")
}

// finishWriter clears the writer bookkeeping and frees the slot. Callers
// hold m.mu.
func (m *Manager) finishWriter() {
	m.writer = false
	<-m.writerSlot
}

// Root returns the committed root and its transaction id.
func (m *Manager) Root() (arena.Location, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.root, m.lastTxnID
}

// Close stops the manager. It fails with ErrActiveTxns while any
// transaction is still running.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrManagerClosed
	}
	if m.readers > 0 || m.writer {
		return ErrActiveTxns
	}
	m.closed = true
	return nil
}
