package arena

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Config carries the opening parameters for an Arena.
type Config struct {
	// Geometry is the page layout of the store. It must match the layout the
	// store was created with; opening an existing store with different
	// parameters fails with ErrGeometryMismatch.
	Geometry Geometry

	// MaxPages caps the total number of page positions the arena may claim.
	// Zero means the cap is the addressing limit of the location width.
	MaxPages uint64

	// ReadOnly opens the arena without write access. Allocate, Retain and
	// Release fail on a read-only arena.
	ReadOnly bool

	// Logger receives structural events. Nil disables logging.
	Logger *logrus.Logger
}

// Stats is a point-in-time snapshot of the arena's page accounting.
type Stats struct {
	// Tail is the next never-claimed page position.
	Tail PageID
	// Live is the number of pages with a positive reference count.
	Live uint64
	// Free is the number of released pages awaiting reuse.
	Free uint64
	// RefCountPages is the number of pages spent on reference counters.
	RefCountPages uint64
	// Bytes is the size of the underlying backing.
	Bytes int64
}

// Arena is a page allocator with persisted per-page reference counts.
//
// Pages are claimed in order from a tail cursor and recycled through a free
// list once their count drops to zero. Every page carries its MemType tag in
// its first byte; the counters live in interleaved RefCount pages so that
// the whole allocator state survives in the backing and can be rebuilt on
// open.
//
// All mutating operations are serialized by an internal mutex. Page contents
// returned by View stay readable for as long as the arena is open, even
// across growth of the backing.
type Arena struct {
	mu       sync.Mutex
	geom     Geometry
	backing  Backing
	header   *Header
	tail     PageID
	freeList []PageID
	live     uint64
	free     uint64
	maxPages uint64
	readOnly bool
	closed   bool
	log      *logrus.Logger
}

// NewArena opens an arena on top of backing. A backing whose header region
// is all zero is initialized as a fresh store; anything else must carry a
// valid store header, from which the tail cursor, free list and page counts
// are rebuilt.
func NewArena(backing Backing, cfg Config) (*Arena, error) {
	geom := cfg.Geometry
	if geom == (Geometry{}) {
		geom = DefaultGeometry()
	}
	if err := geom.Validate(); err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}

	a := &Arena{
		geom:     geom,
		backing:  backing,
		maxPages: cfg.MaxPages,
		readOnly: cfg.ReadOnly,
		log:      log,
	}

	if err := backing.Grow(int64(geom.PageSize)); err != nil {
		return nil, fmt.Errorf("failed to reserve header region: %w", err)
	}
	buf, err := backing.Range(0, HeaderSize)
	if err != nil {
		return nil, err
	}

	if isZero(buf) {
		if err := a.initialize(); err != nil {
			return nil, err
		}
	} else {
		if err := a.recover(buf); err != nil {
			return nil, err
		}
	}

	a.log.WithFields(logrus.Fields{
		"tail": a.tail,
		"live": a.live,
		"free": a.free,
	}).Debug("arena opened")
	return a, nil
}

// initialize writes a fresh header. The tail starts at zero, so the first
// allocation lays down page 0 as the initial RefCount page.
func (a *Arena) initialize() error {
	if a.readOnly {
		return fmt.Errorf("cannot initialize a read-only store")
	}
	a.header = NewHeader(a.geom)
	return a.writeHeaderLocked()
}

// recover validates the persisted header and rebuilds the in-memory free
// list and page counts by scanning the RefCount pages below the tail.
func (a *Arena) recover(buf []byte) error {
	hdr := &Header{}
	if err := hdr.DeserializeAndValidate(buf); err != nil {
		return err
	}
	if hdr.Geometry != a.geom {
		return fmt.Errorf("%w: store uses page size %d, location width %d, header width %d",
			ErrGeometryMismatch, hdr.Geometry.PageSize, hdr.Geometry.LocationWidth, hdr.Geometry.HeaderWidth)
	}
	a.header = hdr
	a.tail = hdr.Tail

	if a.tail > 0 {
		if err := a.backing.Grow(a.pageOffset(a.tail)); err != nil {
			return fmt.Errorf("store backing shorter than header tail: %w", err)
		}
	}

	for p := PageID(0); p < a.tail; p++ {
		if a.geom.IsRefCountPage(p) {
			continue
		}
		c, err := a.counterLocked(p)
		if err != nil {
			return err
		}
		if binary.LittleEndian.Uint32(c) == 0 {
			a.freeList = append(a.freeList, p)
			a.free++
		} else {
			a.live++
		}
	}
	return nil
}

// isZero reports whether every byte of buf is zero.
func isZero(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}

// pageOffset returns the byte offset of page id. The first page of the
// backing is reserved for the store header, so page 0 starts one page in.
func (a *Arena) pageOffset(id PageID) int64 {
	return int64(a.geom.PageSize) * (1 + int64(id))
}

// pageLocked returns the full page slice for id. Callers hold a.mu.
func (a *Arena) pageLocked(id PageID) ([]byte, error) {
	return a.backing.Range(a.pageOffset(id), int64(a.geom.PageSize))
}

// counterLocked returns the refCountWidth-byte counter slot for data page
// id. Callers hold a.mu and have checked that id is not a RefCount page.
func (a *Arena) counterLocked(id PageID) ([]byte, error) {
	rcPage, off := a.geom.counterSlot(id)
	buf, err := a.pageLocked(rcPage)
	if err != nil {
		return nil, err
	}
	if MemType(buf[0]) != MemRefCount {
		return nil, fmt.Errorf("%w: page %d is not a reference-count page", ErrCorrupted, rcPage)
	}
	return buf[off : off+refCountWidth], nil
}

// checkDataPageLocked rejects ids outside the claimed range and ids that
// address RefCount pages, which are never handed out.
func (a *Arena) checkDataPageLocked(id PageID) error {
	if id >= a.tail {
		return fmt.Errorf("%w: page %d, tail %d", ErrPageOutOfRange, id, a.tail)
	}
	if a.geom.IsRefCountPage(id) {
		return fmt.Errorf("%w: page %d holds reference counters", ErrPageOutOfRange, id)
	}
	return nil
}

// Allocate claims a page, tags it with t and sets its reference count to
// one. Released pages are recycled before the tail cursor is advanced; a
// recycled page is zeroed before it is handed out.
func (a *Arena) Allocate(t MemType) (PageID, error) {
	if !t.IsNode() && !t.IsEntry() {
		return 0, fmt.Errorf("cannot allocate a page of type %s", t)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return 0, ErrArenaClosed
	}
	if a.readOnly {
		return 0, fmt.Errorf("cannot allocate on a read-only store")
	}

	var id PageID
	if n := len(a.freeList); n > 0 {
		id = a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
		a.free--
	} else {
		claimed, err := a.claimTailLocked()
		if err != nil {
			return 0, err
		}
		id = claimed
	}

	buf, err := a.pageLocked(id)
	if err != nil {
		return 0, err
	}
	for i := range buf {
		buf[i] = 0
	}
	buf[0] = byte(t)

	c, err := a.counterLocked(id)
	if err != nil {
		return 0, err
	}
	binary.LittleEndian.PutUint32(c, 1)
	a.live++
	return id, nil
}

// claimTailLocked advances the tail cursor past refcount-page positions,
// laying down new RefCount pages as it crosses them, and claims the next
// data-page position.
func (a *Arena) claimTailLocked() (PageID, error) {
	for a.geom.IsRefCountPage(a.tail) {
		if err := a.claimPositionLocked(a.tail); err != nil {
			return 0, err
		}
		buf, err := a.pageLocked(a.tail)
		if err != nil {
			return 0, err
		}
		buf[0] = byte(MemRefCount)
		a.tail++
	}

	id := a.tail
	if err := a.claimPositionLocked(id); err != nil {
		return 0, err
	}
	a.tail++
	return id, nil
}

// claimPositionLocked checks the addressing and configuration limits for
// page position id and grows the backing to cover it.
func (a *Arena) claimPositionLocked(id PageID) error {
	if id > a.geom.MaxPageID() {
		return fmt.Errorf("%w: page %d exceeds the location width addressing limit", ErrOutOfSpace, id)
	}
	if a.maxPages > 0 && uint64(id) >= a.maxPages {
		return fmt.Errorf("%w: page limit %d reached", ErrOutOfSpace, a.maxPages)
	}
	if err := a.backing.Grow(a.pageOffset(id) + int64(a.geom.PageSize)); err != nil {
		return fmt.Errorf("failed to grow store: %w", err)
	}
	return nil
}

// Retain increments the reference count of page id.
func (a *Arena) Retain(id PageID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrArenaClosed
	}
	if err := a.checkDataPageLocked(id); err != nil {
		return err
	}
	c, err := a.counterLocked(id)
	if err != nil {
		return err
	}
	n := binary.LittleEndian.Uint32(c)
	if n == 0 {
		return fmt.Errorf("%w: retain of free page %d", ErrCorrupted, id)
	}
	binary.LittleEndian.PutUint32(c, n+1)
	return nil
}

// Release decrements the reference count of page id and reports whether the
// page became free. A freed page is tagged MemFree and pushed on the free
// list; releasing its outgoing references is the caller's job, taken while
// Release reports true.
func (a *Arena) Release(id PageID) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return false, ErrArenaClosed
	}
	if err := a.checkDataPageLocked(id); err != nil {
		return false, err
	}
	c, err := a.counterLocked(id)
	if err != nil {
		return false, err
	}
	n := binary.LittleEndian.Uint32(c)
	if n == 0 {
		return false, fmt.Errorf("%w: page %d", ErrRefCountUnderflow, id)
	}
	n--
	binary.LittleEndian.PutUint32(c, n)
	if n > 0 {
		return false, nil
	}

	buf, err := a.pageLocked(id)
	if err != nil {
		return false, err
	}
	buf[0] = byte(MemFree)
	a.freeList = append(a.freeList, id)
	a.free++
	a.live--
	return true, nil
}

// TrimTail rewinds the tail cursor over trailing free pages down to floor,
// returning their positions to the never-claimed region and dropping them
// from the free list. A RefCount page whose whole group has been rewound is
// unclaimed with it. After a transaction aborts, trimming to the tail it
// started from erases its allocations from the accounting entirely.
func (a *Arena) TrimTail(floor PageID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrArenaClosed
	}
	if a.readOnly {
		return fmt.Errorf("cannot trim a read-only store")
	}

	trimmed := false
	for a.tail > floor {
		id := a.tail - 1
		if a.geom.IsRefCountPage(id) {
			// Everything it counted has been rewound already.
			a.tail = id
			trimmed = true
			continue
		}
		c, err := a.counterLocked(id)
		if err != nil {
			return err
		}
		if binary.LittleEndian.Uint32(c) != 0 {
			break
		}
		a.tail = id
		trimmed = true
	}
	if !trimmed {
		return nil
	}

	kept := a.freeList[:0]
	for _, id := range a.freeList {
		if id < a.tail {
			kept = append(kept, id)
		}
	}
	a.free -= uint64(len(a.freeList) - len(kept))
	a.freeList = kept
	return a.writeHeaderLocked()
}

// Retag rewrites the type tag of page id from from to to. The caller is
// expected to hold the only mutable reference to the page.
func (a *Arena) Retag(id PageID, from, to MemType) error {
	if !to.IsNode() && !to.IsEntry() {
		return fmt.Errorf("cannot retag a page to %s", to)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrArenaClosed
	}
	if a.readOnly {
		return fmt.Errorf("cannot retag on a read-only store")
	}
	if err := a.checkDataPageLocked(id); err != nil {
		return err
	}
	buf, err := a.pageLocked(id)
	if err != nil {
		return err
	}
	if got := MemType(buf[0]); got != from {
		return fmt.Errorf("%w: page %d is %s, expected %s", ErrCorrupted, id, got, from)
	}
	buf[0] = byte(to)
	return nil
}

// RefCount returns the persisted reference count of page id.
func (a *Arena) RefCount(id PageID) (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return 0, ErrArenaClosed
	}
	if err := a.checkDataPageLocked(id); err != nil {
		return 0, err
	}
	c, err := a.counterLocked(id)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(c), nil
}

// Type returns the MemType tag of page id.
func (a *Arena) Type(id PageID) (MemType, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return MemFree, ErrArenaClosed
	}
	if id >= a.tail {
		return MemFree, fmt.Errorf("%w: page %d, tail %d", ErrPageOutOfRange, id, a.tail)
	}
	buf, err := a.pageLocked(id)
	if err != nil {
		return MemFree, err
	}
	return MemType(buf[0]), nil
}

// View returns the full page slice for id after checking that its tag is
// want. The slice aliases the backing; it stays valid until Close, but its
// contents only stay stable while the caller holds a reference to the page.
func (a *Arena) View(id PageID, want MemType) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, ErrArenaClosed
	}
	if err := a.checkDataPageLocked(id); err != nil {
		return nil, err
	}
	buf, err := a.pageLocked(id)
	if err != nil {
		return nil, err
	}
	if got := MemType(buf[0]); got != want {
		return nil, fmt.Errorf("%w: page %d is %s, expected %s", ErrCorrupted, id, got, want)
	}
	return buf, nil
}

// Geometry returns the arena's page layout.
func (a *Arena) Geometry() Geometry {
	return a.geom
}

// Root returns the last published root location and transaction ID.
func (a *Arena) Root() (Location, uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.header.Root, a.header.LastTxnID
}

// PublishRoot persists the new root location and transaction ID, together
// with the current tail cursor, into the store header.
func (a *Arena) PublishRoot(root Location, txnID uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrArenaClosed
	}
	if a.readOnly {
		return fmt.Errorf("cannot publish a root on a read-only store")
	}
	a.header.Root = root
	a.header.LastTxnID = txnID
	return a.writeHeaderLocked()
}

// writeHeaderLocked serializes the header into the reserved first page.
func (a *Arena) writeHeaderLocked() error {
	a.header.Tail = a.tail
	buf, err := a.backing.Range(0, HeaderSize)
	if err != nil {
		return err
	}
	return a.header.SerializeTo(buf)
}

// Sync flushes the backing to stable storage.
func (a *Arena) Sync() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrArenaClosed
	}
	return a.backing.Sync()
}

// Stats returns a snapshot of the arena's page accounting.
func (a *Arena) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	group := uint64(a.geom.groupSize())
	var rc uint64
	if a.tail > 0 {
		rc = (uint64(a.tail)-1)/group + 1
	}
	return Stats{
		Tail:          a.tail,
		Live:          a.live,
		Free:          a.free,
		RefCountPages: rc,
		Bytes:         a.backing.Size(),
	}
}

// Close persists the header and closes the backing. Page slices handed out
// by View become invalid.
func (a *Arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrArenaClosed
	}
	a.closed = true

	if !a.readOnly {
		if err := a.writeHeaderLocked(); err != nil {
			a.backing.Close()
			return err
		}
		if err := a.backing.Sync(); err != nil {
			a.backing.Close()
			return err
		}
	}

	a.log.WithFields(logrus.Fields{
		"tail": a.tail,
		"live": a.live,
		"free": a.free,
	}).Debug("arena closed")
	return a.backing.Close()
}
