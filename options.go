package lodestone

import (
	"github.com/sirupsen/logrus"

	"github.com/lodestone-db/lodestone/internal/arena"
	"github.com/lodestone-db/lodestone/internal/btree"
)

// Options configures a lodestone store.
type Options struct {
	// PageSize is the size of each page in bytes. It is fixed when the
	// store is created; reopening with a different value fails.
	// Default: 4096 bytes.
	PageSize int

	// LocationWidth is the encoded size of a page reference in bytes,
	// split evenly between page id and offset. Fixed at creation time.
	// Default: 8 bytes.
	LocationWidth int

	// HeaderWidth is the encoded size of integer header fields in nodes
	// and entries. Fixed at creation time.
	// Default: 8 bytes.
	HeaderWidth int

	// MaxPages caps the number of pages the store may claim.
	// Default: 0 (bounded only by the location width).
	MaxPages uint64

	// NodeCacheSize is the capacity of the decoded-node cache, in nodes.
	// Default: 256 nodes.
	NodeCacheSize int64

	// SyncOnCommit flushes the file to stable storage on every commit.
	// Default: false (the OS decides when pages reach the disk).
	SyncOnCommit bool

	// ReadOnly opens the store without write access.
	// Default: false.
	ReadOnly bool

	// Logger receives structural and transaction events.
	// Default: nil (logging disabled).
	Logger *logrus.Logger
}

// DefaultOptions returns the default store options.
func DefaultOptions() Options {
	return Options{
		PageSize:      arena.DefaultPageSize,
		LocationWidth: arena.DefaultLocationWidth,
		HeaderWidth:   arena.DefaultHeaderWidth,
		NodeCacheSize: btree.DefaultCacheSize,
	}
}

// Validate checks that the options describe a supported format.
func (o Options) Validate() error {
	return o.geometry().Validate()
}

func (o Options) geometry() arena.Geometry {
	return arena.Geometry{
		PageSize:      o.PageSize,
		LocationWidth: o.LocationWidth,
		HeaderWidth:   o.HeaderWidth,
	}
}

// WithPageSize sets the page size.
func (o Options) WithPageSize(n int) Options {
	o.PageSize = n
	return o
}

// WithLocationWidth sets the encoded page-reference width.
func (o Options) WithLocationWidth(n int) Options {
	o.LocationWidth = n
	return o
}

// WithHeaderWidth sets the encoded header-field width.
func (o Options) WithHeaderWidth(n int) Options {
	o.HeaderWidth = n
	return o
}

// WithMaxPages caps the number of pages the store may claim.
func (o Options) WithMaxPages(n uint64) Options {
	o.MaxPages = n
	return o
}

// WithNodeCacheSize sets the decoded-node cache capacity.
func (o Options) WithNodeCacheSize(n int64) Options {
	o.NodeCacheSize = n
	return o
}

// WithSyncOnCommit toggles flushing to stable storage on commit.
func (o Options) WithSyncOnCommit(sync bool) Options {
	o.SyncOnCommit = sync
	return o
}

// WithReadOnly opens the store without write access.
func (o Options) WithReadOnly(readOnly bool) Options {
	o.ReadOnly = readOnly
	return o
}

// WithLogger sets the logger.
func (o Options) WithLogger(log *logrus.Logger) Options {
	o.Logger = log
	return o
}
