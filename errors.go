package lodestone

import (
	"errors"

	"github.com/lodestone-db/lodestone/internal/arena"
	"github.com/lodestone-db/lodestone/internal/txn"
)

// Errors returned by store and transaction operations.
var (
	// ErrKeyRequired is returned when a key is empty.
	ErrKeyRequired = errors.New("key required")

	// ErrKeyTooLarge is returned when a key exceeds the format's maximum
	// byte-string size.
	ErrKeyTooLarge = errors.New("key too large")

	// ErrValueTooLarge is returned when a value exceeds the format's
	// maximum byte-string size.
	ErrValueTooLarge = errors.New("value too large")

	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrReadOnly is returned when writing to a read-only store.
	ErrReadOnly = errors.New("store is read-only")

	// ErrWriterActive is returned by BeginWrite while another write
	// transaction is running.
	ErrWriterActive = txn.ErrWriterActive

	// ErrTxnDone is returned by operations on a finished transaction.
	ErrTxnDone = txn.ErrTxnDone

	// ErrTxnFailed is returned by operations on a write transaction that
	// hit an error; only Abort remains possible.
	ErrTxnFailed = txn.ErrTxnFailed

	// ErrActiveTxns is returned by Close while transactions are running.
	ErrActiveTxns = txn.ErrActiveTxns

	// ErrCorrupted is returned when the store's pages fail validation.
	ErrCorrupted = arena.ErrCorrupted

	// ErrOutOfSpace is returned when the store cannot claim another page.
	ErrOutOfSpace = arena.ErrOutOfSpace
)
