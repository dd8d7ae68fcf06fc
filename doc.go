// Package lodestone is an embedded key-value store built on a copy-on-write
// B+tree over reference-counted pages.
//
// # Overview
//
// A lodestone store keeps arbitrary byte-string keys and values in a single
// file (or in memory) and provides:
//
//   - Snapshot-isolated read transactions that never block
//   - One exclusive write transaction at a time
//   - Copy-on-write tree versions with structural sharing
//   - Persistent per-page reference counts for space reclamation
//   - Memory-mapped file I/O
//
// # Transactions
//
// Readers pin the version that was committed when they began and keep
// reading it until End, no matter what is committed in the meantime. The
// writer builds the next version privately; nothing of it is visible before
// Commit, and Abort discards it without ever touching the committed state.
//
//	store, err := lodestone.Open("data.lode", lodestone.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	err = store.Update(func(tx *lodestone.WriteTxn) error {
//	    return tx.Put([]byte("greeting"), []byte("hello"))
//	})
//
//	err = store.View(func(tx *lodestone.ReadTxn) error {
//	    value, found, err := tx.Get([]byte("greeting"))
//	    ...
//	})
//
// # On-Disk Layout
//
// The file starts with a checksummed header page recording the format
// parameters and the committed root. Behind it, fixed-size pages hold tree
// nodes, byte-string entries, and interleaved reference-count pages.
// Keys and values up to one page live inline; larger ones are chunked into
// segment pages behind an alias entry. Freed pages go back to a free list
// and are reused by later allocations.
package lodestone
