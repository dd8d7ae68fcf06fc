package bytestring

import (
	"bytes"
	"errors"
	"testing"

	"github.com/lodestone-db/lodestone/internal/arena"
)

func newTestCodec(t *testing.T) (*Codec, *arena.Arena) {
	t.Helper()
	a, err := arena.NewArena(arena.NewMemoryBacking(0), arena.Config{})
	if err != nil {
		t.Fatalf("NewArena failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return New(a), a
}

func pattern(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*31 + 7)
	}
	return data
}

// =============================================================================
// Round Trip Tests
// =============================================================================

func TestWriteReadRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"empty", 0},
		{"small", 13},
		{"direct capacity", 4087},
		{"first alias size", 4088},
		{"two full segments", 2 * 4087},
		{"large", 50000},
	}

	codec, _ := newTestCodec(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := pattern(tt.size)
			loc, err := codec.Write(data)
			if err != nil {
				t.Fatalf("Write failed: %v", err)
			}

			got, err := codec.Read(loc)
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if !bytes.Equal(got, data) {
				t.Errorf("Read returned %d bytes that differ from the %d written", len(got), len(data))
			}

			length, err := codec.Length(loc)
			if err != nil {
				t.Fatalf("Length failed: %v", err)
			}
			if length != tt.size {
				t.Errorf("Length = %v, want %v", length, tt.size)
			}
		})
	}
}

func TestDirectAliasBoundary(t *testing.T) {
	codec, a := newTestCodec(t)

	direct, err := codec.Write(pattern(4087))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if typ, _ := a.Type(direct.Page); typ != arena.MemEntryDirect {
		t.Errorf("4087-byte entry is %v, want EntryDirect", typ)
	}

	alias, err := codec.Write(pattern(4088))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if typ, _ := a.Type(alias.Page); typ != arena.MemEntryAlias {
		t.Errorf("4088-byte entry is %v, want EntryAlias", typ)
	}
}

func TestWriteTooLarge(t *testing.T) {
	codec, _ := newTestCodec(t)

	data := make([]byte, codec.MaxSize()+1)
	if _, err := codec.Write(data); !errors.Is(err, ErrTooLarge) {
		t.Errorf("Write oversized string = %v, want ErrTooLarge", err)
	}
}

// =============================================================================
// Compare Tests
// =============================================================================

func TestCompare(t *testing.T) {
	long := pattern(9000)
	almost := append([]byte(nil), long...)
	almost[8000]++

	tests := []struct {
		name   string
		stored []byte
		probe  []byte
		want   int
	}{
		{"equal short", []byte("hello"), []byte("hello"), 0},
		{"less short", []byte("apple"), []byte("banana"), -1},
		{"greater short", []byte("pear"), []byte("apple"), 1},
		{"stored is prefix", []byte("app"), []byte("apple"), -1},
		{"probe is prefix", []byte("apple"), []byte("app"), 1},
		{"empty stored", nil, []byte("x"), -1},
		{"both empty", nil, nil, 0},
		{"equal across segments", long, long, 0},
		{"differs in later segment", long, almost, -1},
		{"probe ends mid segment", long, long[:5000], 1},
	}

	codec, _ := newTestCodec(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := codec.Write(tt.stored)
			if err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			got, err := codec.Compare(loc, tt.probe)
			if err != nil {
				t.Fatalf("Compare failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Compare = %v, want %v", got, tt.want)
			}
		})
	}
}

// =============================================================================
// Reference Counting Tests
// =============================================================================

func TestReleaseDirect(t *testing.T) {
	codec, a := newTestCodec(t)

	loc, err := codec.Write([]byte("short lived"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	freed, err := codec.Release(loc)
	if err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if !freed {
		t.Error("Release did not report freed")
	}
	if stats := a.Stats(); stats.Live != 0 {
		t.Errorf("Live = %v, want 0", stats.Live)
	}
}

func TestReleaseAliasCascades(t *testing.T) {
	codec, a := newTestCodec(t)

	// Three segments plus the alias page.
	loc, err := codec.Write(pattern(3 * 4087))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if stats := a.Stats(); stats.Live != 4 {
		t.Fatalf("Live after write = %v, want 4", stats.Live)
	}

	freed, err := codec.Release(loc)
	if err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if !freed {
		t.Error("Release did not report freed")
	}
	if stats := a.Stats(); stats.Live != 0 || stats.Free != 4 {
		t.Errorf("Stats = live %v free %v, want live 0 free 4", stats.Live, stats.Free)
	}
}

func TestRetainDefersRelease(t *testing.T) {
	codec, a := newTestCodec(t)

	loc, err := codec.Write(pattern(2 * 4087))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := codec.Retain(loc); err != nil {
		t.Fatalf("Retain failed: %v", err)
	}

	freed, err := codec.Release(loc)
	if err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if freed {
		t.Error("Release freed a retained entry")
	}

	// Segments stay alive with the entry.
	data, err := codec.Read(loc)
	if err != nil {
		t.Fatalf("Read after release failed: %v", err)
	}
	if len(data) != 2*4087 {
		t.Errorf("Read returned %d bytes, want %d", len(data), 2*4087)
	}

	freed, err = codec.Release(loc)
	if err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if !freed {
		t.Error("final Release did not report freed")
	}
	if stats := a.Stats(); stats.Live != 0 {
		t.Errorf("Live = %v, want 0", stats.Live)
	}
}

// =============================================================================
// Validation Tests
// =============================================================================

func TestBadLocations(t *testing.T) {
	codec, a := newTestCodec(t)

	if _, err := codec.Read(arena.Nil); !errors.Is(err, ErrBadLocation) {
		t.Errorf("Read(Nil) = %v, want ErrBadLocation", err)
	}

	loc, err := codec.Write([]byte("x"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	off := arena.Location{Page: loc.Page, Offset: 1}
	if _, err := codec.Read(off); !errors.Is(err, ErrBadLocation) {
		t.Errorf("Read with nonzero offset = %v, want ErrBadLocation", err)
	}

	// A node page is not a byte-string entry.
	nodeID, err := a.Allocate(arena.MemNodeLeaf)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if _, err := codec.Read(arena.Location{Page: nodeID}); !errors.Is(err, ErrBadLocation) {
		t.Errorf("Read of a node page = %v, want ErrBadLocation", err)
	}
}
