package arena

import (
	"errors"
	"testing"
)

// =============================================================================
// Header Tests
// =============================================================================

func TestNewHeader(t *testing.T) {
	h := NewHeader(DefaultGeometry())

	if h.Magic != Magic {
		t.Errorf("Magic = %v, want %v", h.Magic, Magic)
	}
	if h.Version != CurrentVersion {
		t.Errorf("Version = %v, want %v", h.Version, CurrentVersion)
	}
	if h.Tail != 0 {
		t.Errorf("Tail = %v, want 0", h.Tail)
	}
	if !h.Root.IsNil() {
		t.Errorf("Root = %v, want nil location", h.Root)
	}
}

func TestHeaderSerializeDeserialize(t *testing.T) {
	original := NewHeader(DefaultGeometry())
	original.Tail = 4097
	original.LastTxnID = 99
	original.Root = Location{Page: 42, Offset: 0}

	buf := make([]byte, HeaderSize)
	if err := original.SerializeTo(buf); err != nil {
		t.Fatalf("SerializeTo failed: %v", err)
	}

	restored := &Header{}
	if err := restored.DeserializeAndValidate(buf); err != nil {
		t.Fatalf("DeserializeAndValidate failed: %v", err)
	}

	if restored.Geometry != original.Geometry {
		t.Errorf("Geometry = %v, want %v", restored.Geometry, original.Geometry)
	}
	if restored.Tail != original.Tail {
		t.Errorf("Tail = %v, want %v", restored.Tail, original.Tail)
	}
	if restored.LastTxnID != original.LastTxnID {
		t.Errorf("LastTxnID = %v, want %v", restored.LastTxnID, original.LastTxnID)
	}
	if restored.Root != original.Root {
		t.Errorf("Root = %v, want %v", restored.Root, original.Root)
	}
}

func TestHeaderSerializeInvalidSize(t *testing.T) {
	h := NewHeader(DefaultGeometry())
	buf := make([]byte, HeaderSize-1)

	if err := h.SerializeTo(buf); !errors.Is(err, ErrInvalidHeaderSize) {
		t.Errorf("SerializeTo with small buffer = %v, want ErrInvalidHeaderSize", err)
	}
	if err := h.Deserialize(buf); !errors.Is(err, ErrInvalidHeaderSize) {
		t.Errorf("Deserialize with small buffer = %v, want ErrInvalidHeaderSize", err)
	}
}

func TestHeaderValidateBadMagic(t *testing.T) {
	h := NewHeader(DefaultGeometry())
	buf := make([]byte, HeaderSize)
	if err := h.SerializeTo(buf); err != nil {
		t.Fatalf("SerializeTo failed: %v", err)
	}
	buf[0] = 'X'

	restored := &Header{}
	if err := restored.DeserializeAndValidate(buf); !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("DeserializeAndValidate = %v, want ErrInvalidMagic", err)
	}
}

func TestHeaderValidateBadVersion(t *testing.T) {
	h := NewHeader(DefaultGeometry())
	h.Version = CurrentVersion + 1
	buf := make([]byte, HeaderSize)
	if err := h.SerializeTo(buf); err != nil {
		t.Fatalf("SerializeTo failed: %v", err)
	}

	restored := &Header{}
	if err := restored.DeserializeAndValidate(buf); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("DeserializeAndValidate = %v, want ErrUnsupportedVersion", err)
	}
}

func TestHeaderValidateChecksumMismatch(t *testing.T) {
	h := NewHeader(DefaultGeometry())
	h.Tail = 12
	buf := make([]byte, HeaderSize)
	if err := h.SerializeTo(buf); err != nil {
		t.Fatalf("SerializeTo failed: %v", err)
	}

	// Flip one bit inside the covered region.
	buf[20] ^= 0x01

	restored := &Header{}
	if err := restored.DeserializeAndValidate(buf); !errors.Is(err, ErrHeaderChecksum) {
		t.Errorf("DeserializeAndValidate = %v, want ErrHeaderChecksum", err)
	}
}
