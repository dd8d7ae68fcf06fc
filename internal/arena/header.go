package arena

import (
	"encoding/binary"
	"errors"

	"github.com/cespare/xxhash/v2"
)

// Store header constants.
const (
	// HeaderSize is the size of the serialized header fields. The header
	// block reserves a full page at offset 0 of the backing store so the
	// page space behind it stays page-aligned.
	HeaderSize = 64

	// CurrentVersion is the current store format version.
	CurrentVersion uint32 = 1
)

// Magic is the magic number identifying a lodestone store. "LODE" in bytes.
var Magic = [4]byte{'L', 'O', 'D', 'E'}

// Errors for store header operations.
var (
	ErrInvalidMagic       = errors.New("invalid magic number: not a lodestone store")
	ErrUnsupportedVersion = errors.New("unsupported store format version")
	ErrHeaderChecksum     = errors.New("store header checksum mismatch")
	ErrInvalidHeaderSize  = errors.New("invalid header size")
	ErrGeometryMismatch   = errors.New("store format parameters do not match")
)

// Header is the store header at offset 0 of the backing store. It records
// the format parameters fixed at creation time and the mutable commit state:
// the committed root location, the arena tail, and the last committed
// transaction id.
//
// Layout:
//   - Bytes 0-3:   Magic ("LODE")
//   - Bytes 4-7:   Version (uint32)
//   - Bytes 8-11:  PageSize (uint32)
//   - Byte  12:    LocationWidth (uint8)
//   - Byte  13:    HeaderWidth (uint8)
//   - Bytes 14-15: Reserved
//   - Bytes 16-23: Tail (uint64, next never-used page id)
//   - Bytes 24-31: LastTxnID (uint64)
//   - Bytes 32-35: Root page id (uint32)
//   - Bytes 36-39: Root offset (uint32)
//   - Bytes 40-55: Reserved
//   - Bytes 56-63: Checksum (xxhash64 of bytes 0-55)
type Header struct {
	Magic     [4]byte
	Version   uint32
	Geometry  Geometry
	Tail      PageID
	LastTxnID uint64
	Root      Location
	Checksum  uint64
}

// NewHeader creates a header for a freshly created store.
func NewHeader(g Geometry) *Header {
	return &Header{
		Magic:    Magic,
		Version:  CurrentVersion,
		Geometry: g,
	}
}

// SerializeTo writes the header to buf, which must be at least HeaderSize
// bytes, and updates the checksum.
func (h *Header) SerializeTo(buf []byte) error {
	if len(buf) < HeaderSize {
		return ErrInvalidHeaderSize
	}

	for i := 0; i < HeaderSize; i++ {
		buf[i] = 0
	}

	copy(buf[0:4], h.Magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(h.Geometry.PageSize))
	buf[12] = byte(h.Geometry.LocationWidth)
	buf[13] = byte(h.Geometry.HeaderWidth)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(h.Tail))
	binary.LittleEndian.PutUint64(buf[24:32], h.LastTxnID)
	binary.LittleEndian.PutUint32(buf[32:36], uint32(h.Root.Page))
	binary.LittleEndian.PutUint32(buf[36:40], h.Root.Offset)

	h.Checksum = xxhash.Sum64(buf[0:56])
	binary.LittleEndian.PutUint64(buf[56:64], h.Checksum)

	return nil
}

// Deserialize reads the header from buf.
func (h *Header) Deserialize(buf []byte) error {
	if len(buf) < HeaderSize {
		return ErrInvalidHeaderSize
	}

	copy(h.Magic[:], buf[0:4])
	h.Version = binary.LittleEndian.Uint32(buf[4:8])
	h.Geometry.PageSize = int(binary.LittleEndian.Uint32(buf[8:12]))
	h.Geometry.LocationWidth = int(buf[12])
	h.Geometry.HeaderWidth = int(buf[13])
	h.Tail = PageID(binary.LittleEndian.Uint64(buf[16:24]))
	h.LastTxnID = binary.LittleEndian.Uint64(buf[24:32])
	h.Root.Page = PageID(binary.LittleEndian.Uint32(buf[32:36]))
	h.Root.Offset = binary.LittleEndian.Uint32(buf[36:40])
	h.Checksum = binary.LittleEndian.Uint64(buf[56:64])

	return nil
}

// Validate checks magic, version, checksum, and format parameters.
// buf must be the serialized form the header was read from.
func (h *Header) Validate(buf []byte) error {
	if h.Magic != Magic {
		return ErrInvalidMagic
	}
	if h.Version == 0 || h.Version > CurrentVersion {
		return ErrUnsupportedVersion
	}
	if len(buf) < HeaderSize || xxhash.Sum64(buf[0:56]) != h.Checksum {
		return ErrHeaderChecksum
	}
	return h.Geometry.Validate()
}

// DeserializeAndValidate reads the header from buf and validates it.
func (h *Header) DeserializeAndValidate(buf []byte) error {
	if err := h.Deserialize(buf); err != nil {
		return err
	}
	return h.Validate(buf)
}
