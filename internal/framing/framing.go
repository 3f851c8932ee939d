// Package framing defines the fixed-layout BGZF block header, BC subfield,
// and tailer, plus pure (allocation-free) serialization for them.
package framing

import (
	"encoding/binary"
	"errors"
)

// HeaderSize is the size in bytes of the BGZF block header.
const HeaderSize = 12

// SubfieldSize is the size in bytes of the BC extra-field.
const SubfieldSize = 6

// TailerSize is the size in bytes of the BGZF block tailer.
const TailerSize = 8

// MetadataSize is the total framing overhead per block (header + subfield +
// tailer), exported to callers as BlockMetadataSize.
const MetadataSize = HeaderSize + SubfieldSize + TailerSize

// Magic is the gzip member magic plus the BGZF-flavored flag byte that
// marks an extra field as present.
var Magic = [4]byte{0x1F, 0x8B, 0x08, 0x04}

// subfieldID is the BC extra-field identifier.
var subfieldID = [2]byte{'B', 'C'}

// Errors returned by the framing primitives. They carry no further
// diagnostic beyond their message; callers add context via fmt.Errorf.
var (
	ErrMalformedHeader   = errors.New("framing: malformed block header")
	ErrInsufficientBytes = errors.New("framing: insufficient bytes")
)

// Header is the fixed 12-byte BGZF block header.
type Header struct {
	ModTime     uint32
	ExtraFlags  uint8
	OSType      uint8
	ExtraLength uint16
}

// WriteHeader serializes h into dst[:HeaderSize]. dst must be pre-sized;
// WriteHeader never allocates.
func WriteHeader(dst []byte, h Header) {
	copy(dst[0:4], Magic[:])
	binary.LittleEndian.PutUint32(dst[4:8], h.ModTime)
	dst[8] = h.ExtraFlags
	dst[9] = h.OSType
	binary.LittleEndian.PutUint16(dst[10:12], h.ExtraLength)
}

// ReadHeader parses a Header from the front of src.
func ReadHeader(src []byte) (Header, error) {
	if len(src) < HeaderSize {
		return Header{}, ErrInsufficientBytes
	}
	var magic [4]byte
	copy(magic[:], src[0:4])
	if magic != Magic {
		return Header{}, ErrMalformedHeader
	}
	h := Header{
		ModTime:     binary.LittleEndian.Uint32(src[4:8]),
		ExtraFlags:  src[8],
		OSType:      src[9],
		ExtraLength: binary.LittleEndian.Uint16(src[10:12]),
	}
	if h.ExtraLength != SubfieldSize {
		return Header{}, ErrMalformedHeader
	}
	return h, nil
}

// WriteSubfield serializes the BC subfield, with the given block_size
// value, into dst[:SubfieldSize].
func WriteSubfield(dst []byte, blockSize uint16) {
	dst[0] = subfieldID[0]
	dst[1] = subfieldID[1]
	binary.LittleEndian.PutUint16(dst[2:4], 2)
	binary.LittleEndian.PutUint16(dst[4:6], blockSize)
}

// ReadSubfield parses the BC subfield's block_size field from the front of
// src.
func ReadSubfield(src []byte) (blockSize uint16, err error) {
	if len(src) < SubfieldSize {
		return 0, ErrInsufficientBytes
	}
	if src[0] != subfieldID[0] || src[1] != subfieldID[1] {
		return 0, ErrMalformedHeader
	}
	length := binary.LittleEndian.Uint16(src[2:4])
	if length != 2 {
		return 0, ErrMalformedHeader
	}
	return binary.LittleEndian.Uint16(src[4:6]), nil
}

// WriteTailer serializes the block tailer into dst[:TailerSize].
func WriteTailer(dst []byte, crc, inflatedSize uint32) {
	binary.LittleEndian.PutUint32(dst[0:4], crc)
	binary.LittleEndian.PutUint32(dst[4:8], inflatedSize)
}

// ReadTailer parses the block tailer from the front of src.
func ReadTailer(src []byte) (crc, inflatedSize uint32, err error) {
	if len(src) < TailerSize {
		return 0, 0, ErrInsufficientBytes
	}
	crc = binary.LittleEndian.Uint32(src[0:4])
	inflatedSize = binary.LittleEndian.Uint32(src[4:8])
	return crc, inflatedSize, nil
}

// DeflatedLength returns the deflated payload length implied by a BC
// block_size field value: total block length is blockSizeField+1, and the
// payload is whatever remains after subtracting the fixed metadata.
func DeflatedLength(blockSizeField uint16) int {
	total := int(blockSizeField) + 1
	return total - MetadataSize
}

// BlockSizeField computes the BC subfield's block_size value for a block
// whose deflated payload is deflatedLen bytes long. The field is 16 bits
// wide, so only deflatedLen values up to 1<<16-MetadataSize are
// representable; larger values wrap.
func BlockSizeField(deflatedLen int) uint16 {
	return uint16(MetadataSize + deflatedLen - 1) //nolint:gosec // wraps above 1<<16-MetadataSize, see above
}
