// Package codec implements the BGZF block codec: raw-DEFLATE inflation and
// compression of single blocks, each operating on caller-supplied byte
// spans with no allocation once its Decompressor/Compressor has been
// constructed.
package codec

import (
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/xbrianh/xbgzip/internal/framing"
)

// Errors returned by the block codec.
var (
	ErrZlibInit          = errors.New("codec: failed to initialize deflate stream")
	ErrZlibError         = errors.New("codec: deflate/inflate failure")
	ErrBlockSizeMismatch = errors.New("codec: inflated size does not match declared size")
	ErrCRCMismatch       = errors.New("codec: CRC-32 does not match declared checksum")
)

// resetter is satisfied by the raw-DEFLATE decompressor returned by
// flate.NewReader.
type resetter interface {
	io.Reader
	flate.Resetter
}

// Decompressor inflates BGZF block payloads. One Decompressor should be
// created per batch worker goroutine and reused across every block that
// worker handles: construction allocates the DEFLATE state once, and
// InflateBlock never allocates afterward.
type Decompressor struct {
	fr  resetter
	src byteReader
}

// NewDecompressor allocates a reusable raw-DEFLATE decompressor.
func NewDecompressor() *Decompressor {
	fr, _ := flate.NewReader(nil).(resetter) //nolint:forcetypeassert // flate.NewReader always returns a flate.Resetter
	return &Decompressor{fr: fr}
}

// InflateBlock decompresses the raw-DEFLATE payload src into dst, which
// must be exactly inflatedSize bytes long, then verifies the produced byte
// count and CRC-32 against the block's declared values.
//
// Safe to call concurrently from multiple goroutines provided each
// goroutine uses its own Decompressor and disjoint src/dst spans.
func (d *Decompressor) InflateBlock(src, dst []byte, inflatedSize, expectedCRC uint32) error {
	d.src.b = src
	if err := d.fr.Reset(&d.src, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrZlibInit, err)
	}

	n, err := io.ReadFull(d.fr, dst)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w", ErrZlibError, err)
	}

	// Confirm the stream actually ended where expected; leftover bytes mean
	// the block declared a smaller inflated size than it truly produces.
	var extra [1]byte
	if m, _ := d.fr.Read(extra[:]); m > 0 {
		return fmt.Errorf("%w: produced more than %d bytes", ErrBlockSizeMismatch, inflatedSize)
	}

	if uint32(n) != inflatedSize { //nolint:gosec // inflatedSize is bounded by BlockDataInflatedSize
		return fmt.Errorf("%w: got %d bytes, want %d", ErrBlockSizeMismatch, n, inflatedSize)
	}

	if crc32.ChecksumIEEE(dst[:n]) != expectedCRC {
		return ErrCRCMismatch
	}

	return nil
}

// Compressor deflates uncompressed chunks into framed BGZF blocks. One
// Compressor should be created per batch worker goroutine and reused
// across every chunk that worker handles.
type Compressor struct {
	fw  *flate.Writer
	out boundedWriter
}

// NewCompressor allocates a reusable raw-DEFLATE compressor at best
// compression.
func NewCompressor() (*Compressor, error) {
	fw, err := flate.NewWriter(io.Discard, flate.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrZlibError, err)
	}
	return &Compressor{fw: fw}, nil
}

// CompressBlock deflates input, wraps it with a BGZF header, BC subfield,
// and tailer in dst, and returns the total block length written to
// dst[0:blockSize]. dst must have capacity for at least
// framing.MetadataSize+len(input) plus headroom for incompressible input;
// CompressBlock never writes past len(dst) — it fails instead.
//
// Safe to call concurrently from multiple goroutines provided each
// goroutine uses its own Compressor and disjoint dst/input spans.
func (c *Compressor) CompressBlock(dst []byte, input []byte) (blockSize int, err error) {
	if len(dst) < framing.MetadataSize {
		return 0, fmt.Errorf("%w: output buffer too small", ErrZlibError)
	}

	c.out.buf = dst[framing.HeaderSize+framing.SubfieldSize:]
	c.out.n = 0
	c.out.overflowed = false
	c.fw.Reset(&c.out)

	if _, err := c.fw.Write(input); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrZlibError, err)
	}
	if err := c.fw.Close(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrZlibError, err)
	}
	if c.out.overflowed {
		return 0, fmt.Errorf("%w: deflated output exceeded buffer", ErrZlibError)
	}

	deflatedLen := c.out.n
	framing.WriteHeader(dst, framing.Header{OSType: 0xFF, ExtraLength: framing.SubfieldSize})

	tailerOffset := framing.HeaderSize + framing.SubfieldSize + deflatedLen
	if tailerOffset+framing.TailerSize > len(dst) {
		return 0, fmt.Errorf("%w: no room for block tailer", ErrZlibError)
	}
	//nolint:gosec // len(input) is bounded by BlockDataInflatedSize
	framing.WriteTailer(dst[tailerOffset:], crc32.ChecksumIEEE(input), uint32(len(input)))

	blockSizeField := framing.BlockSizeField(deflatedLen)
	framing.WriteSubfield(dst[framing.HeaderSize:], blockSizeField)

	return int(blockSizeField) + 1, nil
}

// boundedWriter appends into a fixed-capacity slice without ever growing
// it, reporting overflow instead of panicking or reallocating. Reused
// across CompressBlock calls by resetting its fields before each call.
type boundedWriter struct {
	buf        []byte
	n          int
	overflowed bool
}

func (w *boundedWriter) Write(p []byte) (int, error) {
	if w.n+len(p) > len(w.buf) {
		w.overflowed = true
		return 0, io.ErrShortBuffer
	}
	copy(w.buf[w.n:], p)
	w.n += len(p)
	return len(p), nil
}

// byteReader adapts a byte slice to io.Reader without an extra heap
// allocation per block: its backing field is overwritten and reused by the
// owning Decompressor instead of constructing a fresh bytes.Reader.
type byteReader struct {
	b []byte
}

func (r *byteReader) Read(p []byte) (int, error) {
	if len(r.b) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.b)
	r.b = r.b[n:]
	return n, nil
}
