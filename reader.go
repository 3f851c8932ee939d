package bgzip

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/xbrianh/xbgzip/internal/batch"
	"github.com/xbrianh/xbgzip/internal/framing"
)

// ReaderOption configures a Reader at construction time.
type ReaderOption func(*Reader)

// WithReaderThreads sets the number of goroutines each inflation batch
// fans out across. It defaults to runtime.NumCPU().
func WithReaderThreads(n int) ReaderOption {
	return func(r *Reader) { r.numThreads = n }
}

// Reader pulls well-formed BGZF blocks from a raw byte stream and serves
// their concatenated uncompressed bytes in file order. A Reader is not
// safe for concurrent use by multiple goroutines.
type Reader struct {
	raw        *bufio.Reader
	closer     io.Closer
	numThreads int

	pending     []byte
	pos         int
	deferredErr error
	err         error
}

// NewReader wraps r as a BGZF stream. If r implements io.Closer, Close
// closes it too.
func NewReader(r io.Reader, opts ...ReaderOption) *Reader {
	rdr := &Reader{
		raw:        bufio.NewReaderSize(r, 1<<20),
		numThreads: runtime.NumCPU(),
	}
	if c, ok := r.(io.Closer); ok {
		rdr.closer = c
	}
	for _, opt := range opts {
		opt(rdr)
	}
	if rdr.numThreads < 1 {
		rdr.numThreads = 1
	}
	return rdr
}

// Read implements io.Reader, returning decompressed bytes in file order.
func (r *Reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}

	n := 0
	for len(p) > 0 {
		if r.pos < len(r.pending) {
			k := copy(p, r.pending[r.pos:])
			r.pos += k
			n += k
			p = p[k:]
			continue
		}

		if r.deferredErr != nil {
			r.err = r.deferredErr
			if n > 0 {
				return n, nil
			}
			return 0, r.err
		}

		if err := r.refill(); err != nil {
			r.err = err
			if n > 0 {
				return n, nil
			}
			return 0, err
		}

		if len(r.pending) == 0 {
			if r.deferredErr == nil {
				// Only zero-length blocks were framed and nothing went wrong:
				// return what has been copied rather than looping here.
				return n, nil
			}
			r.err = r.deferredErr
			if n > 0 {
				return n, nil
			}
			return 0, r.err
		}
	}
	return n, nil
}

// Close releases the Reader's resources, closing the underlying stream if
// it implements io.Closer.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// refill frames up to BlockBatchSize blocks from the raw stream, inflates
// them as one parallel batch, and leaves the result in r.pending. Any
// framing-level failure (truncation, malformed header) encountered while
// framing the N+1'th block does not discard the N blocks already framed in
// this refill: they are inflated and delivered first, and the failure is
// deferred until the caller has drained them.
func (r *Reader) refill() error {
	r.pending = nil
	r.pos = 0

	var blocks []batch.BlockDescriptor
	var sizes []uint32
	var framingErr error

	hdrSub := make([]byte, framing.HeaderSize+framing.SubfieldSize)
	for len(blocks) < BlockBatchSize {
		n, err := io.ReadFull(r.raw, hdrSub)
		if err != nil {
			if errors.Is(err, io.EOF) && n == 0 {
				framingErr = io.EOF
			} else {
				framingErr = fmt.Errorf("%w: reading block header: %w", ErrInsufficientBytes, err)
			}
			break
		}

		if _, err := framing.ReadHeader(hdrSub[:framing.HeaderSize]); err != nil {
			framingErr = err
			break
		}
		blockSizeField, err := framing.ReadSubfield(hdrSub[framing.HeaderSize:])
		if err != nil {
			framingErr = err
			break
		}
		deflatedLen := framing.DeflatedLength(blockSizeField)
		if deflatedLen < 0 {
			framingErr = ErrMalformedHeader
			break
		}

		rest := make([]byte, deflatedLen+framing.TailerSize)
		if _, err := io.ReadFull(r.raw, rest); err != nil {
			framingErr = fmt.Errorf("%w: reading block payload: %w", ErrInsufficientBytes, err)
			break
		}

		crc, inflatedSize, err := framing.ReadTailer(rest[deflatedLen:])
		if err != nil {
			framingErr = err
			break
		}

		blocks = append(blocks, batch.BlockDescriptor{
			Deflated:     rest[:deflatedLen],
			InflatedSize: inflatedSize,
			CRC:          crc,
		})
		sizes = append(sizes, inflatedSize)
	}

	if len(blocks) == 0 {
		if framingErr != nil {
			return framingErr
		}
		return nil
	}

	var total uint32
	for _, sz := range sizes {
		total += sz
	}
	dstBuf := make([]byte, total)
	dstParts := make([][]byte, len(blocks))
	var offset uint32
	for i, sz := range sizes {
		dstParts[i] = dstBuf[offset : offset+sz]
		offset += sz
	}

	if err := batch.InflateParts(blocks, dstParts, r.numThreads); err != nil {
		return err
	}

	r.pending = dstBuf
	r.deferredErr = framingErr
	return nil
}
