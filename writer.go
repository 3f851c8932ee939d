package bgzip

import (
	"errors"
	"io"
	"runtime"

	"github.com/xbrianh/xbgzip/internal/batch"
	"github.com/xbrianh/xbgzip/internal/codec"
)

// ErrWriterClosed is returned by Write once the Writer has been closed.
var ErrWriterClosed = errors.New("bgzip: write to closed Writer")

// WriterOption configures a Writer at construction time.
type WriterOption func(*Writer)

// WithWriterThreads sets the number of goroutines each compression batch
// fans out across. It defaults to runtime.NumCPU().
func WithWriterThreads(n int) WriterOption {
	return func(w *Writer) { w.numThreads = n }
}

// Writer accumulates written bytes, chunks them into BlockDataInflatedSize
// units, and compresses batches of up to BlockBatchSize blocks in parallel,
// emitting them to the underlying stream in order. Close must be called to
// flush any buffered tail and append the terminating empty block; a BGZF
// stream without one is considered truncated. A Writer is not safe for
// concurrent use by multiple goroutines.
type Writer struct {
	dst        io.Writer
	numThreads int

	accum   []byte
	outBufs [][]byte

	closed bool
	err    error
}

// NewWriter wraps w as a BGZF stream.
func NewWriter(w io.Writer, opts ...WriterOption) *Writer {
	wr := &Writer{
		dst:        w,
		numThreads: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(wr)
	}
	if wr.numThreads < 1 {
		wr.numThreads = 1
	}
	wr.outBufs = make([][]byte, BlockBatchSize)
	for i := range wr.outBufs {
		wr.outBufs[i] = make([]byte, maxBlockSize)
	}
	return wr
}

// Write implements io.Writer. Bytes are buffered and compressed in batches;
// none of p is guaranteed to have reached the underlying stream when Write
// returns.
func (w *Writer) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	if w.closed {
		return 0, ErrWriterClosed
	}

	w.accum = append(w.accum, p...)
	if err := w.flushBatches(true); err != nil {
		w.err = err
		return 0, err
	}
	return len(p), nil
}

// Flush compresses and emits all currently buffered bytes, including a
// trailing partial block, without closing the stream.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	if w.closed {
		return ErrWriterClosed
	}
	if err := w.flushBatches(false); err != nil {
		w.err = err
		return err
	}
	return nil
}

// Close flushes all buffered bytes, appends the terminating empty block,
// and closes the underlying stream if it implements io.Closer.
func (w *Writer) Close() error {
	if w.closed {
		return w.err
	}
	w.closed = true
	if w.err != nil {
		return w.err
	}

	if err := w.flushBatches(false); err != nil {
		w.err = err
		return err
	}
	if err := w.writeTerminator(); err != nil {
		w.err = err
		return err
	}
	if c, ok := w.dst.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// flushBatches drains the accumulator in units of at most one full batch
// (BlockBatchSize * BlockDataInflatedSize bytes). With requireFull set, it
// stops once fewer than one full batch remains buffered; otherwise it
// drains everything, including a trailing partial batch.
func (w *Writer) flushBatches(requireFull bool) error {
	const batchThreshold = BlockBatchSize * BlockDataInflatedSize

	for {
		n := len(w.accum)
		if requireFull {
			if n < batchThreshold {
				return nil
			}
			n = batchThreshold
		} else {
			if n == 0 {
				return nil
			}
			if n > batchThreshold {
				n = batchThreshold
			}
		}
		if err := w.flushPrefix(n); err != nil {
			return err
		}
	}
}

// flushPrefix compresses the first n bytes of the accumulator as one
// parallel batch, writes the resulting blocks to the underlying stream in
// order, and slides the remaining bytes to the front of the accumulator.
func (w *Writer) flushPrefix(n int) error {
	prefix := w.accum[:n]

	sizes, err := batch.DeflateToBuffers(prefix, w.outBufs, w.numThreads)
	if err != nil {
		return err
	}

	consumed := 0
	for i, size := range sizes {
		if _, err := w.dst.Write(w.outBufs[i][:size]); err != nil {
			return err
		}
		chunkLen := BlockDataInflatedSize
		if consumed+chunkLen > n {
			chunkLen = n - consumed
		}
		consumed += chunkLen
	}

	w.accum = w.accum[:copy(w.accum, w.accum[consumed:])]
	return nil
}

// writeTerminator appends the empty BGZF block that marks end of stream.
func (w *Writer) writeTerminator() error {
	comp, err := codec.NewCompressor()
	if err != nil {
		return err
	}
	dst := make([]byte, BlockMetadataSize+64)
	size, err := comp.CompressBlock(dst, nil)
	if err != nil {
		return err
	}
	_, err = w.dst.Write(dst[:size])
	return err
}
