package bgzip

import (
	"context"
	"io"
	"sync"
)

// AsyncReader wraps a Reader with a background goroutine that inflates the
// next batch of blocks while the caller is still consuming the current
// one, trading one extra batch of memory for hiding inflation latency
// behind the caller's own processing time.
type AsyncReader struct {
	cancel   context.CancelFunc
	closer   io.Closer
	resultCh chan asyncReadResult

	current    []byte
	pos        int
	pendingErr error
	err        error
}

type asyncReadResult struct {
	data []byte
	err  error
}

// NewAsyncReader wraps r as an asynchronously-prefetching BGZF stream.
func NewAsyncReader(r io.Reader, opts ...ReaderOption) *AsyncReader {
	inner := NewReader(r, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	ar := &AsyncReader{
		cancel:   cancel,
		closer:   inner,
		resultCh: make(chan asyncReadResult, 1),
	}
	go ar.pump(ctx, inner)
	return ar
}

// pump repeatedly fills one batch-sized chunk from inner and hands it to
// the foreground over resultCh, stopping once inner reports a terminal
// error (including io.EOF) or the reader is closed.
func (ar *AsyncReader) pump(ctx context.Context, inner *Reader) {
	buf := make([]byte, BlockBatchSize*BlockDataInflatedSize)
	for {
		n, err := inner.Read(buf)
		res := asyncReadResult{err: err}
		if n > 0 {
			res.data = append([]byte(nil), buf[:n]...)
		}
		select {
		case ar.resultCh <- res:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

// Read implements io.Reader.
func (ar *AsyncReader) Read(p []byte) (int, error) {
	if ar.err != nil {
		return 0, ar.err
	}

	n := 0
	for len(p) > 0 {
		if ar.pos < len(ar.current) {
			k := copy(p, ar.current[ar.pos:])
			ar.pos += k
			n += k
			p = p[k:]
			continue
		}

		if ar.pendingErr != nil {
			ar.err = ar.pendingErr
			if n > 0 {
				return n, nil
			}
			return 0, ar.err
		}

		res, ok := <-ar.resultCh
		if !ok {
			ar.err = io.ErrClosedPipe
			if n > 0 {
				return n, nil
			}
			return 0, ar.err
		}
		ar.current = res.data
		ar.pos = 0
		ar.pendingErr = res.err
	}
	return n, nil
}

// Close stops the background goroutine and closes the underlying stream.
func (ar *AsyncReader) Close() error {
	ar.cancel()
	return ar.closer.Close()
}

// AsyncWriter wraps a Writer with a background goroutine that compresses
// and emits one batch while the caller accumulates the next, so caller
// throughput is not gated on compression latency. Write errors are
// deferred and surfaced no later than Close.
type AsyncWriter struct {
	inner  *Writer
	dataCh chan []byte
	errCh  chan error
	wg     sync.WaitGroup

	closed bool
	err    error
}

// NewAsyncWriter wraps w as an asynchronously-flushing BGZF stream.
func NewAsyncWriter(w io.Writer, opts ...WriterOption) *AsyncWriter {
	aw := &AsyncWriter{
		inner:  NewWriter(w, opts...),
		dataCh: make(chan []byte, 1),
		errCh:  make(chan error, 1),
	}
	aw.wg.Add(1)
	go aw.pump()
	return aw
}

func (aw *AsyncWriter) pump() {
	defer aw.wg.Done()
	var firstErr error
	for chunk := range aw.dataCh {
		if firstErr != nil {
			continue
		}
		if _, err := aw.inner.Write(chunk); err != nil {
			firstErr = err
		}
	}
	aw.errCh <- firstErr
}

// Write implements io.Writer. p is copied before Write returns, so the
// caller may reuse it immediately; the copy is compressed and emitted on
// the background goroutine.
func (aw *AsyncWriter) Write(p []byte) (int, error) {
	if aw.err != nil {
		return 0, aw.err
	}
	if aw.closed {
		return 0, ErrWriterClosed
	}
	aw.dataCh <- append([]byte(nil), p...)
	return len(p), nil
}

// Close drains any buffered writes, surfaces the first write error (if
// any), and otherwise flushes and closes the underlying Writer.
func (aw *AsyncWriter) Close() error {
	if aw.closed {
		return aw.err
	}
	aw.closed = true

	close(aw.dataCh)
	aw.wg.Wait()

	if err := <-aw.errCh; err != nil {
		aw.err = err
		return err
	}
	if err := aw.inner.Close(); err != nil {
		aw.err = err
		return err
	}
	return nil
}
