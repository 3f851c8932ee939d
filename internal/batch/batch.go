// Package batch implements the BGZF batch engine: fan-out parallel
// inflation and deflation of up to BlockBatchSize blocks at a time, with
// ordered reassembly left to the caller (results land at their original
// index, not in completion order).
package batch

import (
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/xbrianh/xbgzip/internal/codec"
)

// BlockBatchSize bounds the number of blocks processed in one parallel
// fan-out.
const BlockBatchSize = 300

// BlockDataInflatedSize is the maximum uncompressed byte count carried by a
// single block.
const BlockDataInflatedSize = 65280

// Errors returned before any work is scheduled.
var (
	ErrBatchTooLarge      = errors.New("batch: descriptor count exceeds BlockBatchSize")
	ErrBatchShapeMismatch = errors.New("batch: destination count does not match source count")
)

// BlockDescriptor groups the raw-DEFLATE payload of one block with the
// declared inflated size and CRC-32 needed to verify it. Valid only while
// its Deflated backing buffer is alive.
type BlockDescriptor struct {
	Deflated     []byte
	InflatedSize uint32
	CRC          uint32
}

// InflateParts inflates each blocks[i] into dstParts[i] in parallel across
// numThreads goroutines, dynamically scheduled over a shared index channel.
// Every block is attempted even if another block in the batch fails; if any
// block failed, InflateParts returns the first failure (by index) and
// delivers no partial results — callers must discard the whole batch.
func InflateParts(blocks []BlockDescriptor, dstParts [][]byte, numThreads int) error {
	if len(blocks) != len(dstParts) {
		return ErrBatchShapeMismatch
	}
	if len(blocks) > BlockBatchSize {
		return ErrBatchTooLarge
	}
	if len(blocks) == 0 {
		return nil
	}
	numThreads = clampThreads(numThreads, len(blocks))

	errs := make([]error, len(blocks))
	indices := dispatchIndices(len(blocks))

	var g errgroup.Group
	for w := 0; w < numThreads; w++ {
		g.Go(func() error {
			dec := codec.NewDecompressor()
			for i := range indices {
				b := blocks[i]
				if err := dec.InflateBlock(b.Deflated, dstParts[i], b.InflatedSize, b.CRC); err != nil {
					errs[i] = fmt.Errorf("block %d: %w", i, err)
				}
			}
			return nil
		})
	}
	_ = g.Wait() // workers never themselves fail the group; per-block errors land in errs

	return firstError(errs)
}

// DeflateToBuffers splits input into BlockDataInflatedSize-byte chunks (the
// last chunk may be shorter), compresses each chunk in parallel into one of
// buffers using numThreads goroutines, and returns the emitted block size
// per chunk in chunk order. Chunking stops early if there are more chunks
// than buffers available.
func DeflateToBuffers(input []byte, buffers [][]byte, numThreads int) ([]int, error) {
	numChunks := numChunksFor(len(input), len(buffers))
	if numChunks == 0 {
		return nil, nil
	}
	numThreads = clampThreads(numThreads, numChunks)

	sizes := make([]int, numChunks)
	errs := make([]error, numChunks)
	indices := dispatchIndices(numChunks)

	var g errgroup.Group
	for w := 0; w < numThreads; w++ {
		g.Go(func() error {
			comp, err := codec.NewCompressor()
			if err != nil {
				return err
			}
			for i := range indices {
				start := i * BlockDataInflatedSize
				end := start + BlockDataInflatedSize
				if end > len(input) {
					end = len(input)
				}
				size, err := comp.CompressBlock(buffers[i], input[start:end])
				if err != nil {
					errs[i] = fmt.Errorf("chunk %d: %w", i, err)
					continue
				}
				sizes[i] = size
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := firstError(errs); err != nil {
		return nil, err
	}

	return sizes, nil
}

func numChunksFor(inputLen, numBuffers int) int {
	if inputLen == 0 || numBuffers == 0 {
		return 0
	}
	n := (inputLen + BlockDataInflatedSize - 1) / BlockDataInflatedSize
	if n > numBuffers {
		n = numBuffers
	}
	return n
}

func clampThreads(numThreads, n int) int {
	if numThreads < 1 {
		numThreads = 1
	}
	if numThreads > n {
		numThreads = n
	}
	return numThreads
}

// dispatchIndices returns a closed, pre-filled channel of [0,n) for workers
// to pull from dynamically; filling it up front (rather than from a
// producer goroutine) keeps the parallel region free of any further
// allocation once workers start.
func dispatchIndices(n int) chan int {
	indices := make(chan int, n)
	for i := 0; i < n; i++ {
		indices <- i
	}
	close(indices)
	return indices
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
