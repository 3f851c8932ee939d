package batch

import (
	"fmt"
	"hash/crc32"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xbrianh/xbgzip/internal/codec"
)

func compressFixture(t *testing.T, inputs [][]byte) ([]byte, [][]byte) {
	t.Helper()

	comp, err := codec.NewCompressor()
	require.NoError(t, err)

	buffers := make([][]byte, len(inputs))
	deflated := make([][]byte, len(inputs))
	for i, input := range inputs {
		dst := make([]byte, BlockDataInflatedSize+1024)
		size, err := comp.CompressBlock(dst, input)
		require.NoError(t, err)
		buffers[i] = dst[:size]
	}

	var concatenated []byte
	for _, b := range buffers {
		concatenated = append(concatenated, b...)
	}
	for i := range buffers {
		deflated[i] = buffers[i]
	}
	return concatenated, deflated
}

func TestDeflateToBuffers_ChunkingPolicy(t *testing.T) {
	t.Parallel()

	input := []byte(strings.Repeat("A", BlockDataInflatedSize+1000))
	buffers := make([][]byte, 300)
	for i := range buffers {
		buffers[i] = make([]byte, BlockDataInflatedSize+1024)
	}

	sizes, err := DeflateToBuffers(input, buffers, 4)
	require.NoError(t, err)
	require.Len(t, sizes, 2)
	assert.Positive(t, sizes[0])
	assert.Positive(t, sizes[1])
}

func TestDeflateToBuffers_FewerBuffersThanChunks(t *testing.T) {
	t.Parallel()

	input := make([]byte, BlockDataInflatedSize*3)
	buffers := make([][]byte, 2) // only enough for 2 of 3 chunks
	for i := range buffers {
		buffers[i] = make([]byte, BlockDataInflatedSize+1024)
	}

	sizes, err := DeflateToBuffers(input, buffers, 2)
	require.NoError(t, err)
	assert.Len(t, sizes, 2)
}

func TestDeflateToBuffers_EmptyInput(t *testing.T) {
	t.Parallel()

	sizes, err := DeflateToBuffers(nil, make([][]byte, 10), 2)
	require.NoError(t, err)
	assert.Empty(t, sizes)
}

func TestInflateParts_RoundTrip(t *testing.T) {
	t.Parallel()

	inputs := [][]byte{
		[]byte("first record payload"),
		[]byte("second, somewhat longer record payload"),
		[]byte(strings.Repeat("Z", 5000)),
	}

	blocks := make([]BlockDescriptor, len(inputs))
	comp, err := codec.NewCompressor()
	require.NoError(t, err)
	for i, input := range inputs {
		dst := make([]byte, BlockDataInflatedSize+1024)
		size, err := comp.CompressBlock(dst, input)
		require.NoError(t, err)
		// Reconstruct just the deflated payload the same way a reader would.
		deflatedStart := 18
		deflatedEnd := size - 8
		blocks[i] = BlockDescriptor{
			Deflated:     dst[deflatedStart:deflatedEnd:deflatedEnd],
			InflatedSize: uint32(len(input)), //nolint:gosec
			CRC:          crc32.ChecksumIEEE(input),
		}
	}

	dstParts := make([][]byte, len(inputs))
	for i, input := range inputs {
		dstParts[i] = make([]byte, len(input))
	}

	err = InflateParts(blocks, dstParts, 4)
	require.NoError(t, err)
	for i, input := range inputs {
		assert.Equal(t, input, dstParts[i])
	}
}

func TestInflateParts_ShapeMismatch(t *testing.T) {
	t.Parallel()

	err := InflateParts(make([]BlockDescriptor, 2), make([][]byte, 3), 2)
	require.ErrorIs(t, err, ErrBatchShapeMismatch)
}

func TestInflateParts_TooLarge(t *testing.T) {
	t.Parallel()

	n := BlockBatchSize + 1
	err := InflateParts(make([]BlockDescriptor, n), make([][]byte, n), 2)
	require.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestInflateParts_OneBadBlockFailsWholeBatch(t *testing.T) {
	t.Parallel()

	inputs := [][]byte{[]byte("good one"), []byte("good two"), []byte("good three")}
	blocks := make([]BlockDescriptor, len(inputs))
	comp, err := codec.NewCompressor()
	require.NoError(t, err)
	for i, input := range inputs {
		dst := make([]byte, BlockDataInflatedSize+1024)
		size, err := comp.CompressBlock(dst, input)
		require.NoError(t, err)
		deflatedEnd := size - 8
		blocks[i] = BlockDescriptor{
			Deflated:     dst[18:deflatedEnd:deflatedEnd],
			InflatedSize: uint32(len(input)), //nolint:gosec
			CRC:          crc32.ChecksumIEEE(input),
		}
	}
	// Corrupt the CRC for the middle block.
	blocks[1].CRC ^= 0xFFFFFFFF

	dstParts := make([][]byte, len(inputs))
	for i, input := range inputs {
		dstParts[i] = make([]byte, len(input))
	}

	err = InflateParts(blocks, dstParts, 3)
	require.Error(t, err)
}

func BenchmarkDeflateToBuffers(b *testing.B) {
	input := []byte(strings.Repeat("ACGTACGTACGTACGTACGTACGTACGTACGTACGTACGT", BlockBatchSize*BlockDataInflatedSize/41))
	buffers := make([][]byte, BlockBatchSize)
	for i := range buffers {
		buffers[i] = make([]byte, BlockDataInflatedSize+1024)
	}

	for _, workers := range []int{1, 2, 4, 8} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			b.ResetTimer()
			b.SetBytes(int64(len(input)))

			for i := 0; i < b.N; i++ {
				if _, err := DeflateToBuffers(input, buffers, workers); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkInflateParts(b *testing.B) {
	const numBlocks = BlockBatchSize
	inputs := make([][]byte, numBlocks)
	for i := range inputs {
		inputs[i] = []byte(strings.Repeat("ACGT", BlockDataInflatedSize/4))
	}

	blocks := make([]BlockDescriptor, numBlocks)
	comp, err := codec.NewCompressor()
	if err != nil {
		b.Fatal(err)
	}
	for i, input := range inputs {
		dst := make([]byte, BlockDataInflatedSize+1024)
		size, err := comp.CompressBlock(dst, input)
		if err != nil {
			b.Fatal(err)
		}
		deflatedEnd := size - 8
		blocks[i] = BlockDescriptor{
			Deflated:     dst[18:deflatedEnd:deflatedEnd],
			InflatedSize: uint32(len(input)), //nolint:gosec
			CRC:          crc32.ChecksumIEEE(input),
		}
	}

	dstParts := make([][]byte, numBlocks)
	for i, input := range inputs {
		dstParts[i] = make([]byte, len(input))
	}

	totalBytes := int64(numBlocks * BlockDataInflatedSize)

	for _, workers := range []int{1, 2, 4, 8} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			b.ResetTimer()
			b.SetBytes(totalBytes)

			for i := 0; i < b.N; i++ {
				if err := InflateParts(blocks, dstParts, workers); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
