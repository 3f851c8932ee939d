package bgzip

import (
	"github.com/xbrianh/xbgzip/internal/batch"
	"github.com/xbrianh/xbgzip/internal/framing"
)

// BlockBatchSize bounds the number of blocks processed in one parallel
// fan-out, on either the read or write side.
const BlockBatchSize = batch.BlockBatchSize

// BlockDataInflatedSize is the maximum uncompressed byte count carried by a
// single block.
const BlockDataInflatedSize = batch.BlockDataInflatedSize

// BlockMetadataSize is the fixed per-block framing overhead: header (12) +
// BC subfield (6) + tailer (8).
const BlockMetadataSize = framing.MetadataSize

// maxBlockSize is the largest a single emitted block can ever be: a full
// uncompressed chunk plus its framing overhead plus headroom for
// incompressible input that deflate expands slightly.
const maxBlockSize = BlockDataInflatedSize + BlockMetadataSize + 1024
