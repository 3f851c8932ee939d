package bgzip

import (
	"github.com/xbrianh/xbgzip/internal/batch"
	"github.com/xbrianh/xbgzip/internal/codec"
	"github.com/xbrianh/xbgzip/internal/framing"
)

// Sentinel errors, usable with errors.Is, matching the error kinds a
// conforming BGZF codec can surface.
var (
	ErrMalformedHeader   = framing.ErrMalformedHeader
	ErrInsufficientBytes = framing.ErrInsufficientBytes

	ErrBlockSizeMismatch = codec.ErrBlockSizeMismatch
	ErrCRCMismatch       = codec.ErrCRCMismatch
	ErrZlibInit          = codec.ErrZlibInit
	ErrZlibError         = codec.ErrZlibError

	ErrBatchTooLarge      = batch.ErrBatchTooLarge
	ErrBatchShapeMismatch = batch.ErrBatchShapeMismatch
)
