// Package bgzip reads and writes BGZF: a block-gzip container format made
// of independent, size-bounded gzip members, each carrying a "BC" extra
// field that declares the member's compressed length. Because every member
// decompresses independently, batches of blocks can be inflated or
// deflated in parallel, which is what Reader and Writer do under the hood.
//
// Streams produced by Writer are ordinary gzip files — any gzip-compatible
// tool can read them back — and streams produced by any conforming
// BGZF/gzip encoder can be read back by Reader.
package bgzip
