// Package compression inflates record payloads flagged with FlagCompressed.
//
// Decompress is a pure transformation: uncompressed payloads are returned
// unchanged, compressed ones are inflated from raw deflate (or the engine's
// size-prefixed zlib layout). Corrupt streams surface as *DecompressionError
// so the record reader can drop the record and continue with the next one.
package compression
