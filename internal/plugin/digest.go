package plugin

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Digest is the BLAKE3-256 hash of a plugin file's bytes. Runs record it so
// two extractions can tell whether a plugin changed between them.
type Digest [32]byte

// Sum hashes a plugin file's contents.
func Sum(buf []byte) Digest {
	return Digest(blake3.Sum256(buf))
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// IsZero reports whether the digest was never computed.
func (d Digest) IsZero() bool {
	return d == Digest{}
}
