package types

import (
	"crypto/sha256"
	"encoding/hex"
)

// BatchDigest is a fixed-width, collision-resistant content hash of a
// Batch. Equality is bytewise, so it is safe to use as a map key.
type BatchDigest [32]byte

// String renders the digest as hex, mostly for logging.
func (d BatchDigest) String() string {
	return hex.EncodeToString(d[:])
}

// Batch is an opaque group of client transactions treated as one unit
// of dissemination. The wire-level/application encoding of Transactions
// is outside this module's scope (spec.md §1); we only need it to be a
// stable, hashable byte payload.
type Batch struct {
	Transactions [][]byte
}

// Digest computes the content digest of a batch. Stable across
// processes: same transactions in the same order always produce the
// same BatchDigest, which is the only property the synchronizer's
// pending-table dedup relies on.
func (b Batch) Digest() BatchDigest {
	h := sha256.New()
	for _, tx := range b.Transactions {
		h.Write(tx)
	}
	var digest BatchDigest
	copy(digest[:], h.Sum(nil))
	return digest
}
