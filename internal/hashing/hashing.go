// Package hashing computes the content-addressed digest used to key
// HashTracker records and object-store keys.
package hashing

import (
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"math/bits"
	"os"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
)

// New returns a fresh hasher: BLAKE2b-512 on 64-bit hosts, BLAKE2s-256
// otherwise. The choice is made once per process based on pointer width.
func New() hash.Hash {
	if bits.UintSize == 64 {
		h, err := blake2b.New512(nil)
		if err != nil {
			// blake2b.New512 only errors on a bad key, and we pass none.
			panic(fmt.Sprintf("hashing: blake2b.New512: %v", err))
		}

		return h
	}

	h, err := blake2s.New256(nil)
	if err != nil {
		panic(fmt.Sprintf("hashing: blake2s.New256: %v", err))
	}

	return h
}

// HashFile streams path through New() and returns its hex digest.
// Synchronous by design: hashing is CPU-bound and happens once per
// changed path during the diff stage.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hashing: opening %s: %w", path, err)
	}
	defer f.Close()

	h := New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing: reading %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
