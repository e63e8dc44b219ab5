package crypto

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"
)

const hashStreamChunkSize = 64 * 1024

// Hash returns the unkeyed BLAKE2b-256 digest of data.
func Hash(data []byte) [32]byte {
	return blake2b.Sum256(data)
}

// HashFile streams path in 64 KB chunks and returns its BLAKE2b-256 digest
// (spec §4.2, hash_file), without holding the whole file in memory.
func HashFile(path string) ([32]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return [32]byte{}, fmt.Errorf("open file for hashing: %w", err)
	}
	defer f.Close()

	return HashStream(f)
}

// HashStream drains r in 64 KB chunks and returns its BLAKE2b-256 digest.
func HashStream(r io.Reader) ([32]byte, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return [32]byte{}, fmt.Errorf("create BLAKE2b hasher: %w", err)
	}

	buf := make([]byte, hashStreamChunkSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return [32]byte{}, fmt.Errorf("hash stream: %w", err)
	}

	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum, nil
}
