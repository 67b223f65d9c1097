// Package contenthash implements the block-chunked SHA-256 digest used by
// the Dropbox API for the "content_hash" metadata field.
//
// Input is split into 4 MiB blocks. Each block is hashed with SHA-256, the
// concatenation of the block digests is hashed again with SHA-256, and the
// final value is hex-encoded lowercase. Two files are considered equal iff
// their finalized hex digests are identical.
package contenthash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
)

// BlockSize is the fixed chunk size of the content hash algorithm.
const BlockSize = 4 * 1024 * 1024

const bufferSize = 64 * 1024

// Hasher computes a content hash incrementally. The zero value is not
// usable; create one with New.
type Hasher struct {
	overall  hash.Hash
	block    hash.Hash
	blockPos int
}

// New creates a Hasher ready to accept input.
func New() *Hasher {
	return &Hasher{
		overall: sha256.New(),
		block:   sha256.New(),
	}
}

// Write feeds input into the hasher. It never fails; the error is there to
// satisfy io.Writer. Callers may split input across Write calls at any
// boundary without affecting the result.
func (h *Hasher) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		if h.blockPos == BlockSize {
			h.overall.Write(h.block.Sum(nil))
			h.block = sha256.New()
			h.blockPos = 0
		}

		n := BlockSize - h.blockPos
		if n > len(p) {
			n = len(p)
		}
		h.block.Write(p[:n])
		h.blockPos += n
		written += n
		p = p[n:]
	}
	return written, nil
}

// Sum finalizes the hash and returns the raw digest, consuming the Hasher.
// A trailing partial block is folded in exactly once; input whose length is
// an exact multiple of BlockSize produces no spurious empty block.
func (h *Hasher) Sum() []byte {
	if h.blockPos > 0 {
		h.overall.Write(h.block.Sum(nil))
		h.block = sha256.New()
		h.blockPos = 0
	}
	return h.overall.Sum(nil)
}

// SumHex finalizes the hash and returns the lowercase hex digest, the wire
// format compared against the remote content_hash field.
func (h *Hasher) SumHex() string {
	return hex.EncodeToString(h.Sum())
}

// HashFile computes the content hash of a file.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return HashReader(f)
}

// HashReader computes the content hash of everything read from r.
func HashReader(r io.Reader) (string, error) {
	h := New()
	buf := make([]byte, bufferSize)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read: %w", err)
		}
	}

	return h.SumHex(), nil
}

// HashBytes computes the content hash of a byte slice.
func HashBytes(data []byte) string {
	h := New()
	h.Write(data)
	return h.SumHex()
}
