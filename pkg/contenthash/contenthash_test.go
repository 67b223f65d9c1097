package contenthash

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sha256 of the empty message
const emptyHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// reference computes the expected digest the straightforward way: hash each
// 4 MiB block, then hash the concatenated block digests.
func reference(data []byte) string {
	overall := sha256.New()
	for len(data) > 0 {
		n := BlockSize
		if n > len(data) {
			n = len(data)
		}
		block := sha256.Sum256(data[:n])
		overall.Write(block[:])
		data = data[n:]
	}
	return hex.EncodeToString(overall.Sum(nil))
}

func TestHashBytes(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "small input", data: []byte("Hello, World!")},
		{name: "exactly one block", data: bytes.Repeat([]byte{0xAB}, BlockSize)},
		{name: "one block plus one byte", data: bytes.Repeat([]byte{0xCD}, BlockSize+1)},
		{name: "exactly two blocks", data: bytes.Repeat([]byte{0x01}, 2*BlockSize)},
		{name: "partial second block", data: bytes.Repeat([]byte{0x02}, BlockSize+1234)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HashBytes(tt.data)
			assert.Len(t, got, 64)
			assert.Equal(t, reference(tt.data), got)
		})
	}
}

func TestHashBytesEmpty(t *testing.T) {
	// Zero blocks ever finalized: the overall digest of nothing must equal
	// a plain SHA-256 of the empty message.
	assert.Equal(t, emptyHash, HashBytes(nil))
	assert.Equal(t, emptyHash, HashBytes([]byte{}))
}

func TestHashBytesDeterministic(t *testing.T) {
	data := bytes.Repeat([]byte("abc"), 100000)
	assert.Equal(t, HashBytes(data), HashBytes(data))
}

func TestWriteChunkBoundaryIndependence(t *testing.T) {
	data := bytes.Repeat([]byte{0x5A}, 2*BlockSize+999)
	want := HashBytes(data)

	chunkSizes := []int{1, 7, 4096, BlockSize - 1, BlockSize, BlockSize + 1}
	for _, size := range chunkSizes {
		h := New()
		for off := 0; off < len(data); off += size {
			end := off + size
			if end > len(data) {
				end = len(data)
			}
			_, err := h.Write(data[off:end])
			require.NoError(t, err)
		}
		assert.Equal(t, want, h.SumHex(), "chunk size %d", size)
	}
}

func TestHashReader(t *testing.T) {
	data := bytes.Repeat([]byte{0x42}, BlockSize+100)
	got, err := HashReader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, HashBytes(data), got)
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	data := []byte("The quick brown fox jumps over the lazy dog")
	require.NoError(t, os.WriteFile(path, data, 0644))

	got, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, HashBytes(data), got)
}

func TestHashFileMissing(t *testing.T) {
	_, err := HashFile(filepath.Join(t.TempDir(), "does_not_exist"))
	assert.Error(t, err)
}
