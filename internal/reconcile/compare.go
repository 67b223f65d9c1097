package reconcile

import (
	"os"

	"github.com/kalyan02/blogdkr/internal/remote"
	"github.com/kalyan02/blogdkr/pkg/contenthash"
)

// Comparison is the outcome of comparing a local file against a remote
// entry. One tagged result feeds one decision function instead of nested
// conditionals on the optional hash field.
type Comparison int

const (
	// LocalMissing: no local file exists at the target path.
	LocalMissing Comparison = iota
	// HashMatch: remote carries a content hash and the local file's hash
	// equals it.
	HashMatch
	// HashMismatch: remote carries a content hash and the local file's
	// hash differs.
	HashMismatch
	// SizeMatch: hash comparison was unavailable (no remote hash, or local
	// hashing failed) and the byte sizes are equal.
	SizeMatch
	// SizeMismatch: hash comparison was unavailable and the byte sizes
	// differ.
	SizeMismatch
)

func (c Comparison) String() string {
	switch c {
	case LocalMissing:
		return "local missing"
	case HashMatch:
		return "hash match"
	case HashMismatch:
		return "hash mismatch"
	case SizeMatch:
		return "size match"
	case SizeMismatch:
		return "size mismatch"
	default:
		return "unknown"
	}
}

// NeedsFetch is the single decision function over a Comparison.
func (c Comparison) NeedsFetch() bool {
	return c == LocalMissing || c == HashMismatch || c == SizeMismatch
}

// Compare classifies a local file against its remote entry.
//
// Priority: absence, then content hash when the remote provides one, then
// byte size as the degraded fallback when hashing is impossible or fails.
// Never fatal.
func Compare(localPath string, entry remote.Entry) Comparison {
	stat, err := os.Stat(localPath)
	if err != nil {
		return LocalMissing
	}

	if entry.ContentHash != "" {
		localHash, err := contenthash.HashFile(localPath)
		if err == nil {
			if localHash == entry.ContentHash {
				return HashMatch
			}
			return HashMismatch
		}
		// fall through to size comparison
	}

	if uint64(stat.Size()) == entry.Size {
		return SizeMatch
	}
	return SizeMismatch
}
