// Package remote defines the interface the sync core consumes to talk to
// the remote file store.
package remote

import (
	"context"
	"io"
	"time"
)

// Entry is one file entry from a remote listing. Immutable per listing
// call. Non-file entries (folders, deletions) are filtered out by the
// source implementation before they reach the core.
type Entry struct {
	// Path is the remote path, including the configured remote root.
	Path string
	// Size in bytes.
	Size uint64
	// ContentHash is the block-chunked SHA-256 digest of the content, hex
	// lowercase. Empty when the source does not know it.
	ContentHash string
	// Modified is the server-side modification time. Informational only;
	// change detection uses existence, hash and size, never timestamps.
	Modified time.Time
}

// Source lists and downloads remote files.
//
// Implementations are stateless and reentrant; the core may call them
// repeatedly from its single worker.
type Source interface {
	// List returns every file entry under root, optionally recursing, plus
	// an opaque cursor representing the remote state at listing time.
	List(ctx context.Context, root string, recursive bool) ([]Entry, string, error)

	// ChangesSince returns the file entries changed since cursor, following
	// continuation pagination until exhausted, plus the new terminal
	// cursor.
	ChangesSince(ctx context.Context, cursor string) ([]Entry, string, error)

	// Download opens the content of a remote file. The caller closes it.
	Download(ctx context.Context, path string) (io.ReadCloser, error)
}
