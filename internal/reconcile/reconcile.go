// Package reconcile computes and executes the fetch/delete plan that
// brings the local tree in line with a remote listing.
package reconcile

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/kalyan02/blogdkr/internal/remote"
)

// Downloader opens remote file content. Satisfied by remote.Source.
type Downloader interface {
	Download(ctx context.Context, path string) (io.ReadCloser, error)
}

// Stats summarizes one reconciliation pass. Per-file failures are counted,
// not propagated; they never abort the pass.
type Stats struct {
	Fetched     int
	UpToDate    int
	FetchErrors int
	Deleted     int
	PrunedDirs  int
}

// Reconciler decides which files to fetch and which local files to remove.
// All work is sequential: the deletion pass requires the complete expected
// set, so fetches are never fanned out.
type Reconciler struct {
	downloader Downloader
	basePath   string
	remoteRoot string
	keep       []string // doublestar patterns exempt from deletion
	logger     *zap.Logger
}

// New creates a Reconciler mirroring remoteRoot into basePath. Local files
// matching a keep pattern (relative to basePath, slash-separated) survive
// full-pass deletion; the cursor dotfile is the usual entry.
func New(downloader Downloader, basePath, remoteRoot string, keep []string, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		downloader: downloader,
		basePath:   basePath,
		remoteRoot: remoteRoot,
		keep:       keep,
		logger:     logger,
	}
}

// LocalPath maps a remote path to its local target: strip the remote root
// prefix, join the remainder onto the base directory.
func (r *Reconciler) LocalPath(remotePath string) string {
	rel := strings.TrimPrefix(remotePath, r.remoteRoot)
	rel = strings.TrimPrefix(rel, "/")
	return filepath.Join(r.basePath, filepath.FromSlash(rel))
}

// FullSync reconciles against a complete listing: fetch what differs,
// then delete local files absent from the listing, then prune emptied
// directories. The expected set covers every remote file entry, fetched
// or not.
func (r *Reconciler) FullSync(ctx context.Context, entries []remote.Entry) Stats {
	var stats Stats

	expected := make(map[string]bool, len(entries))
	for _, entry := range entries {
		expected[r.LocalPath(entry.Path)] = true
	}

	r.fetchEntries(ctx, entries, &stats)
	r.removeStale(expected, &stats)
	r.pruneEmptyDirs(&stats)

	return stats
}

// IncrementalSync reconciles a partial change set: fetch what differs,
// never delete. The change feed does not enumerate the full remote state,
// so destructive cleanup waits for the next full pass.
func (r *Reconciler) IncrementalSync(ctx context.Context, entries []remote.Entry) Stats {
	var stats Stats
	r.fetchEntries(ctx, entries, &stats)
	return stats
}

// fetchEntries processes entries in listing order. A failed fetch is
// logged and skipped; siblings are unaffected.
func (r *Reconciler) fetchEntries(ctx context.Context, entries []remote.Entry, stats *Stats) {
	for _, entry := range entries {
		localPath := r.LocalPath(entry.Path)

		cmp := Compare(localPath, entry)
		if !cmp.NeedsFetch() {
			stats.UpToDate++
			r.logger.Debug("file up to date",
				zap.String("path", entry.Path),
				zap.String("reason", cmp.String()))
			continue
		}

		r.logger.Info("fetching file",
			zap.String("remote", entry.Path),
			zap.String("local", localPath),
			zap.String("reason", cmp.String()))

		if err := r.fetchOne(ctx, entry.Path, localPath); err != nil {
			stats.FetchErrors++
			r.logger.Warn("fetch failed",
				zap.String("remote", entry.Path),
				zap.Error(err))
			continue
		}
		stats.Fetched++
	}
}

func (r *Reconciler) fetchOne(ctx context.Context, remotePath, localPath string) error {
	rc, err := r.downloader.Download(ctx, remotePath)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, rc); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// removeStale deletes every local file whose path is not expected and not
// covered by a keep pattern.
func (r *Reconciler) removeStale(expected map[string]bool, stats *Stats) {
	var localFiles []string
	err := filepath.WalkDir(r.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			localFiles = append(localFiles, path)
		}
		return nil
	})
	if err != nil {
		r.logger.Warn("local tree walk failed", zap.Error(err))
		return
	}

	for _, path := range localFiles {
		if expected[path] || r.isKept(path) {
			continue
		}
		if err := os.Remove(path); err != nil {
			r.logger.Warn("delete failed", zap.String("path", path), zap.Error(err))
			continue
		}
		stats.Deleted++
		r.logger.Info("deleted stale file", zap.String("path", path))
	}
}

// pruneEmptyDirs removes directories left empty by the file pass, deepest
// first so emptied parents become eligible in the same pass. The base
// itself is never removed.
func (r *Reconciler) pruneEmptyDirs(stats *Stats) {
	var dirs []string
	err := filepath.WalkDir(r.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && path != r.basePath {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		r.logger.Warn("directory walk failed", zap.Error(err))
		return
	}

	sort.Slice(dirs, func(i, j int) bool {
		return strings.Count(dirs[i], string(os.PathSeparator)) >
			strings.Count(dirs[j], string(os.PathSeparator))
	})

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(dir); err != nil {
			r.logger.Warn("prune failed", zap.String("path", dir), zap.Error(err))
			continue
		}
		stats.PrunedDirs++
		r.logger.Info("pruned empty directory", zap.String("path", dir))
	}
}

// isKept reports whether a local path matches a keep pattern.
func (r *Reconciler) isKept(path string) bool {
	rel, err := filepath.Rel(r.basePath, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range r.keep {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}
