package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/kalyan02/blogdkr/internal/config"
)

// RuleMirror copies glob matches into destination directories after a
// successful build. Rules are applied in order; a failing rule is logged
// and skipped so the remaining rules still run.
type RuleMirror struct {
	Rules  []config.CopyRule
	Logger *zap.Logger
}

// Apply runs every rule and reports how many were applied and how many
// failed.
func (m *RuleMirror) Apply(_ context.Context) (applied, failed int) {
	for _, rule := range m.Rules {
		if err := m.applyRule(rule); err != nil {
			failed++
			m.Logger.Warn("copy rule failed",
				zap.String("pattern", rule.SourcePattern),
				zap.String("destination", rule.Destination),
				zap.Error(err))
			continue
		}
		applied++
	}
	return applied, failed
}

func (m *RuleMirror) applyRule(rule config.CopyRule) error {
	if err := os.MkdirAll(rule.Destination, 0755); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	matches, err := doublestar.FilepathGlob(rule.SourcePattern)
	if err != nil {
		return fmt.Errorf("glob pattern: %w", err)
	}

	for _, src := range matches {
		stat, err := os.Stat(src)
		if err != nil {
			continue
		}

		switch {
		case stat.IsDir() && rule.Recursive:
			err = copyTree(src, rule.Destination)
		case !stat.IsDir():
			err = copyFile(src, filepath.Join(rule.Destination, filepath.Base(src)))
		default:
			continue // directory match without recursive
		}
		if err != nil {
			m.Logger.Warn("copy failed",
				zap.String("source", src),
				zap.String("destination", rule.Destination),
				zap.Error(err))
			continue
		}
		m.Logger.Debug("copied",
			zap.String("source", src),
			zap.String("destination", rule.Destination))
	}
	return nil
}

// copyTree copies the contents of a directory into dest, preserving
// relative structure.
func copyTree(src, dest string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
