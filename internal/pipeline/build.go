package pipeline

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"go.uber.org/zap"
)

// CommandBuilder runs a single configured shell command in a working
// directory. Success is a zero exit status; combined output is captured
// for diagnostics only.
type CommandBuilder struct {
	Command    string
	WorkingDir string
	Logger     *zap.Logger
}

// Run executes the build command. An empty command and a missing working
// directory are both treated as "nothing to build", not failures.
func (b *CommandBuilder) Run(ctx context.Context) ([]byte, error) {
	if b.Command == "" {
		return nil, nil
	}

	dir := b.WorkingDir
	if dir == "" {
		dir = "."
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		b.Logger.Warn("build working directory does not exist, skipping build",
			zap.String("dir", dir))
		return nil, nil
	}

	b.Logger.Info("running build command",
		zap.String("command", b.Command),
		zap.String("dir", dir))

	cmd := exec.CommandContext(ctx, "sh", "-c", b.Command)
	cmd.Dir = dir

	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("build command: %w", err)
	}
	return output, nil
}
