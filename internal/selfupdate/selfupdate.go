// Package selfupdate updates a source checkout of the tool in place with git.
package selfupdate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// ErrGitNotFound is returned when no git executable is on PATH.
var ErrGitNotFound = errors.New("git command not found. Please install git")

// Updater runs git pull in an installation directory.
type Updater struct {
	Dir string
	Out io.Writer

	// Git is the git executable; "git" when empty.
	Git string
}

// InstallDir returns override when set, otherwise the directory holding
// the running executable with symlinks resolved.
func InstallDir(override string) (string, error) {
	if override != "" {
		return filepath.Abs(override)
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate executable: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable: %w", err)
	}
	return filepath.Dir(resolved), nil
}

// Run pulls the latest changes and echoes git's output.
func (u *Updater) Run(ctx context.Context) error {
	git := u.Git
	if git == "" {
		git = "git"
	}
	out := u.Out
	if out == nil {
		out = os.Stdout
	}

	fmt.Fprintf(out, "Updating preservica-upload from: %s\n", u.Dir)
	fmt.Fprintln(out, "Running git pull...")
	fmt.Fprintln(out)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, git, "pull")
	cmd.Dir = u.Dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(err, exec.ErrNotFound) {
		return ErrGitNotFound
	}
	if err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) && filepath.Base(pathErr.Path) == filepath.Base(git) {
			return ErrGitNotFound
		}
		return &PullError{Err: err, Stderr: stderr.String()}
	}

	out.Write(stdout.Bytes())
	if stderr.Len() > 0 {
		out.Write(stderr.Bytes())
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "✅ Update complete! Run 'preservica-upload' to use the updated version.")
	return nil
}

// PullError is a git pull that ran but failed.
type PullError struct {
	Err    error
	Stderr string
}

func (e *PullError) Error() string {
	return fmt.Sprintf("git pull failed: %v", e.Err)
}

func (e *PullError) Unwrap() error { return e.Err }
