// Package engine provides domain.Engine implementations backed by an ffmpeg
// binary and a private staging directory.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

var (
	ErrInvalidName = errors.New("engine: staged name must be a flat file name")
	ErrClosed      = errors.New("engine: closed")
)

// preamble is prepended to every invocation. -y lets a rerun overwrite a
// stale output; -nostdin keeps ffmpeg from blocking on the terminal.
var preamble = []string{"-hide_banner", "-nostdin", "-y", "-loglevel", "error"}

// ExecError carries the stderr of a failed ffmpeg run.
type ExecError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *ExecError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("ffmpeg: %v", e.Err)
	}
	return fmt.Sprintf("ffmpeg: %v: %s", e.Err, lastLine(msg))
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

type ExecOptions struct {
	// Binary is the ffmpeg executable. Default: "ffmpeg" from PATH.
	Binary string

	// Dir is the parent of the staging directory. Default: os.TempDir().
	Dir string

	// Stderr, when set, receives ffmpeg's stderr as it is produced.
	Stderr io.Writer
}

// Exec stages files in a directory it owns and runs ffmpeg inside it, so
// staged names double as relative paths in the argument list.
type Exec struct {
	binary string
	dir    string
	stderr io.Writer

	execMu sync.Mutex

	mu     sync.RWMutex
	closed bool
}

// NewExec creates the staging directory. Call Close to remove it.
func NewExec(opts ExecOptions) (*Exec, error) {
	if opts.Binary == "" {
		opts.Binary = "ffmpeg"
	}

	dir, err := os.MkdirTemp(opts.Dir, "reelsync-*")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	return &Exec{binary: opts.Binary, dir: dir, stderr: opts.Stderr}, nil
}

// Dir returns the staging directory.
func (e *Exec) Dir() string {
	return e.dir
}

func (e *Exec) Stage(ctx context.Context, name string, data []byte) error {
	path, err := e.path(name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Execute runs ffmpeg with args in the staging directory. Calls are
// serialized.
func (e *Exec) Execute(ctx context.Context, args []string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}

	e.execMu.Lock()
	defer e.execMu.Unlock()

	full := make([]string, 0, len(preamble)+len(args))
	full = append(full, preamble...)
	full = append(full, args...)

	cmd := exec.CommandContext(ctx, e.binary, full...)
	cmd.Dir = e.dir

	var stderrBuf bytes.Buffer
	if e.stderr != nil {
		cmd.Stderr = io.MultiWriter(&stderrBuf, e.stderr)
	} else {
		cmd.Stderr = &stderrBuf
	}

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return &ExecError{Args: full, Stderr: stderrBuf.String(), Err: err}
	}
	return nil
}

func (e *Exec) ReadStaged(ctx context.Context, name string) ([]byte, error) {
	path, err := e.path(name)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

func (e *Exec) Unstage(ctx context.Context, name string) error {
	path, err := e.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

// Close removes the staging directory and everything left in it.
func (e *Exec) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.execMu.Lock()
	defer e.execMu.Unlock()
	return os.RemoveAll(e.dir)
}

func (e *Exec) checkOpen() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}
	return nil
}

func (e *Exec) path(name string) (string, error) {
	if err := e.checkOpen(); err != nil {
		return "", err
	}
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(e.dir, name), nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
