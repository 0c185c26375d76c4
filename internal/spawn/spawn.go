//go:build unix

// Package spawn starts a helper process with its standard input and output
// wired to pipes owned by the caller.
package spawn

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// DefaultCloseGrace is how long Close waits for the child to exit on its own
// after its input is closed, before sending SIGTERM.
const DefaultCloseGrace = 2 * time.Second

// Process is a running child with a pipe to its stdin and one from its
// stdout. The parent holds only the write end of the first and the read end
// of the second.
type Process struct {
	cmd    *exec.Cmd
	stdin  *os.File
	stdout *os.File
	done   chan error

	closeOnce sync.Once
	closeErr  error

	// CloseGrace overrides DefaultCloseGrace when non-zero.
	CloseGrace time.Duration
}

// Start runs name with args. The child's stderr is inherited so its
// diagnostics reach the terminal.
func Start(name string, args ...string) (*Process, error) {
	inR, inW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	outR, outW, err := os.Pipe()
	if err != nil {
		inR.Close()
		inW.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}

	cmd := exec.Command(name, args...)
	cmd.Stdin = inR
	cmd.Stdout = outW
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{}
	setPdeathsig(cmd.SysProcAttr)

	startErr := cmd.Start()

	// The child has its own copies now; the parent must not keep the
	// child's ends open or EOF would never be seen on either pipe.
	inR.Close()
	outW.Close()

	if startErr != nil {
		inW.Close()
		outR.Close()
		return nil, fmt.Errorf("start %s: %w", name, startErr)
	}

	slog.Debug("started helper", "cmd", name, "args", args, "pid", cmd.Process.Pid)

	p := &Process{
		cmd:    cmd,
		stdin:  inW,
		stdout: outR,
		done:   make(chan error, 1),
	}
	go func() {
		p.done <- cmd.Wait()
	}()
	return p, nil
}

// Stdin returns the write end of the child's standard input.
func (p *Process) Stdin() io.Writer {
	return p.stdin
}

// Stdout returns the read end of the child's standard output. The returned
// value is an *os.File and supports read deadlines.
func (p *Process) Stdout() io.Reader {
	return p.stdout
}

// Pid returns the child's process ID.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Close closes both pipes and reaps the child. A child that is still alive
// after the grace period gets SIGTERM before the final wait. Close is safe
// to call more than once.
func (p *Process) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.shutdown()
	})
	return p.closeErr
}

func (p *Process) shutdown() error {
	errIn := p.stdin.Close()
	errOut := p.stdout.Close()

	grace := p.CloseGrace
	if grace <= 0 {
		grace = DefaultCloseGrace
	}

	var waitErr error
	select {
	case waitErr = <-p.done:
	case <-time.After(grace):
		slog.Debug("helper still running, terminating", "pid", p.Pid())
		if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
			slog.Warn("signal helper", "pid", p.Pid(), "error", err)
		}
		waitErr = <-p.done
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		// A non-zero or signalled exit at shutdown is expected and not
		// worth failing over.
		slog.Debug("helper exited", "pid", p.Pid(), "status", exitErr.String())
		waitErr = nil
	}

	return errors.Join(errIn, errOut, waitErr)
}
