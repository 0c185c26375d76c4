// Package xfsdb drives an interactive xfs_db session as a metadata oracle.
//
// xfs_db has no framing beyond its prompt: every response ends when the
// prompt is printed again. Client writes one command line at a time and
// collects output until the prompt shows up at the end of the buffer.
package xfsdb

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/bamsammich/xfsirecover/internal/spawn"
)

// Prompt is printed by xfs_db after startup and after every command.
const Prompt = "xfs_db> "

// DefaultDebugger is the program started by Open when none is configured.
const DefaultDebugger = "xfs_db"

const readChunk = 64 << 10

var (
	// ErrNoNewline is returned for a command that does not end in "\n".
	ErrNoNewline = errors.New("command must end with a newline")
	// ErrBadPrompt means the child did not start with the expected prompt.
	ErrBadPrompt = errors.New("unexpected startup prompt")
	// ErrOracleClosed means the child closed its output mid-session.
	ErrOracleClosed = errors.New("debugger closed its output")
	// ErrTimeout means a response did not complete within the configured timeout.
	ErrTimeout = errors.New("debugger response timed out")
)

// deadliner is implemented by pipe-backed readers such as *os.File.
type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds how long a single command may wait for its prompt.
// Zero, the default, waits forever. The limit only applies when the
// response stream supports read deadlines.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// Client is a synchronous request/response session with xfs_db.
// It is not safe for concurrent use.
type Client struct {
	w       io.Writer
	r       io.Reader
	proc    *spawn.Process
	timeout time.Duration

	buf   []byte
	chunk []byte
}

// Open starts debugger against device and synchronises with its prompt.
func Open(debugger, device string, opts ...Option) (*Client, error) {
	if debugger == "" {
		debugger = DefaultDebugger
	}
	proc, err := spawn.Start(debugger, device)
	if err != nil {
		return nil, err
	}

	c, err := NewClient(proc.Stdin(), proc.Stdout(), opts...)
	if err != nil {
		proc.Close()
		return nil, fmt.Errorf("%s %s: %w", debugger, device, err)
	}
	c.proc = proc
	return c, nil
}

// NewClient wraps an already running session. The first thing read from r
// must be the startup prompt, which is consumed here.
func NewClient(w io.Writer, r io.Reader, opts ...Option) (*Client, error) {
	c := &Client{
		w:     w,
		r:     r,
		chunk: make([]byte, readChunk),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.setDeadline()
	initial := make([]byte, len(Prompt))
	if _, err := io.ReadFull(r, initial); err != nil {
		return nil, fmt.Errorf("read startup prompt: %w", c.mapReadErr(err))
	}
	if string(initial) != Prompt {
		return nil, fmt.Errorf("%w: %q", ErrBadPrompt, initial)
	}
	return c, nil
}

// Command sends one command line and returns everything printed in reply,
// up to and including the next prompt.
func (c *Client) Command(cmd string) (string, error) {
	if !strings.HasSuffix(cmd, "\n") {
		return "", fmt.Errorf("%w: %q", ErrNoNewline, cmd)
	}
	if _, err := io.WriteString(c.w, cmd); err != nil {
		return "", fmt.Errorf("write command %q: %w", strings.TrimSpace(cmd), err)
	}

	c.buf = c.buf[:0]
	c.setDeadline()
	for {
		n, err := c.r.Read(c.chunk)
		if n > 0 {
			c.buf = append(c.buf, c.chunk[:n]...)
			if bytes.HasSuffix(c.buf, []byte(Prompt)) {
				return string(c.buf), nil
			}
		}
		if err != nil {
			return "", fmt.Errorf("read response to %q: %w", strings.TrimSpace(cmd), c.mapReadErr(err))
		}
	}
}

// Close ends the session. For a client created by Open this closes the
// pipes and reaps the debugger process.
func (c *Client) Close() error {
	if c.proc == nil {
		return nil
	}
	return c.proc.Close()
}

func (c *Client) setDeadline() {
	if c.timeout <= 0 {
		return
	}
	d, ok := c.r.(deadliner)
	if !ok {
		return
	}
	if err := d.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		slog.Debug("read deadline not supported", "error", err)
	}
}

func (c *Client) mapReadErr(err error) error {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return ErrOracleClosed
	case errors.Is(err, os.ErrDeadlineExceeded):
		return ErrTimeout
	default:
		return err
	}
}
