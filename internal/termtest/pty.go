// Package termtest drives programs through a pseudo-terminal so tests can
// press keys and wait for what appears on screen.
package termtest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/creack/pty"
)

// Size is the window size every PTY starts with.
var Size = pty.Winsize{Rows: 24, Cols: 80}

// ErrClosed is returned when sending input to a closed PTY.
var ErrClosed = errors.New("termtest: pty is closed")

// PTY is a pseudo-terminal pair with its output captured from the master
// side.
type PTY struct {
	ptm *os.File
	pts *os.File
	cmd *exec.Cmd

	mu     sync.RWMutex
	output strings.Builder
	closed bool
}

// Open creates a PTY for testing code in-process. The program under test
// uses [PTY.TTY] as its terminal.
func Open() (*PTY, error) {
	ptm, pts, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open pty: %w", err)
	}
	_ = pty.Setsize(ptm, &Size)

	p := &PTY{ptm: ptm, pts: pts}
	go p.readOutput()
	return p, nil
}

// Start runs cmd with the PTY as its controlling terminal. TERM, COLUMNS and
// LINES are appended to cmd.Env, which defaults to the current environment.
func Start(cmd *exec.Cmd) (*PTY, error) {
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	cmd.Env = append(cmd.Env,
		"TERM=xterm-256color",
		fmt.Sprintf("COLUMNS=%d", Size.Cols),
		fmt.Sprintf("LINES=%d", Size.Rows),
	)
	ptm, err := pty.StartWithSize(cmd, &Size)
	if err != nil {
		return nil, fmt.Errorf("failed to start command with pty: %w", err)
	}

	p := &PTY{ptm: ptm, cmd: cmd}
	go p.readOutput()
	return p, nil
}

// TTY returns the slave side, nil for a PTY made by [Start].
func (p *PTY) TTY() *os.File {
	return p.pts
}

// Type writes input to the master side one rune at a time, pausing between
// runes so a raw-mode reader sees each key as its own read.
func (p *PTY) Type(input string, delay time.Duration) error {
	for _, r := range input {
		if err := p.send(string(r)); err != nil {
			return err
		}
		time.Sleep(delay)
	}
	return nil
}

// SendKeys sends one named key.
func (p *PTY) SendKeys(key string) error {
	var sequence string
	switch strings.ToLower(key) {
	case "ctrl-c":
		sequence = "\x03"
	case "ctrl-d":
		sequence = "\x04"
	case "ctrl-t":
		sequence = "\x14"
	case "ctrl-u":
		sequence = "\x15"
	case "escape", "esc":
		sequence = "\x1b"
	case "enter":
		sequence = "\r"
	case "backspace":
		sequence = "\x7f"
	case "space":
		sequence = " "
	case "up":
		sequence = "\x1b[A"
	case "down":
		sequence = "\x1b[B"
	default:
		return fmt.Errorf("unknown key sequence: %s", key)
	}
	return p.send(sequence)
}

func (p *PTY) send(s string) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if _, err := p.ptm.WriteString(s); err != nil {
		return fmt.Errorf("failed to write input: %w", err)
	}
	return nil
}

// OutputLen returns the number of bytes captured so far, for use with
// [PTY.WaitForOutputSince].
func (p *PTY) OutputLen() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.output.Len()
}

// Output returns everything captured so far, escape sequences included.
func (p *PTY) Output() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.output.String()
}

// WaitForOutputSince waits for text to appear in the output captured after
// offset since. Escape sequences are stripped before matching.
func (p *PTY) WaitForOutputSince(text string, since int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		out := p.Output()
		if since > len(out) {
			since = len(out)
		}
		if strings.Contains(ansi.Strip(out[since:]), text) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("expected text %q not found in new output after %v: %q", text, timeout, ansi.Strip(out[since:]))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Wait waits for a command started with [Start] to exit and returns its exit
// code. The process is killed if it outlives timeout.
func (p *PTY) Wait(timeout time.Duration) (int, error) {
	if p.cmd == nil {
		return 0, errors.New("termtest: no command running")
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.cmd.Wait() }()

	select {
	case err := <-done:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		if err != nil {
			return -1, err
		}
		return 0, nil
	case <-ctx.Done():
		_ = p.cmd.Process.Kill()
		<-done
		return -1, fmt.Errorf("command timeout after %v", timeout)
	}
}

// Close releases both sides of the PTY, killing any command still running.
func (p *PTY) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	var errs []error
	if p.pts != nil {
		if err := p.pts.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close pts: %w", err))
		}
	}
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	if err := p.ptm.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close ptm: %w", err))
	}
	return errors.Join(errs...)
}

func (p *PTY) readOutput() {
	buffer := make([]byte, 4096)
	for {
		n, err := p.ptm.Read(buffer)
		if n > 0 {
			p.mu.Lock()
			p.output.Write(buffer[:n])
			p.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}
