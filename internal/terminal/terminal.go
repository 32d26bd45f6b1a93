// Package terminal is the terminal surface used by playback: raw mode,
// cursor visibility, screen clearing, the window title and the alternate
// screen, on top of a go-prompt [prompt.Writer].
package terminal

import (
	"errors"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/x/ansi"
	"github.com/joeycumines/go-prompt"
	"golang.org/x/term"
)

// ErrNotTerminal is returned by [Terminal.MakeRaw] when the input is not a
// terminal.
var ErrNotTerminal = errors.New("not a terminal")

// invalidFd matches the sentinel the rest of the code base uses for "no file
// descriptor".
const invalidFd = ^uintptr(0)

// Terminal pairs an input with a [prompt.Writer]. Output is buffered by the
// writer until [Terminal.Flush].
//
// Terminal remembers the state replaced by [Terminal.MakeRaw], so that
// [Terminal.Restore] may be called on every exit path, any number of times.
type Terminal struct {
	in  io.Reader
	out prompt.Writer

	mu    sync.Mutex
	state *term.State
}

// NewStdio returns a Terminal reading from stdin and writing to stdout.
func NewStdio() *Terminal {
	return NewFile(os.Stdin, os.Stdout)
}

// NewFile returns a Terminal over arbitrary files, such as the slave side of
// a pseudo terminal.
func NewFile(in, out *os.File) *Terminal {
	return New(in, NewFileWriter(out))
}

// New returns a Terminal reading from in and writing to out. Raw mode is only
// available when in has an Fd method referring to a terminal.
func New(in io.Reader, out prompt.Writer) *Terminal {
	return &Terminal{in: in, out: out}
}

// Fd returns the input file descriptor, or ^uintptr(0) if there is none.
func (t *Terminal) Fd() uintptr {
	if f, ok := t.in.(interface{ Fd() uintptr }); ok {
		return f.Fd()
	}
	return invalidFd
}

// IsTerminal reports whether the input is a terminal.
func (t *Terminal) IsTerminal() bool {
	fd := t.Fd()
	return fd != invalidFd && term.IsTerminal(int(fd))
}

// MakeRaw puts the input into raw mode. Calling it again before Restore is a
// no-op.
func (t *Terminal) MakeRaw() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != nil {
		return nil
	}
	fd := t.Fd()
	if fd == invalidFd || !term.IsTerminal(int(fd)) {
		return ErrNotTerminal
	}
	state, err := term.MakeRaw(int(fd))
	if err != nil {
		return err
	}
	t.state = state
	return nil
}

// Restore undoes MakeRaw. It is a no-op if the terminal is not in raw mode.
func (t *Terminal) Restore() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == nil {
		return nil
	}
	state := t.state
	t.state = nil
	return term.Restore(int(t.Fd()), state)
}

// Raw reports whether MakeRaw is in effect.
func (t *Terminal) Raw() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state != nil
}

// Read reads operator input.
func (t *Terminal) Read(p []byte) (int, error) {
	return t.in.Read(p)
}

// Write writes p verbatim, escape sequences included.
func (t *Terminal) Write(p []byte) (int, error) {
	t.out.WriteRaw(p)
	return len(p), nil
}

// WriteString writes s verbatim, escape sequences included.
func (t *Terminal) WriteString(s string) (int, error) {
	t.out.WriteRawString(s)
	return len(s), nil
}

// Flush writes any buffered output.
func (t *Terminal) Flush() error {
	return t.out.Flush()
}

func (t *Terminal) ShowCursor() {
	t.out.ShowCursor()
}

func (t *Terminal) HideCursor() {
	t.out.HideCursor()
}

// Clear erases the screen and homes the cursor.
func (t *Terminal) Clear() {
	t.out.EraseScreen()
	t.out.CursorGoTo(0, 0)
}

// SetTitle sets the window title.
func (t *Terminal) SetTitle(title string) {
	t.out.SetTitle(title)
}

// EnterAltScreen saves the cursor, switches to the alternate screen and homes
// the cursor.
func (t *Terminal) EnterAltScreen() {
	t.out.WriteRawString(ansi.SetAltScreenSaveCursorMode)
	t.Clear()
}

// ExitAltScreen switches back to the main screen and restores the cursor
// saved by EnterAltScreen.
func (t *Terminal) ExitAltScreen() {
	t.out.WriteRawString(ansi.ResetAltScreenSaveCursorMode)
}

// WriteReverse writes s in reverse video, then resets attributes.
func (t *Terminal) WriteReverse(s string) {
	t.out.SetDisplayAttributes(prompt.DefaultColor, prompt.DefaultColor, prompt.DisplayReverse)
	t.out.WriteRawString(s)
	t.out.SetDisplayAttributes(prompt.DefaultColor, prompt.DefaultColor, prompt.DisplayReset)
}
