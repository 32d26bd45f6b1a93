package terminal

import (
	"bytes"
	"io"
	"sync"

	"github.com/charmbracelet/x/ansi"
	"github.com/joeycumines/go-prompt"
)

// FileWriter implements [prompt.Writer] for any io.Writer, emitting VT100
// sequences. It drives the process terminal, pseudo terminals and test
// buffers alike.
//
// Output accumulates until Flush.
type FileWriter struct {
	mu  sync.Mutex
	w   io.Writer
	buf bytes.Buffer
}

// NewFileWriter returns a FileWriter writing to w.
func NewFileWriter(w io.Writer) *FileWriter {
	return &FileWriter{w: w}
}

// Write buffers p with escape bytes replaced, matching go-prompt's writers.
func (f *FileWriter) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range p {
		if b == 0x1b {
			b = '?'
		}
		f.buf.WriteByte(b)
	}
	return len(p), nil
}

// WriteString is the string form of Write.
func (f *FileWriter) WriteString(s string) (int, error) {
	return f.Write([]byte(s))
}

func (f *FileWriter) WriteRaw(data []byte) {
	f.mu.Lock()
	f.buf.Write(data)
	f.mu.Unlock()
}

func (f *FileWriter) WriteRawString(data string) {
	f.mu.Lock()
	f.buf.WriteString(data)
	f.mu.Unlock()
}

func (f *FileWriter) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.buf.Len() == 0 {
		return nil
	}
	_, err := f.w.Write(f.buf.Bytes())
	f.buf.Reset()
	return err
}

func (f *FileWriter) EraseScreen()      { f.WriteRawString(ansi.EraseEntireScreen) }
func (f *FileWriter) EraseUp()          { f.WriteRawString(ansi.EraseScreenAbove) }
func (f *FileWriter) EraseDown()        { f.WriteRawString(ansi.EraseScreenBelow) }
func (f *FileWriter) EraseStartOfLine() { f.WriteRawString(ansi.EraseLineLeft) }
func (f *FileWriter) EraseEndOfLine()   { f.WriteRawString(ansi.EraseLineRight) }
func (f *FileWriter) EraseLine()        { f.WriteRawString(ansi.EraseEntireLine) }
func (f *FileWriter) ShowCursor()       { f.WriteRawString(ansi.ShowCursor) }
func (f *FileWriter) HideCursor()       { f.WriteRawString(ansi.HideCursor) }
func (f *FileWriter) AskForCPR()        { f.WriteRawString(ansi.RequestCursorPositionReport) }
func (f *FileWriter) SaveCursor()       { f.WriteRawString(ansi.SaveCursor) }
func (f *FileWriter) UnSaveCursor()     { f.WriteRawString(ansi.RestoreCursor) }
func (f *FileWriter) ScrollDown()       { f.WriteRaw([]byte{ansi.ESC, 'D'}) }
func (f *FileWriter) ScrollUp()         { f.WriteRawString(ansi.ReverseIndex) }

// CursorGoTo moves to row and col, as go-prompt's writers take them; (0, 0)
// is home.
func (f *FileWriter) CursorGoTo(row, col int) {
	f.WriteRawString(ansi.CursorPosition(col, row))
}

func (f *FileWriter) CursorUp(n int) {
	if n > 0 {
		f.WriteRawString(ansi.CursorUp(n))
	} else if n < 0 {
		f.CursorDown(-n)
	}
}

func (f *FileWriter) CursorDown(n int) {
	if n > 0 {
		f.WriteRawString(ansi.CursorDown(n))
	} else if n < 0 {
		f.CursorUp(-n)
	}
}

func (f *FileWriter) CursorForward(n int) {
	if n > 0 {
		f.WriteRawString(ansi.CursorForward(n))
	} else if n < 0 {
		f.CursorBackward(-n)
	}
}

func (f *FileWriter) CursorBackward(n int) {
	if n > 0 {
		f.WriteRawString(ansi.CursorBackward(n))
	} else if n < 0 {
		f.CursorForward(-n)
	}
}

func (f *FileWriter) SetTitle(title string) {
	f.WriteRawString(ansi.SetWindowTitle(title))
}

func (f *FileWriter) ClearTitle() {
	f.WriteRawString(ansi.SetWindowTitle(""))
}

func (f *FileWriter) SetColor(fg, bg prompt.Color, bold bool) {
	if bold {
		f.SetDisplayAttributes(fg, bg, prompt.DisplayBold)
	} else {
		f.SetDisplayAttributes(fg, bg, prompt.DisplayDefaultFont, prompt.DisplayReset)
	}
}

// SetDisplayAttributes writes one SGR sequence: attributes first, then the
// foreground and background colors.
func (f *FileWriter) SetDisplayAttributes(fg, bg prompt.Color, attrs ...prompt.DisplayAttribute) {
	ps := make([]ansi.Attr, 0, len(attrs)+2)
	for _, a := range attrs {
		ps = append(ps, ansi.Attr(a))
	}
	ps = append(ps, ansi.Attr(colorCode(fg, 30)), ansi.Attr(colorCode(bg, 40)))
	f.WriteRawString(ansi.SelectGraphicRendition(ps...))
}

// colorCode maps a go-prompt color onto an SGR parameter, given the base for
// the standard palette (30 foreground, 40 background).
func colorCode(c prompt.Color, base int) int {
	switch {
	case c == prompt.DefaultColor:
		return base + 9
	case c <= prompt.LightGray:
		return base + int(c-prompt.Black)
	default:
		return base + 60 + int(c-prompt.DarkGray)
	}
}

var _ prompt.Writer = (*FileWriter)(nil)
