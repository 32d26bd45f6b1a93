package playback

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"
)

// IntentKind is what the operator asked for at a pause.
type IntentKind int

const (
	// Advance resumes at the next step.
	Advance IntentKind = iota
	// Jump resumes at the step a tag points to.
	Jump
	// Exit ends playback successfully.
	Exit
	// Help prints key bindings and keeps waiting.
	Help
	// Cancel aborts playback with [ErrInterrupted].
	Cancel
)

func (k IntentKind) String() string {
	switch k {
	case Advance:
		return "advance"
	case Jump:
		return "jump"
	case Exit:
		return "exit"
	case Help:
		return "help"
	case Cancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Intent is one operator decision. Tag is set for [Jump].
type Intent struct {
	Kind IntentKind
	Tag  string
}

// IntentReader blocks until the operator decides what to do at a pause.
type IntentReader interface {
	Next(ctx context.Context) (Intent, error)
}

// Key bytes as delivered by a terminal in raw mode.
const (
	keyCtrlC     = 0x03
	keyCtrlD     = 0x04
	keyBackspace = 0x08
	keyCtrlT     = 0x14
	keyCtrlU     = 0x15
	keyEscape    = 0x1b
	keyDelete    = 0x7f
)

// KeyReader decodes raw terminal input into intents. Jumps are read with a
// small line editor that lists tags on "?", reprompts on unknown names and
// gives up on an empty line, after which it goes back to waiting for a key.
type KeyReader struct {
	in   io.Reader
	out  flushWriter
	tags []string

	start     sync.Once
	chunks    chan []byte
	err       error
	done      chan struct{}
	closeOnce sync.Once
}

// flushWriter is the part of [Terminal] a KeyReader echoes to.
type flushWriter interface {
	io.Writer
	Flush() error
}

// NewKeyReader returns a KeyReader reading keys from in and echoing the jump
// prompt to out. tags are the names a jump may target.
func NewKeyReader(in io.Reader, out flushWriter, tags []string) *KeyReader {
	tags = slices.Clone(tags)
	slices.Sort(tags)
	return &KeyReader{
		in:     in,
		out:    out,
		tags:   tags,
		chunks: make(chan []byte),
		done:   make(chan struct{}),
	}
}

// Close stops forwarding input. A read already blocked on the underlying
// reader finishes on its own and its bytes are dropped. Next reports [Exit]
// once the reader is closed.
func (r *KeyReader) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
		r.start.Do(func() {})
	})
	return nil
}

// read returns the next chunk of input. Each chunk is what one read from the
// terminal returned, which in raw mode is one key or escape sequence.
func (r *KeyReader) read(ctx context.Context) ([]byte, error) {
	r.start.Do(func() {
		go func() {
			defer close(r.chunks)
			for {
				buf := make([]byte, 64)
				n, err := r.in.Read(buf)
				if n > 0 {
					select {
					case r.chunks <- buf[:n]:
					case <-r.done:
						return
					}
				}
				if err != nil {
					r.err = err
					return
				}
				select {
				case <-r.done:
					return
				default:
				}
			}
		}()
	})
	select {
	case <-r.done:
		return nil, io.EOF
	default:
	}
	select {
	case <-r.done:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	case b, ok := <-r.chunks:
		if !ok {
			if r.err == nil || errors.Is(r.err, io.EOF) {
				return nil, io.EOF
			}
			return nil, r.err
		}
		return b, nil
	}
}

// Next implements [IntentReader]. End of input is reported as [Exit].
func (r *KeyReader) Next(ctx context.Context) (Intent, error) {
	for {
		chunk, err := r.read(ctx)
		if errors.Is(err, io.EOF) {
			return Intent{Kind: Exit}, nil
		}
		if err != nil {
			return Intent{}, err
		}
		switch chunk[0] {
		case keyCtrlC:
			return Intent{Kind: Cancel}, nil
		case keyCtrlD, 'q':
			return Intent{Kind: Exit}, nil
		case '?', 'h':
			return Intent{Kind: Help}, nil
		case keyCtrlT, 't':
			intent, ok, err := r.readTag(ctx)
			if err != nil {
				return Intent{}, err
			}
			if ok {
				return intent, nil
			}
		default:
			return Intent{Kind: Advance}, nil
		}
	}
}

// readTag runs the jump prompt. ok is false if the operator gave up.
func (r *KeyReader) readTag(ctx context.Context) (_ Intent, ok bool, _ error) {
	if err := r.write("\r\nEnter tag: "); err != nil {
		return Intent{}, false, err
	}
	var line []byte
	var prev byte
	for {
		chunk, err := r.read(ctx)
		if errors.Is(err, io.EOF) {
			return Intent{Kind: Exit}, true, nil
		}
		if err != nil {
			return Intent{}, false, err
		}
		if chunk[0] == keyEscape {
			// arrow keys and friends; a lone escape abandons the jump
			if len(chunk) == 1 {
				return Intent{}, false, r.write("\r\n")
			}
			continue
		}
		for _, b := range chunk {
			if b == '\n' && prev == '\r' {
				continue
			}
			prev = b
			switch b {
			case keyCtrlC:
				return Intent{Kind: Cancel}, true, r.write("\r\n")
			case '\r', '\n':
				name := strings.TrimSpace(string(line))
				line = line[:0]
				switch {
				case name == "":
					return Intent{}, false, r.write("\r\n")
				case name == "?":
					if err := r.write("\r\nAvailable tags: " + strings.Join(r.tags, ", ") + "\r\nEnter tag: "); err != nil {
						return Intent{}, false, err
					}
				case slices.Contains(r.tags, name):
					return Intent{Kind: Jump, Tag: name}, true, r.write("\r\n")
				default:
					if err := r.write("\r\nTag incorrect; enter tag: "); err != nil {
						return Intent{}, false, err
					}
				}
			case keyDelete, keyBackspace:
				if len(line) > 0 {
					_, size := utf8.DecodeLastRune(line)
					line = line[:len(line)-size]
					if err := r.write("\b \b"); err != nil {
						return Intent{}, false, err
					}
				}
			case keyCtrlU:
				for range utf8.RuneCount(line) {
					if err := r.write("\b \b"); err != nil {
						return Intent{}, false, err
					}
				}
				line = line[:0]
			default:
				if b < 0x20 {
					continue
				}
				line = append(line, b)
				if _, err := r.out.Write([]byte{b}); err != nil {
					return Intent{}, false, err
				}
			}
		}
		if err := r.out.Flush(); err != nil {
			return Intent{}, false, err
		}
	}
}

func (r *KeyReader) write(s string) error {
	if _, err := io.WriteString(r.out, s); err != nil {
		return err
	}
	return r.out.Flush()
}
