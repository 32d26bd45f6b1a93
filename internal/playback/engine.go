// Package playback interprets a compiled [plan.Program] against a real
// terminal, one operator keypress at a time.
package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/rivo/uniseg"

	"github.com/joeycumines/mendax/internal/plan"
	"github.com/joeycumines/mendax/internal/sysexec"
	"github.com/joeycumines/mendax/internal/terminal"
)

// ErrInterrupted is returned by [Engine.Run] when the operator cancels.
var ErrInterrupted = errors.New("^C")

// HelpText is printed when the operator asks for help at a pause.
const HelpText = "[any key] next  [t, ctrl-t] jump to tag  [?, h] help  [q, ctrl-d] quit  [ctrl-c] abort"

// Terminal is the output surface playback drives. [terminal.Terminal]
// implements it.
type Terminal interface {
	io.Writer
	Flush() error
	MakeRaw() error
	Restore() error
	ShowCursor()
	HideCursor()
	// Clear erases the screen and homes the cursor.
	Clear()
	SetTitle(title string)
	EnterAltScreen()
	ExitAltScreen()
	WriteReverse(s string)
}

// Runner executes real commands, copying merged output to live as it
// arrives. [sysexec.Shell] implements it.
type Runner interface {
	Run(ctx context.Context, cmd string, live io.Writer) (*sysexec.Result, error)
}

// State is where an [Engine] is in its lifecycle.
type State int

const (
	Running State = iota
	AwaitingInput
	Exited
)

// cacheEntry memoizes one System step. A nil output means the command has not
// run yet.
type cacheEntry struct {
	output                  []byte
	requiresTrailingNewline bool
}

// Option configures an [Engine].
type Option func(*Engine)

// WithStyle sets the initial style.
func WithStyle(s Style) Option {
	return func(e *Engine) {
		e.style = s
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithRand sets the source of typing jitter, which must return values in
// [0, 1).
func WithRand(f func() float64) Option {
	return func(e *Engine) {
		e.rand = f
	}
}

// WithSleep replaces the function used to wait between typed characters and
// for Sleep steps.
func WithSleep(f func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) {
		e.sleep = f
	}
}

// WithRunID sets the identifier attached to every log record.
func WithRunID(id string) Option {
	return func(e *Engine) {
		e.runID = id
	}
}

// Engine plays back one program. It is single use and not safe for
// concurrent use.
type Engine struct {
	prog    *plan.Program
	term    Terminal
	intents IntentReader
	runner  Runner

	style  Style
	logger *slog.Logger
	rand   func() float64
	sleep  func(ctx context.Context, d time.Duration) error
	runID  string

	state State
	pc    int
	// highWater is the furthest pc reached.
	highWater int
	// screens is the number of alternate screens open.
	screens int
	// depth[i] is the number of screens open when step i executes.
	depth []int
	cache []cacheEntry
	ran   bool
}

// New returns an Engine for prog.
func New(prog *plan.Program, term Terminal, intents IntentReader, runner Runner, opts ...Option) *Engine {
	e := &Engine{
		prog:    prog,
		term:    term,
		intents: intents,
		runner:  runner,
		style:   DefaultStyle(),
		rand:    rand.Float64,
		sleep:   sleepContext,
		runID:   uuid.NewString(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("run", e.runID)

	e.depth = make([]int, len(prog.Steps)+1)
	for i, s := range prog.Steps {
		e.depth[i+1] = e.depth[i]
		switch s.(type) {
		case plan.ScreenOpen:
			e.depth[i+1]++
		case plan.ScreenClose:
			e.depth[i+1] = max(e.depth[i+1]-1, 0)
		}
	}
	return e
}

// State returns the current state.
func (e *Engine) State() State {
	return e.state
}

// Style returns the current style.
func (e *Engine) Style() Style {
	return e.style
}

// Run plays the program to completion, until a Stop step, or until the
// operator exits or cancels. Whatever the outcome, open alternate screens are
// left, the cursor is shown and the terminal mode is restored before Run
// returns.
func (e *Engine) Run(ctx context.Context) (err error) {
	if e.ran {
		return errors.New("playback: engine already ran")
	}
	e.ran = true
	e.cache = make([]cacheEntry, e.prog.Systems)

	if err := e.term.MakeRaw(); err != nil {
		if !errors.Is(err, terminal.ErrNotTerminal) {
			return fmt.Errorf("playback: enter raw mode: %w", err)
		}
		e.logger.Warn("playback: input is not a terminal")
	}
	defer func() {
		e.state = Exited
		for ; e.screens > 0; e.screens-- {
			e.term.ExitAltScreen()
		}
		e.term.ShowCursor()
		err = errors.Join(err, e.term.Flush(), e.term.Restore())
	}()

	e.logger.Debug("playback: start", "steps", len(e.prog.Steps), "tags", len(e.prog.Tags), "systems", e.prog.Systems)

	e.term.HideCursor()
	e.term.Clear()

	for e.pc < len(e.prog.Steps) {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.highWater = max(e.highWater, e.pc)
		done, err := e.step(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	e.logger.Debug("playback: finished")
	return nil
}

// step executes prog.Steps[e.pc] and moves pc. done reports that playback
// should end.
func (e *Engine) step(ctx context.Context) (done bool, err error) {
	e.state = Running
	switch s := e.prog.Steps[e.pc].(type) {
	case plan.Pause:
		return e.pause(ctx)
	case plan.ShowCursor:
		e.term.ShowCursor()
	case plan.HideCursor:
		e.term.HideCursor()
	case plan.Ps1:
		_, err = io.WriteString(e.term, e.style.PS1())
	case plan.Type:
		err = e.typeText(ctx, s.Text)
	case plan.Show:
		_, err = io.WriteString(e.term, s.Line+"\r\n")
	case plan.System:
		err = e.system(ctx, s)
	case plan.Sleep:
		if err = e.term.Flush(); err == nil {
			err = e.sleep(ctx, s.Duration)
		}
	case plan.Stop:
		e.logger.Debug("playback: stop", "pc", e.pc)
		return true, nil
	case plan.Clear:
		e.term.Clear()
	case plan.ScreenOpen:
		e.term.EnterAltScreen()
		e.screens++
	case plan.ScreenClose:
		if e.screens > 0 {
			e.term.ExitAltScreen()
			e.screens--
		}
	case plan.SetSpeed:
		e.style.Speed = s.Speed
	case plan.SetTitle:
		e.term.SetTitle(s.Title)
	case plan.SetCwd:
		e.style.Cwd = s.Cwd
	case plan.SetHost:
		e.style.Host = s.Host
	case plan.SetUser:
		e.style.User = s.User
	default:
		return false, fmt.Errorf("playback: unknown step %T at %d", s, e.pc)
	}
	if err != nil {
		return false, err
	}
	e.pc++
	return false, nil
}

func (e *Engine) pause(ctx context.Context) (done bool, err error) {
	e.state = AwaitingInput
	for {
		if err := e.term.Flush(); err != nil {
			return false, err
		}
		intent, err := e.intents.Next(ctx)
		if err != nil {
			return false, err
		}
		e.logger.Debug("playback: intent", "pc", e.pc, "intent", intent.Kind.String(), "tag", intent.Tag)

		switch intent.Kind {
		case Advance:
			e.pc++
			return false, nil
		case Jump:
			target, ok := e.prog.Tags[intent.Tag]
			if !ok {
				e.logger.Warn("playback: jump to unknown tag", "tag", intent.Tag)
				continue
			}
			e.jump(target)
			return false, nil
		case Exit:
			return true, nil
		case Help:
			if _, err := io.WriteString(e.term, "\r\n"+HelpText+"\r\n"); err != nil {
				return false, err
			}
		case Cancel:
			return false, ErrInterrupted
		default:
			return false, fmt.Errorf("playback: unknown intent %d", intent.Kind)
		}
	}
}

// jump moves pc to target, entering or leaving the alternate screen so the
// screen depth matches what it would be had playback arrived there in order.
func (e *Engine) jump(target int) {
	want := e.depth[target]
	for ; e.screens > want; e.screens-- {
		e.term.ExitAltScreen()
	}
	for ; e.screens < want; e.screens++ {
		e.term.EnterAltScreen()
	}
	e.logger.Debug("playback: jump", "from", e.pc, "to", target, "highWater", e.highWater)
	e.pc = target
}

// typeText writes text one grapheme cluster at a time with jittered delays.
func (e *Engine) typeText(ctx context.Context, text string) error {
	state := -1
	for text != "" {
		var cluster string
		cluster, text, _, state = uniseg.FirstGraphemeClusterInString(text, state)
		if e.style.Speed > 0 {
			if err := e.term.Flush(); err != nil {
				return err
			}
			delay := e.style.Speed * (0.5 + e.rand())
			if err := e.sleep(ctx, time.Duration(delay*float64(time.Second))); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(e.term, cluster); err != nil {
			return err
		}
	}
	return nil
}

// system runs s the first time its id is reached and replays the captured
// output on every later visit.
func (e *Engine) system(ctx context.Context, s plan.System) error {
	entry := &e.cache[s.ID]
	live := &lineEndWriter{w: e.term, flush: e.term.Flush}

	if entry.output == nil {
		if err := e.term.Flush(); err != nil {
			return err
		}
		start := time.Now()
		res, err := e.runner.Run(ctx, s.Cmd, live)
		if err != nil {
			return fmt.Errorf("playback: system %q: %w", s.Cmd, err)
		}
		out := res.Output
		if out == nil {
			out = []byte{}
		}
		entry.output = out
		entry.requiresTrailingNewline = len(out) > 0 && out[len(out)-1] != '\n'
		e.logger.Debug("playback: system executed",
			"pc", e.pc, "id", s.ID, "exitCode", res.ExitCode, "bytes", len(out), "elapsed", time.Since(start))
	} else {
		if _, err := live.Write(entry.output); err != nil {
			return err
		}
		e.logger.Debug("playback: system replayed", "pc", e.pc, "id", s.ID, "bytes", len(entry.output))
	}

	if entry.requiresTrailingNewline {
		e.term.WriteReverse("%")
		if _, err := io.WriteString(e.term, "\r\n"); err != nil {
			return err
		}
	}
	return nil
}

// lineEndWriter translates "\n" to "\r\n", flushing after every write so
// command output appears as it is produced.
type lineEndWriter struct {
	w     io.Writer
	flush func() error
}

func (l *lineEndWriter) Write(p []byte) (int, error) {
	start := 0
	for i, b := range p {
		if b != '\n' {
			continue
		}
		if _, err := l.w.Write(p[start:i]); err != nil {
			return start, err
		}
		if _, err := io.WriteString(l.w, "\r\n"); err != nil {
			return i, err
		}
		start = i + 1
	}
	if _, err := l.w.Write(p[start:]); err != nil {
		return start, err
	}
	return len(p), l.flush()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
