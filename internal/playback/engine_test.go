package playback

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/mendax/internal/plan"
	"github.com/joeycumines/mendax/internal/sysexec"
	"github.com/joeycumines/mendax/internal/tale"
)

// fakeTerminal records output, with control operations rendered as markers.
type fakeTerminal struct {
	buf      bytes.Buffer
	raw      bool
	restored int
	flushes  int
}

func (f *fakeTerminal) Write(p []byte) (int, error) { return f.buf.Write(p) }
func (f *fakeTerminal) Flush() error                { f.flushes++; return nil }
func (f *fakeTerminal) MakeRaw() error              { f.raw = true; f.buf.WriteString("<raw>"); return nil }
func (f *fakeTerminal) Restore() error {
	f.raw = false
	f.restored++
	f.buf.WriteString("<restore>")
	return nil
}
func (f *fakeTerminal) ShowCursor()            { f.buf.WriteString("<show>") }
func (f *fakeTerminal) HideCursor()            { f.buf.WriteString("<hide>") }
func (f *fakeTerminal) Clear()                 { f.buf.WriteString("<clear>") }
func (f *fakeTerminal) SetTitle(title string)  { f.buf.WriteString("<title:" + title + ">") }
func (f *fakeTerminal) EnterAltScreen()        { f.buf.WriteString("<alt>") }
func (f *fakeTerminal) ExitAltScreen()         { f.buf.WriteString("</alt>") }
func (f *fakeTerminal) WriteReverse(s string)  { f.buf.WriteString("[" + s + "]") }
func (f *fakeTerminal) output() string         { return ansi.Strip(f.buf.String()) }
func (f *fakeTerminal) mark(s string)          { f.buf.WriteString(s) }
func (f *fakeTerminal) String() string         { return f.output() }
func (f *fakeTerminal) count(sub string) int   { return strings.Count(f.output(), sub) }
func (f *fakeTerminal) contains(s string) bool { return strings.Contains(f.output(), s) }

// scriptedIntents replays intents in order, marking each pause in the
// terminal output, then exits.
type scriptedIntents struct {
	term    *fakeTerminal
	intents []Intent
	err     error
}

func (s *scriptedIntents) Next(ctx context.Context) (Intent, error) {
	if err := ctx.Err(); err != nil {
		return Intent{}, err
	}
	s.term.mark("|")
	if len(s.intents) == 0 {
		if s.err != nil {
			return Intent{}, s.err
		}
		return Intent{Kind: Exit}, nil
	}
	i := s.intents[0]
	s.intents = s.intents[1:]
	return i, nil
}

type fakeRunner struct {
	outputs map[string]string
	calls   map[string]int
	err     error
}

func (f *fakeRunner) Run(_ context.Context, cmd string, live io.Writer) (*sysexec.Result, error) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[cmd]++
	if f.err != nil {
		return nil, f.err
	}
	out := []byte(f.outputs[cmd])
	// two writes, as a real process would produce
	half := len(out) / 2
	_, _ = live.Write(out[:half])
	_, _ = live.Write(out[half:])
	return &sysexec.Result{Output: out}, nil
}

var (
	advance = Intent{Kind: Advance}
	exit    = Intent{Kind: Exit}
)

func jump(tag string) Intent { return Intent{Kind: Jump, Tag: tag} }

type harness struct {
	term    *fakeTerminal
	intents *scriptedIntents
	runner  *fakeRunner
	sleeps  []time.Duration
	engine  *Engine
}

func newHarness(t *testing.T, tl tale.Tale, intents ...Intent) *harness {
	t.Helper()
	h := &harness{
		term:   &fakeTerminal{},
		runner: &fakeRunner{},
	}
	h.intents = &scriptedIntents{term: h.term, intents: intents}
	style := DefaultStyle()
	style.Speed = 0
	h.engine = New(plan.Compile(tl), h.term, h.intents, h.runner,
		WithStyle(style),
		WithRunID("test"),
		WithSleep(func(_ context.Context, d time.Duration) error {
			h.sleeps = append(h.sleeps, d)
			return nil
		}),
	)
	return h
}

func TestEngine_Run(t *testing.T) {
	t.Parallel()

	h := newHarness(t, tale.Tale{tale.Run{Cmd: "echo hi", Result: []string{"hi"}}},
		advance, advance, advance)
	require.NoError(t, h.engine.Run(context.Background()))

	assert.Equal(t, "<raw><hide><clear>"+
		"ubuntu@ubuntu:~$ <show>|echo hi|\r\n<hide>hi\r\n"+
		"ubuntu@ubuntu:~$ <show>|\r\n"+
		"<show><restore>", h.term.output())
	assert.Equal(t, Exited, h.engine.State())
	assert.False(t, h.term.raw)
}

func TestEngine_Look(t *testing.T) {
	t.Parallel()

	h := newHarness(t, tale.Tale{
		tale.Look{Title: tale.Ptr("demo"), User: tale.Ptr("root"), Host: tale.Ptr("box"), Cwd: tale.Ptr("/srv"), Speed: tale.Ptr(0.0)},
		tale.Enter{Msg: "y"},
		tale.Look{FinalPrompt: tale.Ptr(false)},
	}, advance, advance)
	require.NoError(t, h.engine.Run(context.Background()))

	assert.Equal(t, "<raw><hide><clear><title:demo>"+
		"root@box:/srv$ <show>|y|\r\n"+
		"<show><restore>", h.term.output())
	assert.Equal(t, Style{Speed: 0, Cwd: "/srv", Host: "box", User: "root"}, h.engine.Style())
}

func TestEngine_SystemIdempotentReplay(t *testing.T) {
	t.Parallel()

	h := newHarness(t, tale.Tale{
		tale.Tag{Name: "before"},
		tale.System{Cmd: "date"},
		tale.Tag{Name: "after"},
	},
		advance, advance, // type, submit: runs date
		jump("before"),   // at the final prompt
		advance, advance, // replays date
		jump("after"),
		exit,
	)
	h.runner.outputs = map[string]string{"date": "Mon\nTue"}
	require.NoError(t, h.engine.Run(context.Background()))

	assert.Equal(t, 1, h.runner.calls["date"])

	segment := "Mon\r\nTue[%]\r\n"
	out := h.term.output()
	require.Equal(t, 2, strings.Count(out, segment), out)
	first := strings.Index(out, segment)
	last := strings.LastIndex(out, segment)
	assert.Equal(t, out[first:first+len(segment)], out[last:last+len(segment)])
}

func TestEngine_SystemForwardJumpExecutesOnFirstVisit(t *testing.T) {
	t.Parallel()

	h := newHarness(t, tale.Tale{
		tale.Tag{Name: "start"},
		tale.Run{Cmd: "ls"},
		tale.System{Cmd: "whoami"},
		tale.Tag{Name: "end"},
	},
		jump("end"),   // skip ls and whoami entirely
		jump("start"), // back from the final prompt
		advance, advance,
		advance, advance, // whoami runs for the first time
		jump("start"),
		advance, advance,
		advance, advance, // whoami replays
		exit,
	)
	h.runner.outputs = map[string]string{"whoami": "root\n"}
	require.NoError(t, h.engine.Run(context.Background()))

	assert.Equal(t, 1, h.runner.calls["whoami"])
	assert.Equal(t, 2, h.term.count("root\r\n"))
	assert.Zero(t, h.term.count("[%]"))
}

func TestEngine_SystemEmptyOutput(t *testing.T) {
	t.Parallel()

	h := newHarness(t, tale.Tale{tale.System{Cmd: "true"}}, advance, advance)
	require.NoError(t, h.engine.Run(context.Background()))
	assert.Equal(t, 1, h.runner.calls["true"])
	assert.Zero(t, h.term.count("[%]"))
}

func TestEngine_SystemError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	h := newHarness(t, tale.Tale{tale.Screen{Tale: tale.Tale{tale.System{Cmd: "false"}}}}, advance, advance)
	h.runner.err = boom

	err := h.engine.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, h.term.restored)
	assert.True(t, strings.HasSuffix(h.term.output(), "</alt><show><restore>"))
}

func TestEngine_Stop(t *testing.T) {
	t.Parallel()

	h := newHarness(t, tale.Tale{tale.Show{Text: "a"}, tale.Stop{}, tale.Show{Text: "b"}})
	require.NoError(t, h.engine.Run(context.Background()))

	assert.Equal(t, "<raw><hide><clear>a\r\n<show><restore>", h.term.output())
}

func TestEngine_ExitAtPause(t *testing.T) {
	t.Parallel()

	h := newHarness(t, tale.Tale{tale.Run{Cmd: "ls", Result: []string{"x"}}}, exit)
	require.NoError(t, h.engine.Run(context.Background()))

	assert.False(t, h.term.contains("ls"))
	assert.Equal(t, 1, h.term.restored)
}

func TestEngine_CancelInsideScreen(t *testing.T) {
	t.Parallel()

	h := newHarness(t, tale.Tale{
		tale.Screen{ApparentCmd: tale.Ptr("vim"), Tale: tale.Tale{tale.Show{Text: "~"}}},
	}, advance, advance, Intent{Kind: Cancel})

	err := h.engine.Run(context.Background())
	require.ErrorIs(t, err, ErrInterrupted)
	assert.Equal(t, "^C", err.Error())
	assert.True(t, strings.HasSuffix(h.term.output(), "<alt>~\r\n<show>|</alt><show><restore>"), h.term.output())
	assert.False(t, h.term.raw)
}

func TestEngine_Help(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, Intent{Kind: Help}, advance)
	require.NoError(t, h.engine.Run(context.Background()))

	assert.Equal(t, "<raw><hide><clear>ubuntu@ubuntu:~$ <show>|\r\n"+HelpText+"\r\n|\r\n<show><restore>", h.term.output())
}

func TestEngine_JumpLeavesScreen(t *testing.T) {
	t.Parallel()

	h := newHarness(t, tale.Tale{
		tale.Tag{Name: "top"},
		tale.Screen{Tale: tale.Tale{tale.Show{Text: "inside"}}},
	},
		jump("top"), // at the pause closing the screen
		advance,     // close it this time
		advance,     // final prompt
	)
	require.NoError(t, h.engine.Run(context.Background()))

	assert.Equal(t, "<raw><hide><clear>"+
		"<alt>inside\r\n<show>|</alt>"+
		"<alt>inside\r\n<show>|</alt>"+
		"ubuntu@ubuntu:~$ <show>|\r\n"+
		"<show><restore>", h.term.output())
}

func TestEngine_JumpIntoScreen(t *testing.T) {
	t.Parallel()

	h := newHarness(t, tale.Tale{
		tale.Run{Cmd: "ls"},
		tale.Screen{Tale: tale.Tale{tale.Tag{Name: "inside"}, tale.Show{Text: "x"}}},
	},
		jump("inside"),
		advance, // screen close
		exit,
	)
	require.NoError(t, h.engine.Run(context.Background()))

	assert.Equal(t, "<raw><hide><clear>"+
		"ubuntu@ubuntu:~$ <show>|<alt>x\r\n<show>|</alt>"+
		"ubuntu@ubuntu:~$ <show>|"+
		"<show><restore>", h.term.output())
}

func TestEngine_UnknownJumpTagIgnored(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, jump("nope"), advance)
	require.NoError(t, h.engine.Run(context.Background()))
	assert.Equal(t, 2, h.term.count("|"))
}

func TestEngine_Typing(t *testing.T) {
	t.Parallel()

	h := newHarness(t, tale.Tale{
		tale.Look{Speed: tale.Ptr(0.1)},
		tale.Enter{Msg: "hé!"},
		tale.Look{FinalPrompt: tale.Ptr(false)},
	}, advance, advance)
	h.engine.rand = func() float64 { return 0.5 }
	require.NoError(t, h.engine.Run(context.Background()))

	require.Len(t, h.sleeps, 3)
	for _, d := range h.sleeps {
		assert.Equal(t, 100*time.Millisecond, d)
	}
	assert.True(t, h.term.contains("|hé!|"))
}

func TestEngine_TypingBounds(t *testing.T) {
	t.Parallel()

	for _, r := range []float64{0, 0.999999} {
		h := newHarness(t, tale.Tale{
			tale.Look{Speed: tale.Ptr(0.04)},
			tale.Enter{Msg: "x"},
		}, advance, advance, advance)
		h.engine.rand = func() float64 { return r }
		require.NoError(t, h.engine.Run(context.Background()))
		require.Len(t, h.sleeps, 1)
		assert.GreaterOrEqual(t, h.sleeps[0], 20*time.Millisecond)
		assert.Less(t, h.sleeps[0], 60*time.Millisecond)
	}
}

func TestEngine_Sleep(t *testing.T) {
	t.Parallel()

	h := newHarness(t, tale.Tale{tale.Sleep{Duration: 1500 * time.Millisecond}, tale.Stop{}})
	require.NoError(t, h.engine.Run(context.Background()))
	assert.Equal(t, []time.Duration{1500 * time.Millisecond}, h.sleeps)
}

func TestEngine_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := newHarness(t, tale.Tale{tale.Show{Text: "x"}})
	require.ErrorIs(t, h.engine.Run(ctx), context.Canceled)
	assert.Equal(t, 1, h.term.restored)
}

func TestEngine_IntentError(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.intents.err = io.ErrUnexpectedEOF
	h.intents.intents = nil
	// exhausted intents return err instead of exiting
	require.ErrorIs(t, h.engine.Run(context.Background()), io.ErrUnexpectedEOF)
	assert.Equal(t, 1, h.term.restored)
}

func TestEngine_RunOnce(t *testing.T) {
	t.Parallel()

	h := newHarness(t, tale.Tale{tale.Stop{}})
	require.NoError(t, h.engine.Run(context.Background()))
	require.Error(t, h.engine.Run(context.Background()))
}

func TestLineEndWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	flushes := 0
	w := &lineEndWriter{w: &buf, flush: func() error { flushes++; return nil }}

	n, err := w.Write([]byte("a\nb\n\nc"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, "a\r\nb\r\n\r\nc", buf.String())
	assert.Equal(t, 1, flushes)
}

func TestStyle_PS1(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ubuntu@ubuntu:~$ ", ansi.Strip(DefaultStyle().PS1()))
	assert.Equal(t, "root@box:/tmp$ ", ansi.Strip(Style{User: "root", Host: "box", Cwd: "/tmp"}.PS1()))
}
