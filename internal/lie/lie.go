// Package lie records author calls into a [tale.Tale].
//
// A [Builder] is handed to the author script. Each call appends one or more
// fibs, and the builder enforces the invariants that span the whole tale:
// tag names are unique everywhere (screens included), screens do not nest, and
// real commands need permission granted when the root builder was created.
package lie

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/joeycumines/mendax/internal/tale"
)

// Limits caps the size of values accepted from untrusted scripts.
// Zero means unlimited.
type Limits struct {
	MaxArrayLen  int
	MaxStringLen int
	MaxMapLen    int
}

// DefaultLimits returns the caps applied in restricted mode.
func DefaultLimits() Limits {
	return Limits{
		MaxArrayLen:  1000,
		MaxStringLen: 15000,
		MaxMapLen:    1000,
	}
}

// Option configures a root [Builder].
type Option func(*shared)

// WithLimits applies size limits to every value recorded.
func WithLimits(l Limits) Option {
	return func(s *shared) {
		s.limits = l
	}
}

// reservedTags are inputs the jump prompt interprets itself.
var reservedTags = map[string]struct{}{
	"?": {},
}

// lookFields lists the keys Look accepts, sorted.
var lookFields = []string{"cwd", "final_prompt", "host", "speed", "title", "user"}

// shared is the state common to a root builder and its screens.
type shared struct {
	tags        map[string]struct{}
	allowSystem bool
	limits      Limits
}

// Builder accumulates fibs. It is not safe for concurrent use; scripts drive
// it from a single goroutine.
type Builder struct {
	shared *shared
	parent *Builder
	tale   tale.Tale
	// busy is set while a screen body runs against a child of this builder.
	busy bool
	// closed is set on a screen builder once its body has returned.
	closed bool
}

// New returns a root builder. allowSystem grants permission to record
// [tale.System] fibs, and is inherited by every screen.
func New(allowSystem bool, opts ...Option) *Builder {
	s := &shared{
		tags:        make(map[string]struct{}),
		allowSystem: allowSystem,
	}
	for _, opt := range opts {
		opt(s)
	}
	return &Builder{shared: s}
}

// InScreen reports whether b records the body of a screen.
func (b *Builder) InScreen() bool {
	return b.parent != nil
}

// Len returns the number of fibs recorded directly on b.
func (b *Builder) Len() int {
	return len(b.tale)
}

func (b *Builder) writable() error {
	if b.closed {
		return ErrScreenClosed
	}
	if b.busy {
		return ErrBuilderInUse
	}
	return nil
}

func (b *Builder) push(fibs ...tale.Fib) error {
	if err := b.writable(); err != nil {
		return err
	}
	b.tale = append(b.tale, fibs...)
	return nil
}

func (b *Builder) checkString(what, s string) error {
	if max := b.shared.limits.MaxStringLen; max > 0 && len(s) > max {
		return &LimitError{What: what, Len: len(s), Max: max}
	}
	return nil
}

// Run records a typed command. result holds zero or more lines of output.
func (b *Builder) Run(cmd string, result ...string) error {
	if max := b.shared.limits.MaxArrayLen; max > 0 && len(result) > max {
		return &LimitError{What: "result", Len: len(result), Max: max}
	}
	if err := b.checkString("command", cmd); err != nil {
		return err
	}
	for _, line := range result {
		if err := b.checkString("result line", line); err != nil {
			return err
		}
	}
	if result == nil {
		result = []string{}
	}
	return b.push(tale.Run{Cmd: cmd, Result: slices.Clone(result)})
}

// Show records a bare line of output.
func (b *Builder) Show(text string) error {
	if err := b.checkString("text", text); err != nil {
		return err
	}
	return b.push(tale.Show{Text: text})
}

// Cd records a typed "cd dir" followed by the matching prompt change.
func (b *Builder) Cd(dir string) error {
	if err := b.checkString("directory", dir); err != nil {
		return err
	}
	return b.push(
		tale.Run{Cmd: "cd " + dir, Result: []string{}},
		tale.Look{Cwd: tale.Ptr(dir)},
	)
}

// System records a command that is really executed during playback.
func (b *Builder) System(cmd string) error {
	return b.system(nil, cmd)
}

// SystemAs is like [Builder.System], but the audience sees apparent typed
// rather than cmd.
func (b *Builder) SystemAs(apparent, cmd string) error {
	return b.system(&apparent, cmd)
}

func (b *Builder) system(apparent *string, cmd string) error {
	if err := b.writable(); err != nil {
		return err
	}
	if !b.shared.allowSystem {
		return ErrSystemForbidden
	}
	if err := b.checkString("command", cmd); err != nil {
		return err
	}
	if apparent != nil {
		if err := b.checkString("command", *apparent); err != nil {
			return err
		}
	}
	return b.push(tale.System{ApparentCmd: apparent, Cmd: cmd})
}

// Screen records a nested session in the alternate screen. body is called
// with a builder for the screen's contents; if it fails nothing is recorded.
func (b *Builder) Screen(body func(*Builder) error) error {
	return b.screen(nil, body)
}

// ScreenAs is like [Builder.Screen], preceded by apparent typed at the prompt.
func (b *Builder) ScreenAs(apparent string, body func(*Builder) error) error {
	return b.screen(&apparent, body)
}

func (b *Builder) screen(apparent *string, body func(*Builder) error) error {
	if err := b.writable(); err != nil {
		return err
	}
	if b.InScreen() {
		return ErrNestedScreens
	}
	if apparent != nil {
		if err := b.checkString("command", *apparent); err != nil {
			return err
		}
	}

	child := &Builder{shared: b.shared, parent: b}
	b.busy = true
	err := body(child)
	b.busy = false
	child.closed = true
	if err != nil {
		return err
	}
	if child.tale.Depth() != 0 {
		return ErrNestedScreens
	}

	b.tale = append(b.tale, tale.Screen{ApparentCmd: apparent, Tale: slices.Clip(child.tale)})
	return nil
}

// Look records a sparse style change from script-supplied options. Accepted
// keys are cwd, final_prompt, host, speed, title and user.
func (b *Builder) Look(options map[string]any) error {
	if max := b.shared.limits.MaxMapLen; max > 0 && len(options) > max {
		return &LimitError{What: "options", Len: len(options), Max: max}
	}

	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var look tale.Look
	for _, k := range keys {
		v := options[k]
		switch k {
		case "speed":
			f, ok := toFloat(v)
			if !ok {
				return &InvalidFieldError{Field: k, Want: "number", Got: v}
			}
			if f < 0 {
				return fmt.Errorf("%w: speed must not be negative, got %v", ErrInvalidArgument, f)
			}
			look.Speed = &f
		case "final_prompt":
			p, ok := v.(bool)
			if !ok {
				return &InvalidFieldError{Field: k, Want: "bool", Got: v}
			}
			look.FinalPrompt = &p
		case "title", "cwd", "host", "user":
			s, ok := v.(string)
			if !ok {
				return &InvalidFieldError{Field: k, Want: "string", Got: v}
			}
			if err := b.checkString(k, s); err != nil {
				return err
			}
			switch k {
			case "title":
				look.Title = &s
			case "cwd":
				look.Cwd = &s
			case "host":
				look.Host = &s
			case "user":
				look.User = &s
			}
		default:
			return &UnknownFieldError{Field: k, Expected: slices.Clone(lookFields)}
		}
	}

	return b.push(look)
}

// LookWith records l as is.
func (b *Builder) LookWith(l tale.Look) error {
	return b.push(l)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Tag declares a jump target. Names are unique across the root builder and
// all of its screens.
func (b *Builder) Tag(name string) error {
	if err := b.writable(); err != nil {
		return err
	}
	if name == "" || strings.TrimSpace(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidTagName, name)
	}
	if _, ok := reservedTags[name]; ok {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidTagName, name)
	}
	if err := b.checkString("tag", name); err != nil {
		return err
	}
	if _, ok := b.shared.tags[name]; ok {
		return &DuplicateTagError{Name: name}
	}
	b.shared.tags[name] = struct{}{}
	return b.push(tale.Tag{Name: name})
}

// maxSleepMillis is the longest sleep a time.Duration can hold.
const maxSleepMillis = math.MaxInt64 / int64(time.Millisecond)

// Sleep records a pause of ms milliseconds.
func (b *Builder) Sleep(ms int64) error {
	if ms < 0 {
		return fmt.Errorf("%w: sleep duration must not be negative, got %dms", ErrInvalidArgument, ms)
	}
	if ms > maxSleepMillis {
		return fmt.Errorf("%w: sleep duration must be at most %dms, got %dms", ErrInvalidArgument, maxSleepMillis, ms)
	}
	return b.push(tale.Sleep{Duration: time.Duration(ms) * time.Millisecond})
}

// Stop records the end of playback.
func (b *Builder) Stop() error {
	return b.push(tale.Stop{})
}

// Enter records msg typed at the prompt and submitted.
func (b *Builder) Enter(msg string) error {
	if err := b.checkString("message", msg); err != nil {
		return err
	}
	return b.push(tale.Enter{Msg: msg})
}

// Clear records a screen clear.
func (b *Builder) Clear() error {
	return b.push(tale.Clear{})
}

// Build returns the fibs recorded so far.
func (b *Builder) Build() (tale.Tale, error) {
	if b.busy {
		return nil, ErrBuilderInUse
	}
	return slices.Clone(b.tale), nil
}
