// Package plan flattens a [tale.Tale] into the linear program that playback
// interprets.
package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/joeycumines/mendax/internal/tale"
)

// Program is a compiled tale. It is immutable once returned by [Compile].
type Program struct {
	// Steps is the instruction sequence, addressed by program counter.
	Steps []Step
	// Tags maps each tag name to the index of the step that follows it. An
	// index may equal len(Steps).
	Tags map[string]int
	// FinalPrompt reports whether Steps ends with an idle prompt.
	FinalPrompt bool
	// Systems is the number of [System] steps; their IDs are 0 to Systems-1.
	Systems int
}

// Compile flattens t depth first, left to right.
func Compile(t tale.Tale) *Program {
	c := compiler{
		prog: &Program{
			Tags:        make(map[string]int),
			FinalPrompt: true,
		},
	}
	c.tale(t)
	if c.prog.FinalPrompt {
		c.emit(Ps1{}, ShowCursor{}, Pause{}, Show{})
	}
	return c.prog
}

type compiler struct {
	prog *Program
}

func (c *compiler) emit(steps ...Step) {
	c.prog.Steps = append(c.prog.Steps, steps...)
}

// promptAndType is the template for a command typed at the prompt and
// submitted.
func (c *compiler) promptAndType(cmd string) {
	c.emit(Ps1{}, ShowCursor{}, Pause{}, Type{Text: cmd}, Pause{}, Show{}, HideCursor{})
}

func (c *compiler) tale(t tale.Tale) {
	for _, f := range t {
		c.fib(f)
	}
}

func (c *compiler) fib(f tale.Fib) {
	switch f := f.(type) {
	case tale.Run:
		c.promptAndType(f.Cmd)
		for _, line := range f.Result {
			c.emit(Show{Line: line})
		}
	case tale.Show:
		c.emit(Show{Line: f.Text})
	case tale.System:
		apparent := f.Cmd
		if f.ApparentCmd != nil {
			apparent = *f.ApparentCmd
		}
		c.promptAndType(apparent)
		c.emit(System{ID: c.prog.Systems, Cmd: f.Cmd})
		c.prog.Systems++
	case tale.Screen:
		if f.ApparentCmd != nil {
			c.promptAndType(*f.ApparentCmd)
		}
		c.emit(ScreenOpen{})
		c.tale(f.Tale)
		c.emit(ShowCursor{}, Pause{}, ScreenClose{})
	case tale.Look:
		if f.Title != nil {
			c.emit(SetTitle{Title: *f.Title})
		}
		if f.Cwd != nil {
			c.emit(SetCwd{Cwd: *f.Cwd})
		}
		if f.Host != nil {
			c.emit(SetHost{Host: *f.Host})
		}
		if f.User != nil {
			c.emit(SetUser{User: *f.User})
		}
		if f.Speed != nil {
			c.emit(SetSpeed{Speed: *f.Speed})
		}
		if f.FinalPrompt != nil {
			c.prog.FinalPrompt = *f.FinalPrompt
		}
	case tale.Tag:
		c.prog.Tags[f.Name] = len(c.prog.Steps)
	case tale.Sleep:
		c.emit(Sleep{Duration: f.Duration})
	case tale.Stop:
		c.emit(Stop{})
	case tale.Enter:
		c.emit(Ps1{}, ShowCursor{}, Pause{}, Type{Text: f.Msg}, Pause{}, Show{})
	case tale.Clear:
		c.emit(Clear{})
	default:
		panic(fmt.Sprintf("plan: unexpected fib %T", f))
	}
}

// TagNames returns the tag names, sorted.
func (p *Program) TagNames() []string {
	names := make([]string, 0, len(p.Tags))
	for name := range p.Tags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String renders one step per line, prefixed by its index, with each tag on
// its own line before the step it points at.
func (p *Program) String() string {
	at := make(map[int][]string, len(p.Tags))
	for _, name := range p.TagNames() {
		at[p.Tags[name]] = append(at[p.Tags[name]], name)
	}

	width := len(fmt.Sprint(max(len(p.Steps)-1, 0)))
	var b strings.Builder
	for i := 0; i <= len(p.Steps); i++ {
		for _, name := range at[i] {
			fmt.Fprintf(&b, "%s:\n", name)
		}
		if i < len(p.Steps) {
			fmt.Fprintf(&b, "%*d  %s\n", width, i, p.Steps[i])
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}
