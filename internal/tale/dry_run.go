package tale

import (
	"fmt"
	"strconv"
	"strings"
)

// DryRun renders t as text, one line per action, with the contents of each
// screen indented one level further than the screen itself. The output is
// deterministic and has no trailing newline.
func DryRun(t Tale) string {
	var b dryRunBuilder
	b.tale(t, 0)
	return b.String()
}

type dryRunBuilder struct {
	strings.Builder
}

func (b *dryRunBuilder) line(depth int, format string, args ...any) {
	if b.Len() != 0 {
		b.WriteByte('\n')
	}
	b.WriteString(strings.Repeat("    ", depth))
	fmt.Fprintf(b, format, args...)
}

func (b *dryRunBuilder) tale(t Tale, depth int) {
	for _, f := range t {
		b.fib(f, depth)
	}
}

func (b *dryRunBuilder) fib(f Fib, depth int) {
	switch f := f.(type) {
	case Run:
		b.line(depth, "$ %s", f.Cmd)
		for _, l := range f.Result {
			b.line(depth, "# %s", l)
		}
	case Show:
		b.line(depth, "# %s", f.Text)
	case System:
		if f.ApparentCmd != nil {
			b.line(depth, "! %s (secretly calls: %s)", *f.ApparentCmd, f.Cmd)
		} else {
			b.line(depth, "! %s", f.Cmd)
		}
	case Screen:
		if f.ApparentCmd != nil {
			b.line(depth, "$ %s", *f.ApparentCmd)
		}
		b.line(depth, "(screen)")
		b.tale(f.Tale, depth+1)
	case Look:
		b.line(depth, "(look: %s)", lookFields(f))
	case Tag:
		b.line(depth, "(tag: %s)", f.Name)
	case Sleep:
		b.line(depth, "(sleep: %dms)", f.Duration.Milliseconds())
	case Stop:
		b.line(depth, "(stop)")
	case Enter:
		b.line(depth, "> %s", f.Msg)
	case Clear:
		b.line(depth, "(clear)")
	default:
		b.line(depth, "(unknown: %T)", f)
	}
}

func lookFields(l Look) string {
	var fields []string
	if l.Speed != nil {
		fields = append(fields, "speed="+strconv.FormatFloat(*l.Speed, 'g', -1, 64))
	}
	if l.Title != nil {
		fields = append(fields, "title="+*l.Title)
	}
	if l.Cwd != nil {
		fields = append(fields, "cwd="+*l.Cwd)
	}
	if l.User != nil {
		fields = append(fields, "user="+*l.User)
	}
	if l.Host != nil {
		fields = append(fields, "host="+*l.Host)
	}
	if l.FinalPrompt != nil {
		fields = append(fields, "final_prompt="+strconv.FormatBool(*l.FinalPrompt))
	}
	return strings.Join(fields, ", ")
}
