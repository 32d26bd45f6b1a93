package script

import (
	"errors"

	"github.com/dop251/goja"

	"github.com/joeycumines/mendax/internal/lie"
)

// binding exposes one [lie.Builder] to JavaScript.
type binding struct {
	e *run
	b *lie.Builder
}

// object returns the JavaScript value scripts see as lie.
func (l *binding) object() *goja.Object {
	o := l.e.vm.NewObject()
	for name, fn := range map[string]func(goja.FunctionCall) goja.Value{
		"run":    l.run,
		"show":   l.show,
		"cd":     l.cd,
		"system": l.system,
		"screen": l.screen,
		"look":   l.look,
		"tag":    l.tag,
		"sleep":  l.sleep,
		"stop":   l.stop,
		"enter":  l.enter,
		"clear":  l.clear,
	} {
		_ = o.Set(name, fn)
	}
	return o
}

// run: run(cmd), run(cmd, line) or run(cmd, [lines]).
func (l *binding) run(call goja.FunctionCall) goja.Value {
	l.arity(call, "run", 1, 2)
	cmd := l.str(call, 0, "run", "cmd")
	if len(call.Arguments) == 1 {
		return l.check(l.b.Run(cmd))
	}
	switch v := call.Argument(1).Export().(type) {
	case string:
		return l.check(l.b.Run(cmd, v))
	case []any:
		lines := make([]string, len(v))
		for i, x := range v {
			s, ok := x.(string)
			if !ok {
				panic(l.e.vm.NewTypeError("lie.run: result[%d] must be a string, got %v", i, x))
			}
			lines[i] = s
		}
		return l.check(l.b.Run(cmd, lines...))
	default:
		panic(l.e.vm.NewTypeError("lie.run: result must be a string or an array of strings, got %s", call.Argument(1).String()))
	}
}

func (l *binding) show(call goja.FunctionCall) goja.Value {
	l.arity(call, "show", 1, 1)
	return l.check(l.b.Show(l.str(call, 0, "show", "text")))
}

func (l *binding) cd(call goja.FunctionCall) goja.Value {
	l.arity(call, "cd", 1, 1)
	return l.check(l.b.Cd(l.str(call, 0, "cd", "dir")))
}

// system: system(cmd) or system(apparent, cmd).
func (l *binding) system(call goja.FunctionCall) goja.Value {
	l.arity(call, "system", 1, 2)
	if len(call.Arguments) == 1 {
		return l.check(l.b.System(l.str(call, 0, "system", "cmd")))
	}
	apparent := l.str(call, 0, "system", "apparent")
	return l.check(l.b.SystemAs(apparent, l.str(call, 1, "system", "cmd")))
}

// screen: screen(fn) or screen(apparent, fn). fn is called with the lie for
// the screen's contents.
func (l *binding) screen(call goja.FunctionCall) goja.Value {
	l.arity(call, "screen", 1, 2)
	last := len(call.Arguments) - 1
	fn, ok := goja.AssertFunction(call.Argument(last))
	if !ok {
		panic(l.e.vm.NewTypeError("lie.screen: body must be a function, got %s", call.Argument(last).String()))
	}
	body := func(child *lie.Builder) error {
		inner := &binding{e: l.e, b: child}
		_, err := fn(goja.Undefined(), inner.object())
		return err
	}
	if last == 0 {
		return l.check(l.b.Screen(body))
	}
	return l.check(l.b.ScreenAs(l.str(call, 0, "screen", "apparent"), body))
}

func (l *binding) look(call goja.FunctionCall) goja.Value {
	l.arity(call, "look", 1, 1)
	options, ok := call.Argument(0).Export().(map[string]any)
	if !ok {
		panic(l.e.vm.NewTypeError("lie.look: options must be an object, got %s", call.Argument(0).String()))
	}
	return l.check(l.b.Look(options))
}

func (l *binding) tag(call goja.FunctionCall) goja.Value {
	l.arity(call, "tag", 1, 1)
	return l.check(l.b.Tag(l.str(call, 0, "tag", "name")))
}

func (l *binding) sleep(call goja.FunctionCall) goja.Value {
	l.arity(call, "sleep", 1, 1)
	switch call.Argument(0).Export().(type) {
	case int64, float64:
	default:
		panic(l.e.vm.NewTypeError("lie.sleep: ms must be a number, got %s", call.Argument(0).String()))
	}
	return l.check(l.b.Sleep(call.Argument(0).ToInteger()))
}

func (l *binding) stop(call goja.FunctionCall) goja.Value {
	l.arity(call, "stop", 0, 0)
	return l.check(l.b.Stop())
}

func (l *binding) enter(call goja.FunctionCall) goja.Value {
	l.arity(call, "enter", 1, 1)
	return l.check(l.b.Enter(l.str(call, 0, "enter", "msg")))
}

func (l *binding) clear(call goja.FunctionCall) goja.Value {
	l.arity(call, "clear", 0, 0)
	return l.check(l.b.Clear())
}

func (l *binding) arity(call goja.FunctionCall, fn string, lo, hi int) {
	n := len(call.Arguments)
	if n >= lo && n <= hi {
		return
	}
	if lo == hi {
		panic(l.e.vm.NewTypeError("lie.%s: expected %d argument(s), got %d", fn, lo, n))
	}
	panic(l.e.vm.NewTypeError("lie.%s: expected %d to %d arguments, got %d", fn, lo, hi, n))
}

func (l *binding) str(call goja.FunctionCall, i int, fn, name string) string {
	s, ok := call.Argument(i).Export().(string)
	if !ok {
		panic(l.e.vm.NewTypeError("lie.%s: %s must be a string, got %s", fn, name, call.Argument(i).String()))
	}
	return s
}

// check throws err into the script. Exceptions raised by a screen body are
// rethrown as they are, and an interrupt is re-armed so it stays uncatchable.
func (l *binding) check(err error) goja.Value {
	if err == nil {
		return goja.Undefined()
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		l.e.vm.Interrupt(interrupted.Value())
		return goja.Undefined()
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		panic(ex)
	}
	panic(l.e.throw(err))
}
