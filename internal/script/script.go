// Package script runs JavaScript author scripts with goja, recording the
// calls they make on the lie global into a [tale.Tale].
//
// In restricted mode (the default) scripts run under a wall-clock budget with
// a bounded call stack, values passed to lie are size limited, require only
// loads files from the script's directory, and lie.system is refused.
package script

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"

	"github.com/joeycumines/mendax/internal/lie"
	"github.com/joeycumines/mendax/internal/tale"
)

const (
	// DefaultTimeout is the restricted-mode time budget.
	DefaultTimeout = 2 * time.Second
	// MaxCallStackSize is the restricted-mode call depth.
	MaxCallStackSize = 100
)

var (
	// ErrTimeout is the cause of a script interrupted for running past its
	// budget.
	ErrTimeout = errors.New("script exceeded its time budget")

	// ErrOutsideScriptDir is returned by require for files outside the
	// directory of the script being run.
	ErrOutsideScriptDir = errors.New("module is outside the script directory")
)

// Config controls how a script is run.
type Config struct {
	// Unsafe lifts every restriction and permits lie.system.
	Unsafe bool
	// Timeout is the restricted-mode budget. Zero means DefaultTimeout.
	Timeout time.Duration
	// Logger receives console output. Nil means slog.Default().
	Logger *slog.Logger
}

// Error is a failure raised while running a script, located at the script
// position responsible where known.
type Error struct {
	// Pos is "file:line:col", or empty.
	Pos string
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Pos == "" {
		return e.Msg
	}
	return e.Pos + ": " + e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// RecordFile runs the script at path. See [Record].
func RecordFile(ctx context.Context, path string, cfg Config) (tale.Tale, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script %s: %w", path, err)
	}
	return Record(ctx, path, src, cfg)
}

// Record runs src, named name for positions and relative requires, and
// returns the tale it recorded. The script runs to completion on the calling
// goroutine; ctx interrupts it.
func Record(ctx context.Context, name string, src []byte, cfg Config) (_ tale.Tale, err error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("script", name)

	prog, err := goja.Compile(name, string(src), true)
	if err != nil {
		return nil, &Error{Msg: err.Error(), Err: err}
	}

	var opts []lie.Option
	if !cfg.Unsafe {
		opts = append(opts, lie.WithLimits(lie.DefaultLimits()))
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, timeout, ErrTimeout)
		defer cancel()
	}

	r := &run{
		vm:     goja.New(),
		thrown: make(map[*goja.Object]thrownError),
	}
	if !cfg.Unsafe {
		r.vm.SetMaxCallStackSize(MaxCallStackSize)
	}

	var registryOpts []require.Option
	if !cfg.Unsafe {
		root, err := filepath.Abs(filepath.Dir(name))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve script directory: %w", err)
		}
		registryOpts = append(registryOpts, require.WithLoader(dirLoader(root, logger)))
	}
	registry := require.NewRegistry(registryOpts...)
	registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(printer{logger}))
	registry.Enable(r.vm)
	console.Enable(r.vm)

	root := lie.New(cfg.Unsafe, opts...)
	if err := r.vm.Set("lie", (&binding{e: r, b: root}).object()); err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() {
		r.vm.Interrupt(context.Cause(ctx))
	})
	defer stop()

	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("script panicked (fatal error): %v", v)
		}
	}()

	start := time.Now()
	if _, err := r.vm.RunProgram(prog); err != nil {
		return nil, r.wrap(err)
	}

	t, err := root.Build()
	if err != nil {
		return nil, err
	}
	logger.Debug("script: recorded", "fibs", len(t), "elapsed", time.Since(start))
	return t, nil
}

// run is the state of one script execution.
type run struct {
	vm *goja.Runtime
	// thrown maps error objects raised by lie back to their Go errors.
	thrown map[*goja.Object]thrownError
}

type thrownError struct {
	err error
	pos string
}

func (r *run) throw(err error) *goja.Object {
	obj := r.vm.NewGoError(err)
	r.thrown[obj] = thrownError{err: err, pos: position(r.vm.CaptureCallStack(0, nil))}
	return obj
}

func (r *run) wrap(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		cause, ok := interrupted.Value().(error)
		if !ok {
			cause = fmt.Errorf("interrupted: %v", interrupted.Value())
		}
		return &Error{Pos: position(interrupted.Stack()), Msg: cause.Error(), Err: cause}
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		pos := position(ex.Stack())
		if obj, ok := ex.Value().(*goja.Object); ok {
			if t, ok := r.thrown[obj]; ok {
				return &Error{Pos: t.pos, Msg: t.err.Error(), Err: t.err}
			}
		}
		return &Error{Pos: pos, Msg: ex.Value().String(), Err: ex}
	}
	return err
}

// position returns the innermost script location on stack.
func position(stack []goja.StackFrame) string {
	for _, frame := range stack {
		if p := frame.Position(); p.Line > 0 {
			return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
		}
	}
	return ""
}

// dirLoader loads modules from files under root only.
func dirLoader(root string, logger *slog.Logger) require.SourceLoader {
	return func(p string) ([]byte, error) {
		abs, err := filepath.Abs(filepath.FromSlash(p))
		if err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			logger.Debug("script: require refused", "path", abs)
			return nil, fmt.Errorf("%w: %s", ErrOutsideScriptDir, p)
		}
		info, err := os.Stat(abs)
		if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
			return nil, require.ModuleFileDoesNotExistError
		}
		if err != nil {
			return nil, err
		}
		return os.ReadFile(abs)
	}
}

// printer routes console output to the logger.
type printer struct {
	logger *slog.Logger
}

func (p printer) Log(s string)   { p.logger.Info(s, "source", "console") }
func (p printer) Warn(s string)  { p.logger.Warn(s, "source", "console") }
func (p printer) Error(s string) { p.logger.Error(s, "source", "console") }
