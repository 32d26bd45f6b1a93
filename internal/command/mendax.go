package command

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joeycumines/mendax/internal/config"
	"github.com/joeycumines/mendax/internal/logging"
	"github.com/joeycumines/mendax/internal/plan"
	"github.com/joeycumines/mendax/internal/playback"
	"github.com/joeycumines/mendax/internal/script"
	"github.com/joeycumines/mendax/internal/sysexec"
	"github.com/joeycumines/mendax/internal/tale"
	"github.com/joeycumines/mendax/internal/terminal"
)

// Player plays a compiled program. The default drives the process terminal.
type Player func(ctx context.Context, prog *plan.Program, style playback.Style, logger *slog.Logger) error

// MendaxCommand records a script and plays it back.
type MendaxCommand struct {
	*BaseCommand
	initScript bool
	unsafe     bool
	dryRun     bool
	steps      bool
	version    bool
	logPath    string
	logLevel   string

	versionString string
	config        *config.Config
	schema        *config.ConfigSchema
	play          Player
	// ctxFactory creates the execution context. If nil, uses
	// signal.NotifyContext. Tests set this to avoid signal handling races.
	ctxFactory func() (context.Context, context.CancelFunc)
}

// NewMendaxCommand creates the mendax command. A nil cfg is treated as empty.
func NewMendaxCommand(version string, cfg *config.Config) *MendaxCommand {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &MendaxCommand{
		BaseCommand: NewBaseCommand(
			"mendax",
			"Play back a scripted, fake terminal session one keypress at a time",
			"mendax [options] [script]",
		),
		versionString: version,
		config:        cfg,
		schema:        config.DefaultSchema(),
	}
}

// SetupFlags configures the flags for the mendax command.
func (c *MendaxCommand) SetupFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.initScript, "init", false, "Write an example script instead of playing one")
	fs.BoolVar(&c.unsafe, "unsafe", false, "Lift script resource limits and allow lie.system")
	fs.BoolVar(&c.dryRun, "dry-run", false, "Print the recorded actions instead of playing them")
	fs.BoolVar(&c.steps, "steps", false, "Print the compiled playback steps instead of playing them")
	fs.BoolVar(&c.version, "version", false, "Print the version and exit")
	fs.StringVar(&c.logPath, "log-file", "", "Path to log file (JSON output)")
	fs.StringVar(&c.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

// Help returns the text appended to the flag usage message.
func (c *MendaxCommand) Help() string {
	return fmt.Sprintf("The script defaults to %s; NAME is resolved as NAME or NAME%s.\n\n%s",
		c.schema.Resolve(c.config, config.KeyScriptDefault), ScriptExt, c.schema.FormatHelp())
}

// Execute runs the mendax command.
func (c *MendaxCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if c.version {
		_, _ = fmt.Fprintf(stdout, "mendax version %s\n", c.versionString)
		return nil
	}
	if len(args) > 1 {
		return fmt.Errorf("expected at most one script, got %d", len(args))
	}
	name := c.schema.Resolve(c.config, config.KeyScriptDefault)
	if len(args) == 1 {
		name = args[0]
	}

	if c.initScript {
		path := initPath(name)
		if err := writeExample(path); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(stderr, "created example demo in '%s'\ncall `mendax %s` to run it\n", path, name)
		return nil
	}

	var ctx context.Context
	var cancel context.CancelFunc
	if c.ctxFactory != nil {
		ctx, cancel = c.ctxFactory()
	} else {
		ctx, cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	}
	defer cancel()

	lc, err := resolveLogConfig(c.logPath, c.logLevel, c.config)
	if err != nil {
		return err
	}
	logger, err := logging.New(lc)
	if err != nil {
		return err
	}
	defer logger.Close()
	defer reportWarnings(stderr, logger)
	for _, w := range c.config.GetWarnings() {
		logger.Warn("config: " + w)
	}

	path, err := ResolveSource(name)
	if err != nil {
		return err
	}
	timeout, err := c.schema.ResolveDuration(c.config, config.KeySandboxTimeout)
	if err != nil {
		return err
	}
	t, err := script.RecordFile(ctx, path, script.Config{
		Unsafe:  c.unsafe,
		Timeout: timeout,
		Logger:  logger.Logger,
	})
	if err != nil {
		return err
	}

	if c.dryRun {
		_, _ = fmt.Fprintln(stdout, tale.DryRun(t))
		return nil
	}
	prog := plan.Compile(t)
	if c.steps {
		_, _ = fmt.Fprintln(stdout, prog.String())
		return nil
	}

	style, err := c.style()
	if err != nil {
		return err
	}
	play := c.play
	if play == nil {
		play = playStdio
	}
	logger.Info("mendax: playing", "script", path, "steps", len(prog.Steps))
	return play(ctx, prog, style, logger.Logger)
}

// style is the initial playback style, from config over the defaults.
func (c *MendaxCommand) style() (playback.Style, error) {
	speed, err := c.schema.ResolveFloat(c.config, config.KeyStyleSpeed)
	if err != nil {
		return playback.Style{}, err
	}
	if speed < 0 {
		return playback.Style{}, fmt.Errorf("option %s: must not be negative", config.KeyStyleSpeed)
	}
	return playback.Style{
		Speed: speed,
		Cwd:   c.schema.Resolve(c.config, config.KeyStyleCwd),
		Host:  c.schema.Resolve(c.config, config.KeyStyleHost),
		User:  c.schema.Resolve(c.config, config.KeyStyleUser),
	}, nil
}

func playStdio(ctx context.Context, prog *plan.Program, style playback.Style, logger *slog.Logger) error {
	term := terminal.NewStdio()
	keys := playback.NewKeyReader(os.Stdin, term, prog.TagNames())
	defer keys.Close()
	engine := playback.New(
		prog,
		term,
		keys,
		&sysexec.Shell{Logger: logger},
		playback.WithStyle(style),
		playback.WithLogger(logger),
	)
	err := engine.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return playback.ErrInterrupted
	}
	return err
}

// reportWarnings prints warnings kept in memory once the terminal is free
// again. Logs written to a file are left there.
func reportWarnings(w io.Writer, logger *logging.Logger) {
	if logger.Ring == nil {
		return
	}
	for _, e := range logger.Ring.Entries() {
		if e.Level >= slog.LevelWarn {
			_, _ = fmt.Fprintf(w, "%s: %s\n", e.Level, e.Message)
		}
	}
}
