package plan

import (
	"fmt"
	"strconv"
	"time"
)

// Step is one directly executable playback instruction.
type Step interface {
	fmt.Stringer
	step()
}

type (
	// Pause waits for the operator.
	Pause struct{}

	// ShowCursor makes the cursor visible.
	ShowCursor struct{}

	// HideCursor makes the cursor invisible.
	HideCursor struct{}

	// Ps1 renders the prompt for the current style.
	Ps1 struct{}

	// Type fakes typing Text at the current typing speed.
	Type struct {
		Text string
	}

	// Show prints Line followed by a line end.
	Show struct {
		Line string
	}

	// System runs Cmd for real the first time it is reached. ID indexes the
	// output cache and is unique within a [Program].
	System struct {
		ID  int
		Cmd string
	}

	// Sleep blocks for Duration.
	Sleep struct {
		Duration time.Duration
	}

	// Stop ends playback without the final prompt.
	Stop struct{}

	// Clear clears the screen.
	Clear struct{}

	// ScreenOpen switches to the alternate screen.
	ScreenOpen struct{}

	// ScreenClose returns from the alternate screen.
	ScreenClose struct{}

	SetSpeed struct {
		Speed float64
	}

	SetTitle struct {
		Title string
	}

	SetCwd struct {
		Cwd string
	}

	SetHost struct {
		Host string
	}

	SetUser struct {
		User string
	}
)

func (Pause) step()       {}
func (ShowCursor) step()  {}
func (HideCursor) step()  {}
func (Ps1) step()         {}
func (Type) step()        {}
func (Show) step()        {}
func (System) step()      {}
func (Sleep) step()       {}
func (Stop) step()        {}
func (Clear) step()       {}
func (ScreenOpen) step()  {}
func (ScreenClose) step() {}
func (SetSpeed) step()    {}
func (SetTitle) step()    {}
func (SetCwd) step()      {}
func (SetHost) step()     {}
func (SetUser) step()     {}

func (Pause) String() string       { return "pause" }
func (ShowCursor) String() string  { return "show-cursor" }
func (HideCursor) String() string  { return "hide-cursor" }
func (Ps1) String() string         { return "ps1" }
func (s Type) String() string      { return "type " + strconv.Quote(s.Text) }
func (s Show) String() string      { return "show " + strconv.Quote(s.Line) }
func (s System) String() string    { return fmt.Sprintf("system #%d %s", s.ID, strconv.Quote(s.Cmd)) }
func (s Sleep) String() string     { return "sleep " + s.Duration.String() }
func (Stop) String() string        { return "stop" }
func (Clear) String() string       { return "clear" }
func (ScreenOpen) String() string  { return "screen-open" }
func (ScreenClose) String() string { return "screen-close" }
func (s SetSpeed) String() string  { return "set-speed " + strconv.FormatFloat(s.Speed, 'g', -1, 64) }
func (s SetTitle) String() string  { return "set-title " + strconv.Quote(s.Title) }
func (s SetCwd) String() string    { return "set-cwd " + strconv.Quote(s.Cwd) }
func (s SetHost) String() string   { return "set-host " + strconv.Quote(s.Host) }
func (s SetUser) String() string   { return "set-user " + strconv.Quote(s.User) }
