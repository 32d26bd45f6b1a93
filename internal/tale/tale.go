// Package tale describes a fake terminal session as a tree of actions.
//
// A [Tale] is the recorded, immutable result of running an author script.
// Each element is a [Fib]: one fake thing that happens on screen. Nothing in
// this package has behavior beyond structural comparison and the dry-run
// rendering in [DryRun].
package tale

import "time"

// Fib is one authored fake-terminal event. The concrete types are [Run],
// [Show], [System], [Screen], [Look], [Tag], [Sleep], [Stop], [Enter] and
// [Clear].
type Fib interface {
	fib()
}

// Tale is an ordered list of fibs.
type Tale []Fib

// Run is a fake typed command with canned output.
type Run struct {
	Cmd    string
	Result []string
}

// Show is a bare output line, printed without a prompt.
type Show struct {
	Text string
}

// System is a fake typed command whose output comes from really running Cmd.
// ApparentCmd, when set, is what the audience sees typed instead.
type System struct {
	ApparentCmd *string
	Cmd         string
}

// Screen is a nested sub-session shown in the alternate screen buffer.
// A Screen never contains another Screen.
type Screen struct {
	ApparentCmd *string
	Tale        Tale
}

// Look is a sparse style mutation; nil fields are left unchanged.
type Look struct {
	Speed       *float64
	Title       *string
	Cwd         *string
	Host        *string
	User        *string
	FinalPrompt *bool
}

// Tag declares a named jump target at this point of the session.
type Tag struct {
	Name string
}

// Sleep pauses playback for a fixed duration.
type Sleep struct {
	Duration time.Duration
}

// Stop ends playback early, without the trailing idle prompt.
type Stop struct{}

// Enter types a literal message at the prompt and submits it.
type Enter struct {
	Msg string
}

// Clear clears the screen.
type Clear struct{}

func (Run) fib()    {}
func (Show) fib()   {}
func (System) fib() {}
func (Screen) fib() {}
func (Look) fib()   {}
func (Tag) fib()    {}
func (Sleep) fib()  {}
func (Stop) fib()   {}
func (Enter) fib()  {}
func (Clear) fib()  {}

// Depth returns the screen nesting depth of t: 0 for a tale without screens.
func (t Tale) Depth() int {
	depth := 0
	for _, f := range t {
		if s, ok := f.(Screen); ok {
			if d := 1 + s.Tale.Depth(); d > depth {
				depth = d
			}
		}
	}
	return depth
}

// Ptr returns a pointer to v. Handy for the optional fields of [Look],
// [System] and [Screen].
func Ptr[T any](v T) *T {
	return &v
}
