package playback

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	userHostStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	cwdStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
)

// Style is the fake shell state that prompts and typing are rendered with.
type Style struct {
	// Speed is the mean delay between typed characters, in seconds. Zero
	// types instantly.
	Speed float64
	Cwd   string
	Host  string
	User  string
}

// DefaultStyle returns the style playback starts with unless configured
// otherwise.
func DefaultStyle() Style {
	return Style{
		Speed: 0.040,
		Cwd:   "~",
		Host:  "ubuntu",
		User:  "ubuntu",
	}
}

// PS1 renders the prompt, "user@host:cwd$ ", styled for the terminal.
func (s Style) PS1() string {
	return userHostStyle.Render(s.User+"@"+s.Host) + ":" + cwdStyle.Render(s.Cwd) + "$ "
}
