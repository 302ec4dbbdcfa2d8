// Package theme provides the shared visual design for the terminal front
// ends. All styles use adaptive colors that work on light and dark
// terminals; NO_COLOR is honored by lipgloss's profile detection.
package theme

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#2e7d32", Dark: "#66bb6a"}
	ColorError   = lipgloss.AdaptiveColor{Light: "#c62828", Dark: "#ef5350"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#e65100", Dark: "#ffa726"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#0277bd", Dark: "#4fc3f7"}
	ColorAccent  = lipgloss.AdaptiveColor{Light: "#6a1b9a", Dark: "#ce93d8"}
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#9e9e9e"}

	ColorBorder       = lipgloss.AdaptiveColor{Light: "#bdbdbd", Dark: "#616161"}
	ColorBorderActive = lipgloss.AdaptiveColor{Light: "#1565c0", Dark: "#42a5f5"}

	ColorBgAlt = lipgloss.AdaptiveColor{Light: "#f5f5f5", Dark: "#2d2d2d"}
	ColorFgDim = lipgloss.AdaptiveColor{Light: "#9e9e9e", Dark: "#757575"}
)

// Symbol variables are set by InitSymbols; they fall back to ASCII on
// terminals without UTF-8.
var (
	SymbolSuccess  = "✓"
	SymbolError    = "✗"
	SymbolWarning  = "⚠"
	SymbolSpinner  = "⏳"
	SymbolArrowR   = "→"
	SymbolBullet   = "•"
	SymbolEllipsis = "…"
	SymbolGate     = "⏸"
	SymbolUser     = "You"
	SymbolBot      = "RepoScribe"
)

var (
	Bold = lipgloss.NewStyle().Bold(true)
	Dim  = lipgloss.NewStyle().Faint(true)

	TextSuccess = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	TextError   = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	TextWarning = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	TextInfo    = lipgloss.NewStyle().Foreground(ColorInfo)
	TextMuted   = lipgloss.NewStyle().Foreground(ColorMuted)
)

// Message role labels.
var (
	UserLabel   = lipgloss.NewStyle().Foreground(ColorInfo).Bold(true)
	BotLabel    = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	SystemLabel = lipgloss.NewStyle().Foreground(ColorMuted).Bold(true)
	ErrorLabel  = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	GateLabel   = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	Timestamp   = lipgloss.NewStyle().Foreground(ColorFgDim).Faint(true)
)

// PendingBox frames proposals that wait for the user's confirmation.
var PendingBox = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorWarning).
	Padding(0, 1)

var (
	StatusBar = lipgloss.NewStyle().
			Foreground(ColorFgDim).
			Background(ColorBgAlt).
			Padding(0, 1)

	StatusKey = lipgloss.NewStyle().
			Foreground(ColorInfo).
			Bold(true)

	InputPrompt = lipgloss.NewStyle().
			Foreground(ColorInfo).
			Bold(true)

	InputPlaceholder = lipgloss.NewStyle().
				Foreground(ColorFgDim)
)

// MaxContentWidth is the widest a rendered reply gets.
const MaxContentWidth = 100

// MinSplitWidth is the narrowest terminal that shows the activity pane.
const MinSplitWidth = 100

// Clamp returns v clamped to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
