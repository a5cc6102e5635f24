package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Mr-Dark-debug/tokenreplay/internal/render"
)

// ────────────────────────────────────────────────────────────
// Color Palette
// ────────────────────────────────────────────────────────────
//
// All colors are defined here. The printer in internal/display uses
// the same hex values for the headless stream.

var (
	colorBgSurface = lipgloss.Color("#1c2128")

	colorText      = lipgloss.Color("#e6edf3")
	colorTextDim   = lipgloss.Color("#8b949e")
	colorTextMuted = lipgloss.Color("#484f58")

	colorBlue   = lipgloss.Color("#58a6ff")
	colorGreen  = lipgloss.Color("#3fb950")
	colorRed    = lipgloss.Color("#f85149")
	colorYellow = lipgloss.Color("#d29922")
	colorPurple = lipgloss.Color("#bc8cff")
	colorCyan   = lipgloss.Color("#76e3ea")

	colorDivider = lipgloss.Color("#30363d")
)

// ────────────────────────────────────────────────────────────
// Component Styles
// ────────────────────────────────────────────────────────────

// Header bar
var (
	headerBarStyle = lipgloss.NewStyle().
			Background(colorBgSurface).
			Foreground(colorText).
			Padding(0, 1)

	headerBrandStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorBlue)

	headerSepStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted)

	headerMetaStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)
)

// Panel chrome
var (
	panelBorder = lipgloss.Border{Top: "─"}

	panelStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(panelBorder, true, false, false, false).
			BorderForeground(colorDivider)

	panelActiveStyle = panelStyle.
				BorderForeground(colorBlue)

	panelTitleStyle = lipgloss.NewStyle().
			Foreground(colorBlue).
			Bold(true)

	panelTitleDimStyle = lipgloss.NewStyle().
				Foreground(colorTextMuted).
				Bold(true)

	emptyStateStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted).
			Padding(1, 2)

	scrollIndicatorStyle = lipgloss.NewStyle().
				Foreground(colorTextDim)
)

// Elements, keyed by render class
var (
	headingStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Bold(true)

	classStyles = map[render.Class]lipgloss.Style{
		render.ClassUserPrompt:        lipgloss.NewStyle().Foreground(colorBlue),
		render.ClassAgentResponse:     lipgloss.NewStyle().Foreground(colorGreen),
		render.ClassSystemPrompt:      lipgloss.NewStyle().Foreground(colorText),
		render.ClassAgentQuery:        lipgloss.NewStyle().Foreground(colorPurple),
		render.ClassDatabaseResponse:  lipgloss.NewStyle().Foreground(colorYellow),
		render.ClassContextToken:      lipgloss.NewStyle().Foreground(colorCyan),
		render.ClassConversationToken: lipgloss.NewStyle().Foreground(colorBlue),
		render.ClassTokenCount:        lipgloss.NewStyle().Foreground(colorText),
	}

	// Labels prefix chat elements; classes without one render bare.
	classLabels = map[render.Class]string{
		render.ClassUserPrompt:        "user",
		render.ClassAgentResponse:     "agent",
		render.ClassContextToken:      "context call",
		render.ClassConversationToken: "conversation call",
	}

	labelStyle = lipgloss.NewStyle().
			Foreground(colorTextDim).
			Bold(true)

	barContextStyle = lipgloss.NewStyle().
			Foreground(colorCyan)

	barConversationStyle = lipgloss.NewStyle().
				Foreground(colorBlue)
)

// Footer / status bar
var (
	footerStyle = lipgloss.NewStyle().
			Background(colorBgSurface)

	statusStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorBgSurface).
			Padding(0, 1)

	statusPlayingStyle = statusStyle.
				Foreground(colorYellow).
				Bold(true)

	statusDoneStyle = statusStyle.
			Foreground(colorGreen).
			Bold(true)

	statusErrorStyle = statusStyle.
				Foreground(colorRed).
				Bold(true)

	hintKeyStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Bold(true)

	hintDescStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted)
)

func classStyle(c render.Class) lipgloss.Style {
	if s, ok := classStyles[c]; ok {
		return s
	}
	return lipgloss.NewStyle().Foreground(colorText)
}
