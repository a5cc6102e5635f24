package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/Mr-Dark-debug/tokenreplay/internal/render"
)

// Printer is a Controller that streams every transition to a writer.
// It keeps no element state; the output is the record.
type Printer struct {
	mu    sync.Mutex
	w     io.Writer
	width int
	err   error
}

var (
	printRegionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#58a6ff"))
	printHeadStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#e6edf3"))
	printDimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8b949e"))

	printClassStyles = map[render.Class]lipgloss.Style{
		render.ClassUserPrompt:        lipgloss.NewStyle().Foreground(lipgloss.Color("#58a6ff")),
		render.ClassAgentResponse:     lipgloss.NewStyle().Foreground(lipgloss.Color("#3fb950")),
		render.ClassSystemPrompt:      lipgloss.NewStyle().Foreground(lipgloss.Color("#e6edf3")),
		render.ClassAgentQuery:        lipgloss.NewStyle().Foreground(lipgloss.Color("#bc8cff")),
		render.ClassDatabaseResponse:  lipgloss.NewStyle().Foreground(lipgloss.Color("#d29922")),
		render.ClassContextToken:      lipgloss.NewStyle().Foreground(lipgloss.Color("#76e3ea")),
		render.ClassConversationToken: lipgloss.NewStyle().Foreground(lipgloss.Color("#58a6ff")),
		render.ClassTokenCount:        lipgloss.NewStyle().Foreground(lipgloss.Color("#e6edf3")),
	}

	printLabels = map[render.Class]string{
		render.ClassUserPrompt:        "user",
		render.ClassAgentResponse:     "agent",
		render.ClassAgentQuery:        "query",
		render.ClassDatabaseResponse:  "db",
		render.ClassContextToken:      "context",
		render.ClassConversationToken: "conversation",
	}
)

// NewPrinter writes to w, wrapping text at width columns (0 disables
// wrapping).
func NewPrinter(w io.Writer, width int) *Printer {
	return &Printer{w: w, width: width}
}

// Err returns the first write error, if any.
func (p *Printer) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Printer) Reset(r Region) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printf("\n%s\n", printRegionStyle.Render(fmt.Sprintf("── %s ──", r)))
}

func (p *Printer) Clear(r Region) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printf("%s\n", printDimStyle.Render(fmt.Sprintf("(%s cleared)", r)))
}

func (p *Printer) Append(r Region, el render.Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printf("%s\n", p.format(r, el, ""))
}

func (p *Printer) format(r Region, el render.Element, indent string) string {
	var lines []string

	style, ok := printClassStyles[el.Class]
	if !ok {
		style = lipgloss.NewStyle()
	}
	prefix := printDimStyle.Render(fmt.Sprintf("[%s]", r)) + " "
	if label, ok := printLabels[el.Class]; ok {
		prefix += printDimStyle.Render(label+":") + " "
	}

	if el.Heading != "" {
		lines = append(lines, indent+prefix+printHeadStyle.Render(el.Heading))
		prefix = strings.Repeat(" ", lipgloss.Width(prefix))
	}
	for _, l := range el.Lines {
		if p.width > 0 {
			l = wordwrap.String(l, p.width)
		}
		for _, wrapped := range strings.Split(l, "\n") {
			lines = append(lines, indent+prefix+style.Render(wrapped))
			prefix = strings.Repeat(" ", lipgloss.Width(prefix))
		}
	}
	for _, c := range el.Children {
		lines = append(lines, p.format(r, c, indent+"  "))
	}
	return strings.Join(lines, "\n")
}

func (p *Printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	if _, err := fmt.Fprintf(p.w, format, args...); err != nil {
		p.err = fmt.Errorf("writing replay output: %w", err)
	}
}
