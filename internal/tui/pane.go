package tui

import (
	"fmt"
	"strings"

	"github.com/Mr-Dark-debug/tokenreplay/internal/display"
	"github.com/Mr-Dark-debug/tokenreplay/internal/render"
)

var paneTitles = [...]string{
	display.Conversation: "Conversation",
	display.Context:      "Context",
	display.Metrics:      "Token Metrics",
}

// Panels carry a one-line top border and one column of padding per side.
func contentSize(width, height int) (w, h int) {
	return max(width-2, 1), max(height-1, 1)
}

// renderPanel renders region r at the size the layout assigns it.
func renderPanel(m *Model, r display.Region) string {
	width, height := m.paneSize(r)
	w, h := contentSize(width, height)

	lines := paneLines(m, r, w)
	body := h - 1 // title
	off := clamp(m.scroll[r], 0, max(len(lines)-body, 0))
	if len(lines) > body {
		end := len(lines) - off
		lines = lines[end-body : end]
	}

	titleStyle := panelTitleDimStyle
	style := panelStyle
	if m.focus == r {
		titleStyle = panelTitleStyle
		style = panelActiveStyle
	}
	title := titleStyle.Render(paneTitles[r])
	if off > 0 {
		title += scrollIndicatorStyle.Render(fmt.Sprintf("  ↓ %d more", off))
	}

	content := title + "\n" + strings.Join(lines, "\n")
	return style.Width(width).Height(h).Render(content)
}

// maxScroll is the largest useful scroll offset for region r.
func maxScroll(m *Model, r display.Region) int {
	width, height := m.paneSize(r)
	w, h := contentSize(width, height)
	return max(len(paneLines(m, r, w))-(h-1), 0)
}

// paneLines renders the body of region r, wrapped to width.
func paneLines(m *Model, r display.Region, width int) []string {
	if !m.board.Visible(r) {
		msg := "Hidden until the replay reaches it."
		if m.queue == nil {
			msg = "Waiting for replay..."
		}
		return strings.Split(emptyStateStyle.Render(msg), "\n")
	}

	var lines []string
	elements := m.board.Elements(r)
	for i, el := range elements {
		if i > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, renderElement(el, width)...)
	}

	if r == display.Metrics && m.queue != nil && m.queue.Done() && m.metrics != nil {
		lines = append(lines, costShare(m, width)...)
	}
	return lines
}

// renderElement lays out one element. Labelled elements get a label
// line with their content indented below it; group children are
// indented under their parent.
func renderElement(el render.Element, width int) []string {
	var lines []string
	indent := ""
	if label, ok := classLabels[el.Class]; ok {
		lines = append(lines, labelStyle.Render(label))
		indent = "  "
	}
	if el.Heading != "" {
		lines = append(lines, indent+headingStyle.Render(truncate(el.Heading, width-len(indent))))
	}

	style := classStyle(el.Class)
	for _, l := range el.Lines {
		for _, w := range wrapText(l, width-len(indent)) {
			lines = append(lines, indent+style.Render(w))
		}
	}
	for _, c := range el.Children {
		for _, cl := range renderElement(c, width-2) {
			lines = append(lines, "  "+cl)
		}
	}
	return lines
}

// costShare splits the total cost between context and conversation
// calls once the summary is on screen.
func costShare(m *Model, width int) []string {
	total := m.metrics.ContextCost + m.metrics.ConversationCost
	if total <= 0 {
		return nil
	}
	barWidth := clamp(width-20, 4, 40)
	return []string{
		"",
		renderShareBar("context", m.metrics.ContextCost, total, barWidth, barContextStyle),
		renderShareBar("conversation", m.metrics.ConversationCost, total, barWidth, barConversationStyle),
	}
}
