package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/Mr-Dark-debug/tokenreplay/internal/render"
	"github.com/Mr-Dark-debug/tokenreplay/pkg/timeutil"
)

// renderHeader produces the top bar:
//
//	TOKENREPLAY │ conversation.json │ 4 turns │ 2 with context │ 1,204 tokens
func renderHeader(m *Model) string {
	sep := headerSepStyle.Render(" │ ")

	parts := []string{headerBrandStyle.Render("TOKENREPLAY")}
	if m.opts.Title != "" {
		parts = append(parts, sep, headerMetaStyle.Render(truncate(m.opts.Title, 40)))
	}
	if m.conv != nil {
		parts = append(parts, sep, headerMetaStyle.Render(
			fmt.Sprintf("%d turns", len(m.conv.Turns))))
		if n := m.conv.ContextTurns(); n > 0 {
			parts = append(parts, sep, headerMetaStyle.Render(
				fmt.Sprintf("%d with context", n)))
		}
	}
	if m.metrics != nil {
		parts = append(parts, sep, headerMetaStyle.Render(
			humanize.Comma(int64(totalTokens(m)))+" tokens"))
	}

	return headerBarStyle.Width(m.width).Render(strings.Join(parts, ""))
}

// totalTokens sums input and output tokens over every recorded call.
func totalTokens(m *Model) int {
	total := 0
	for _, e := range m.metrics.Metrics {
		total += e.ConversationUsage.InputTokens + e.ConversationUsage.OutputTokens
		if e.ContextUsage != nil {
			total += e.ContextUsage.InputTokens + e.ContextUsage.OutputTokens
		}
	}
	return total
}

// renderFooter produces the bottom status bar with keyboard hints.
func renderFooter(m *Model) string {
	left := renderStatus(m)

	var hints []string
	for _, b := range m.keys.hints() {
		if !b.Enabled() || b.Help().Key == "" {
			continue
		}
		hints = append(hints, hintKeyStyle.Render(b.Help().Key)+" "+hintDescStyle.Render(b.Help().Desc))
	}
	right := strings.Join(hints, hintDescStyle.Render("  "))

	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 0)
	return footerStyle.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func renderStatus(m *Model) string {
	switch {
	case m.statusMsg != "" && m.err != nil:
		return statusErrorStyle.Render(m.statusMsg)
	case m.statusMsg != "":
		return statusStyle.Render(m.statusMsg)
	case m.queue == nil:
		return statusStyle.Render("Loading...")
	}

	progress := fmt.Sprintf("%d/%d", m.queue.Position(), m.queue.Total())
	if m.playing() {
		return statusPlayingStyle.Render(fmt.Sprintf("▶ %s / %s  %s",
			timeutil.FormatOffset(m.elapsed), timeutil.FormatOffset(m.end), progress))
	}

	status := statusDoneStyle.Render("✓ done " + timeutil.FormatOffset(m.end))
	if m.metrics != nil {
		status += statusStyle.Render("total " + render.FormatCost(m.metrics.TotalCost))
	}
	if m.failed > 0 {
		status += statusErrorStyle.Render(fmt.Sprintf("%d reveal errors", m.failed))
	}
	return status
}
