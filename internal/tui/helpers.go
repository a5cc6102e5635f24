package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"
)

// ────────────────────────────────────────────────────────────
// String helpers
// ────────────────────────────────────────────────────────────

// truncate cuts a string to maxLen and appends "..." if truncated.
func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// wrapText breaks s into lines no wider than width. Words longer than
// the width are split hard.
func wrapText(s string, width int) []string {
	if width <= 0 {
		return strings.Split(s, "\n")
	}
	return strings.Split(wrap.String(wordwrap.String(s, width), width), "\n")
}

// clamp restricts val to [lo, hi].
func clamp(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}

// ────────────────────────────────────────────────────────────
// Bars
// ────────────────────────────────────────────────────────────

// renderShareBar draws part's share of total as a filled bar followed
// by the percentage.
func renderShareBar(label string, part, total float64, barWidth int, style lipgloss.Style) string {
	if total <= 0 || barWidth <= 0 {
		return ""
	}
	share := part / total
	filled := int(float64(barWidth)*share + 0.5)
	if filled < 1 && part > 0 {
		filled = 1
	}
	filled = clamp(filled, 0, barWidth)

	bar := style.Render(strings.Repeat("█", filled)) +
		hintDescStyle.Render(strings.Repeat("░", barWidth-filled))

	return fmt.Sprintf("%-13s %s %3.0f%%", label, bar, share*100)
}
