// Package analysis inspects a recorded transcript for the places where
// tokens and money go. Everything is plain arithmetic over the metrics
// document; no model is consulted.
//
// Key capabilities:
//   - Token hotspot detection via Z-score analysis
//   - Context growth trend via linear regression over turns
//   - Cost attribution across every API call
package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Mr-Dark-debug/tokenreplay/internal/render"
	"github.com/Mr-Dark-debug/tokenreplay/internal/schedule"
	"github.com/Mr-Dark-debug/tokenreplay/internal/transcript"
	"github.com/Mr-Dark-debug/tokenreplay/pkg/timeutil"
)

// Analyzer examines one transcript.
type Analyzer struct {
	conv    *transcript.ConversationRecord
	metrics *transcript.MetricsRecord

	// contextSize is the model window; zero disables saturation checks.
	contextSize int
	delay       time.Duration
}

// NewAnalyzer creates an analyzer for a conversation and its metrics.
func NewAnalyzer(conv *transcript.ConversationRecord, metrics *transcript.MetricsRecord, contextSize int, delay time.Duration) *Analyzer {
	if delay <= 0 {
		delay = schedule.DefaultDelay
	}
	return &Analyzer{conv: conv, metrics: metrics, contextSize: contextSize, delay: delay}
}

// ============================================================
// Token Hotspot Detection
// ============================================================

// TokenHotspot is a turn with abnormally high token consumption.
type TokenHotspot struct {
	Turn         int     `json:"turn"`
	UserPrompt   string  `json:"user_prompt"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	ZScore       float64 `json:"z_score"`
	Severity     string  `json:"severity"` // "low", "medium", "high"
}

// turnTokens counts every token billed for a turn, both calls included.
func turnTokens(m transcript.TurnMetric) (in, out int) {
	in, out = m.ConversationUsage.InputTokens, m.ConversationUsage.OutputTokens
	if m.ContextUsage != nil {
		in += m.ContextUsage.InputTokens
		out += m.ContextUsage.OutputTokens
	}
	return in, out
}

// DetectTokenHotspots scores each turn's billed tokens against the
// transcript mean. A Z-score above 1.5 is reported; above 2.0 is
// "medium" and above 3.0 "high".
func (a *Analyzer) DetectTokenHotspots() []TokenHotspot {
	entries := a.metrics.Metrics
	if len(entries) < 2 {
		return nil
	}

	totals := make([]float64, len(entries))
	var sum, sumSq float64
	for i, m := range entries {
		in, out := turnTokens(m)
		total := float64(in + out)
		totals[i] = total
		sum += total
		sumSq += total * total
	}

	n := float64(len(entries))
	mean := sum / n
	stddev := math.Sqrt((sumSq / n) - (mean * mean))
	if stddev == 0 {
		return nil
	}

	var hotspots []TokenHotspot
	for i, m := range entries {
		zScore := (totals[i] - mean) / stddev
		if zScore <= 1.5 {
			continue
		}
		severity := "low"
		if zScore > 3.0 {
			severity = "high"
		} else if zScore > 2.0 {
			severity = "medium"
		}

		in, out := turnTokens(m)
		h := TokenHotspot{
			Turn:         i,
			InputTokens:  in,
			OutputTokens: out,
			TotalTokens:  in + out,
			ZScore:       math.Round(zScore*100) / 100,
			Severity:     severity,
		}
		if i < len(a.conv.Turns) {
			h.UserPrompt = a.conv.Turns[i].UserPrompt
		}
		hotspots = append(hotspots, h)
	}

	sort.SliceStable(hotspots, func(i, j int) bool {
		return hotspots[i].ZScore > hotspots[j].ZScore
	})
	return hotspots
}

// ============================================================
// Context Growth Analysis
// ============================================================

// ContextGrowthReport describes how the reply input grows turn by turn.
type ContextGrowthReport struct {
	Turns       int     `json:"turns"`
	ContextSize int     `json:"context_size,omitempty"`
	Slope       float64 `json:"slope"` // input tokens per turn
	Intercept   float64 `json:"intercept"`
	RSquared    float64 `json:"r_squared"`
	// ClippedTurns counts turns whose input hit the context size.
	ClippedTurns int `json:"clipped_turns"`
	// SaturationTurn is the predicted turn at which the input reaches
	// the context size, or -1 if it never does.
	SaturationTurn int  `json:"saturation_turn"`
	IsUnbounded    bool `json:"is_unbounded"`
}

// dataPoint is one observation for the regression: turn index and
// the reply's input tokens.
type dataPoint struct {
	turn   float64
	tokens float64
}

// AnalyzeContextGrowth fits a line through the reply input tokens of
// each turn. History is re-sent every turn, so steady growth is normal;
// it matters when it is about to hit the context size.
func (a *Analyzer) AnalyzeContextGrowth() *ContextGrowthReport {
	entries := a.metrics.Metrics
	report := &ContextGrowthReport{
		Turns:          len(entries),
		ContextSize:    a.contextSize,
		SaturationTurn: -1,
	}
	if len(entries) < 2 {
		return report
	}

	points := make([]dataPoint, len(entries))
	for i, m := range entries {
		input := m.ConversationUsage.InputTokens
		points[i] = dataPoint{turn: float64(i), tokens: float64(input)}
		if a.contextSize > 0 && input >= a.contextSize {
			report.ClippedTurns++
		}
	}

	slope, intercept, rSquared := linearRegression(points)
	report.Slope = math.Round(slope*100) / 100
	report.Intercept = math.Round(intercept*100) / 100
	report.RSquared = math.Round(rSquared*1000) / 1000
	report.IsUnbounded = slope > 0 && rSquared > 0.7

	if a.contextSize > 0 && slope > 0 {
		turn := math.Ceil((float64(a.contextSize) - intercept) / slope)
		report.SaturationTurn = int(math.Max(0, turn))
	}
	return report
}

// linearRegression computes ordinary least squares regression.
// Returns slope (m), intercept (b), and R-squared goodness of fit.
func linearRegression(points []dataPoint) (slope, intercept, rSquared float64) {
	n := float64(len(points))
	if n < 2 {
		return 0, 0, 0
	}

	var sumX, sumY, sumXY, sumX2 float64
	for _, p := range points {
		sumX += p.turn
		sumY += p.tokens
		sumXY += p.turn * p.tokens
		sumX2 += p.turn * p.turn
	}

	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0, sumY / n, 0
	}

	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssRes, ssTot float64
	for _, p := range points {
		predicted := slope*p.turn + intercept
		ssRes += (p.tokens - predicted) * (p.tokens - predicted)
		ssTot += (p.tokens - meanY) * (p.tokens - meanY)
	}

	if ssTot == 0 {
		rSquared = 1.0
	} else {
		rSquared = 1 - ssRes/ssTot
	}
	return slope, intercept, rSquared
}

// ============================================================
// Cost Attribution
// ============================================================

// Call kinds in a cost report.
const (
	CallContext      = "context"
	CallConversation = "conversation"
)

// CostEntry attributes cost to one API call.
type CostEntry struct {
	Turn         int     `json:"turn"`
	Call         string  `json:"call"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost"` // cents
	Percentage   float64 `json:"percentage"`
}

// CostReport summarises cost across the transcript, in cents.
type CostReport struct {
	TotalInputTokens  int         `json:"total_input_tokens"`
	TotalOutputTokens int         `json:"total_output_tokens"`
	ContextCost       float64     `json:"context_cost"`
	ConversationCost  float64     `json:"conversation_cost"`
	TotalCost         float64     `json:"total_cost"`
	Entries           []CostEntry `json:"entries"`
}

// AttributeCosts lists every API call with its share of the total.
func (a *Analyzer) AttributeCosts() *CostReport {
	report := &CostReport{}
	add := func(turn int, call string, u transcript.TokenUsage, cost float64) {
		report.TotalInputTokens += u.InputTokens
		report.TotalOutputTokens += u.OutputTokens
		report.TotalCost += cost
		if call == CallContext {
			report.ContextCost += cost
		} else {
			report.ConversationCost += cost
		}
		report.Entries = append(report.Entries, CostEntry{
			Turn:         turn,
			Call:         call,
			InputTokens:  u.InputTokens,
			OutputTokens: u.OutputTokens,
			Cost:         cost,
		})
	}

	for i, m := range a.metrics.Metrics {
		if m.ContextUsage != nil {
			var cost float64
			if m.ContextCost != nil {
				cost = *m.ContextCost
			}
			add(i, CallContext, *m.ContextUsage, cost)
		}
		add(i, CallConversation, m.ConversationUsage, m.ConversationCost)
	}

	for i := range report.Entries {
		if report.TotalCost > 0 {
			report.Entries[i].Percentage = math.Round(
				report.Entries[i].Cost/report.TotalCost*10000) / 100
		}
	}
	return report
}

// ============================================================
// Full Analysis Report
// ============================================================

// Stats summarises the transcript.
type Stats struct {
	Turns          int           `json:"turns"`
	ContextTurns   int           `json:"context_turns"`
	SystemTokens   int           `json:"system_tokens"`
	ReplayDuration time.Duration `json:"replay_duration"`
}

// AnalysisReport is the complete output of `tokenreplay analyze`.
type AnalysisReport struct {
	Name            string               `json:"name"`
	GeneratedAt     string               `json:"generated_at"`
	Stats           Stats                `json:"stats"`
	TokenHotspots   []TokenHotspot       `json:"token_hotspots"`
	ContextGrowth   *ContextGrowthReport `json:"context_growth"`
	CostAttribution *CostReport          `json:"cost_attribution"`
	Warnings        []string             `json:"warnings"`
}

// FullAnalysis runs every pass and collects warnings.
func (a *Analyzer) FullAnalysis(name string) *AnalysisReport {
	actions := schedule.Schedule(a.conv, a.metrics, nil, schedule.WithDelay(a.delay))

	report := &AnalysisReport{
		Name:        name,
		GeneratedAt: time.Now().Format(time.RFC3339),
		Stats: Stats{
			Turns:          len(a.conv.Turns),
			ContextTurns:   a.conv.ContextTurns(),
			SystemTokens:   a.metrics.SystemTokens,
			ReplayDuration: schedule.End(actions),
		},
		TokenHotspots:   a.DetectTokenHotspots(),
		ContextGrowth:   a.AnalyzeContextGrowth(),
		CostAttribution: a.AttributeCosts(),
	}

	for _, m := range transcript.CheckAlignment(a.conv, a.metrics) {
		report.Warnings = append(report.Warnings, "Documents disagree: "+m.String())
	}

	// Recorded totals should match the per-call sum to the cent.
	if diff := math.Abs(report.CostAttribution.TotalCost - a.metrics.TotalCost); diff > 0.005 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("Recorded total cost %s differs from the per-call sum %s.",
				render.FormatCost(a.metrics.TotalCost), render.FormatCost(report.CostAttribution.TotalCost)))
	}

	if g := report.ContextGrowth; g.ClippedTurns > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("⚠ CONTEXT SATURATED on %d turn(s); history was clipped to %d tokens.",
				g.ClippedTurns, g.ContextSize))
	} else if g.IsUnbounded && g.SaturationTurn >= 0 && g.SaturationTurn < 2*g.Turns {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("⚠ CONTEXT GROWTH of %.1f tokens/turn (R²=%.3f) reaches the window at turn %d.",
				g.Slope, g.RSquared, g.SaturationTurn))
	}

	for _, h := range report.TokenHotspots {
		if h.Severity == "high" {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("⚠ TOKEN HOTSPOT: turn %d consumed %d tokens (Z-score: %.2f).",
					h.Turn, h.TotalTokens, h.ZScore))
		}
	}
	return report
}

// FormatReport renders a report as markdown. Costs are shown in
// dollars the way the replay shows them.
func FormatReport(report *AnalysisReport) string {
	var b strings.Builder

	b.WriteString("# Token Replay Analysis\n\n")
	if report.Name != "" {
		fmt.Fprintf(&b, "**Transcript:** `%s`\n", report.Name)
	}
	fmt.Fprintf(&b, "**Generated:** %s\n\n", report.GeneratedAt)

	s := report.Stats
	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Value |\n")
	b.WriteString("|--------|-------|\n")
	fmt.Fprintf(&b, "| Turns | %d |\n", s.Turns)
	fmt.Fprintf(&b, "| Context Turns | %d |\n", s.ContextTurns)
	fmt.Fprintf(&b, "| System Prompt Tokens | %s |\n", humanize.Comma(int64(s.SystemTokens)))
	if ca := report.CostAttribution; ca != nil {
		fmt.Fprintf(&b, "| Input Tokens | %s |\n", humanize.Comma(int64(ca.TotalInputTokens)))
		fmt.Fprintf(&b, "| Output Tokens | %s |\n", humanize.Comma(int64(ca.TotalOutputTokens)))
	}
	fmt.Fprintf(&b, "| Replay Duration | %s |\n\n", timeutil.FormatDuration(s.ReplayDuration))

	if len(report.TokenHotspots) > 0 {
		b.WriteString("## Token Hotspots\n\n")
		b.WriteString("| Turn | Prompt | Tokens | Z-Score | Severity |\n")
		b.WriteString("|------|--------|--------|---------|----------|\n")
		for _, h := range report.TokenHotspots {
			fmt.Fprintf(&b, "| %d | %s | %s | %.2f | %s |\n",
				h.Turn, cell(h.UserPrompt, 40), humanize.Comma(int64(h.TotalTokens)), h.ZScore, h.Severity)
		}
		b.WriteString("\n")
	}

	if g := report.ContextGrowth; g != nil {
		b.WriteString("## Context Growth\n\n")
		fmt.Fprintf(&b, "- **Growth:** %.2f tokens/turn\n", g.Slope)
		fmt.Fprintf(&b, "- **R² Fit:** %.3f\n", g.RSquared)
		if g.ContextSize > 0 {
			fmt.Fprintf(&b, "- **Context Size:** %s tokens\n", humanize.Comma(int64(g.ContextSize)))
			fmt.Fprintf(&b, "- **Clipped Turns:** %d\n", g.ClippedTurns)
		}
		if g.SaturationTurn >= 0 {
			fmt.Fprintf(&b, "- **Predicted Saturation:** turn %d\n", g.SaturationTurn)
		}
		b.WriteString("\n")
	}

	if ca := report.CostAttribution; ca != nil {
		b.WriteString("## Cost Attribution\n\n")
		fmt.Fprintf(&b, "**Context API Cost:** %s\n", render.FormatCost(ca.ContextCost))
		fmt.Fprintf(&b, "**Conversation API Cost:** %s\n", render.FormatCost(ca.ConversationCost))
		fmt.Fprintf(&b, "**Total API Cost:** %s\n\n", render.FormatCost(ca.TotalCost))
		if len(ca.Entries) > 0 {
			b.WriteString("| Turn | Call | Tokens | Cost | % |\n")
			b.WriteString("|------|------|--------|------|---|\n")
			for _, e := range ca.Entries {
				fmt.Fprintf(&b, "| %d | %s | %s | %s | %.1f%% |\n",
					e.Turn, e.Call, humanize.Comma(int64(e.InputTokens+e.OutputTokens)),
					render.FormatCost(e.Cost), e.Percentage)
			}
		}
		b.WriteString("\n")
	}

	if len(report.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range report.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}

// cell flattens text for a markdown table cell.
func cell(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ReplaceAll(s, "|", `\|`)
	if r := []rune(s); len(r) > width {
		return string(r[:width-1]) + "…"
	}
	return s
}
