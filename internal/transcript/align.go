package transcript

import "fmt"

// Mismatch describes one place where the two documents disagree about
// the shape of the conversation. Mismatches never stop a replay; the
// scheduler renders whichever half is present.
type Mismatch struct {
	Turn   int
	Reason string
}

func (m Mismatch) String() string {
	if m.Turn < 0 {
		return m.Reason
	}
	return fmt.Sprintf("turn %d: %s", m.Turn, m.Reason)
}

// CheckAlignment compares a conversation with its metrics and reports
// every structural disagreement. Besides differing lengths and turns
// whose context presence does not match context_usage presence, it
// flags metric entries with context_usage but no context_cost, whose
// cost is rendered as zero.
func CheckAlignment(conv *ConversationRecord, metrics *MetricsRecord) []Mismatch {
	var out []Mismatch

	nTurns, nMetrics := len(conv.Turns), len(metrics.Metrics)
	if nTurns != nMetrics {
		out = append(out, Mismatch{
			Turn:   -1,
			Reason: fmt.Sprintf("%d turns but %d metric entries", nTurns, nMetrics),
		})
	}

	n := min(nTurns, nMetrics)
	for i := 0; i < n; i++ {
		hasCtx := conv.Turns[i].HasContext()
		hasUsage := metrics.Metrics[i].HasContext()
		switch {
		case hasCtx && !hasUsage:
			out = append(out, Mismatch{Turn: i, Reason: "context present but context_usage missing"})
		case !hasCtx && hasUsage:
			out = append(out, Mismatch{Turn: i, Reason: "context_usage present but context missing"})
		}
	}

	for i, m := range metrics.Metrics {
		if m.HasContext() && m.ContextCost == nil {
			out = append(out, Mismatch{Turn: i, Reason: "context_usage present but context_cost missing, shown as zero"})
		}
	}
	return out
}
