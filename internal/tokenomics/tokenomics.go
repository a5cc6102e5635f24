// Package tokenomics produces the metrics document for a conversation:
// per-turn token usage against a model's context window and the cost
// of every API call the agent made.
//
// Each turn re-sends the system prompt and the whole history. When a
// turn carries a context exchange, the agent first issues its query in
// a separate call, and the query response is then added to the input
// of the reply. Inputs are clipped to the context size.
package tokenomics

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Mr-Dark-debug/tokenreplay/internal/transcript"
	"github.com/Mr-Dark-debug/tokenreplay/pkg/jsonutil"
)

// Encoder counts the tokens in a piece of text.
type Encoder interface {
	Count(text string) int
}

// Pricing describes one model. Costs are in cents per thousand tokens.
type Pricing struct {
	ContextSize int
	InputCost   float64
	OutputCost  float64
}

// Presets are the models the recorded transcripts were priced against.
var Presets = map[string]Pricing{
	"gpt-3.5": {ContextSize: 16000, InputCost: 0.5, OutputCost: 1.5},
	"gpt-4":   {ContextSize: 128000, InputCost: 10.0, OutputCost: 30.0},
}

// PresetNames returns the preset keys in order.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset looks up a model by name.
func Preset(name string) (Pricing, error) {
	p, ok := Presets[name]
	if !ok {
		return Pricing{}, fmt.Errorf("unknown model %q (known: %v)", name, PresetNames())
	}
	return p, nil
}

var thousand = decimal.NewFromInt(1000)

// Cost is the price in cents of one API call.
func (p Pricing) Cost(u transcript.TokenUsage) float64 {
	return p.cost(u).InexactFloat64()
}

func (p Pricing) cost(u transcript.TokenUsage) decimal.Decimal {
	in := decimal.NewFromInt(int64(u.InputTokens)).Mul(decimal.NewFromFloat(p.InputCost))
	out := decimal.NewFromInt(int64(u.OutputTokens)).Mul(decimal.NewFromFloat(p.OutputCost))
	return in.Add(out).Div(thousand)
}

// Compute derives the metrics document for conv.
func Compute(conv *transcript.ConversationRecord, p Pricing, enc Encoder) (*transcript.MetricsRecord, error) {
	if p.ContextSize <= 0 {
		return nil, fmt.Errorf("context size must be positive, got %d", p.ContextSize)
	}

	metadata, err := jsonutil.Spaced(conv.SystemPrompt.Metadata)
	if err != nil {
		return nil, fmt.Errorf("system prompt metadata: %w", err)
	}
	systemTokens := enc.Count(conv.SystemPrompt.Prompt) + enc.Count(metadata)

	out := &transcript.MetricsRecord{
		SystemTokens: systemTokens,
		Metrics:      make([]transcript.TurnMetric, 0, len(conv.Turns)),
	}

	var (
		history          int
		conversationCost decimal.Decimal
		contextCost      decimal.Decimal
	)
	for i, turn := range conv.Turns {
		prompt := enc.Count(turn.UserPrompt)
		response := enc.Count(turn.AgentResponse)
		input := min(p.ContextSize, systemTokens+history+prompt)

		var m transcript.TurnMetric
		if turn.HasContext() {
			query, reply, err := contextTokens(turn.Context, enc)
			if err != nil {
				return nil, fmt.Errorf("turn %d: %w", i, err)
			}
			usage := transcript.TokenUsage{PromptTokens: prompt, InputTokens: input, OutputTokens: query}
			c := p.cost(usage)
			cf := c.InexactFloat64()
			m.ContextUsage, m.ContextCost = &usage, &cf
			contextCost = contextCost.Add(c)

			input = min(p.ContextSize, input+reply)
		}

		m.ConversationUsage = transcript.TokenUsage{PromptTokens: prompt, InputTokens: input, OutputTokens: response}
		c := p.cost(m.ConversationUsage)
		m.ConversationCost = c.InexactFloat64()
		conversationCost = conversationCost.Add(c)

		out.Metrics = append(out.Metrics, m)
		history += prompt + response
	}

	out.ConversationCost = conversationCost.InexactFloat64()
	out.ContextCost = contextCost.InexactFloat64()
	out.TotalCost = conversationCost.Add(contextCost).InexactFloat64()
	return out, nil
}

func contextTokens(ctx *transcript.Context, enc Encoder) (query, reply int, err error) {
	switch ctx.ContextType {
	case transcript.ContextRAG, transcript.ContextAPICall:
	default:
		return 0, 0, fmt.Errorf("unknown context type %q", ctx.ContextType)
	}

	q, err := jsonutil.Spaced(ctx.AgentQuery)
	if err != nil {
		return 0, 0, fmt.Errorf("agent query: %w", err)
	}
	r, err := jsonutil.Spaced(ctx.QueryResponse)
	if err != nil {
		return 0, 0, fmt.Errorf("query response: %w", err)
	}
	return enc.Count(q), enc.Count(r), nil
}
