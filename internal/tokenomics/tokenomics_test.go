package tokenomics

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mr-Dark-debug/tokenreplay/internal/transcript"
)

// words counts whitespace separated fields, which keeps expected
// values easy to derive by hand.
type words struct{}

func (words) Count(text string) int { return len(strings.Fields(text)) }

var testPricing = Pricing{ContextSize: 100, InputCost: 1, OutputCost: 2}

func sample() *transcript.ConversationRecord {
	return &transcript.ConversationRecord{
		SystemPrompt: transcript.SystemPrompt{
			Prompt:   "You are helpful",
			Metadata: json.RawMessage(`{"id":7}`),
		},
		Turns: []transcript.Turn{
			{UserPrompt: "hi there", AgentResponse: "hello friend today"},
			{
				UserPrompt:    "what is up",
				AgentResponse: "nothing",
				Context: &transcript.Context{
					ContextType:   transcript.ContextRAG,
					AgentQuery:    json.RawMessage(`{"q":"x"}`),
					QueryResponse: json.RawMessage(`["a","b","c"]`),
				},
			},
		},
	}
}

func TestCompute(t *testing.T) {
	m, err := Compute(sample(), testPricing, words{})
	require.NoError(t, err)

	// "You are helpful" + `{"id": 7}`
	assert.Equal(t, 5, m.SystemTokens)
	require.Len(t, m.Metrics, 2)

	first := m.Metrics[0]
	assert.False(t, first.HasContext())
	assert.Equal(t, transcript.TokenUsage{PromptTokens: 2, InputTokens: 7, OutputTokens: 3}, first.ConversationUsage)
	assert.InDelta(t, 0.013, first.ConversationCost, 1e-12)

	second := m.Metrics[1]
	require.True(t, second.HasContext())
	assert.Equal(t, transcript.TokenUsage{PromptTokens: 3, InputTokens: 13, OutputTokens: 2}, *second.ContextUsage)
	assert.InDelta(t, 0.017, *second.ContextCost, 1e-12)
	assert.Equal(t, transcript.TokenUsage{PromptTokens: 3, InputTokens: 16, OutputTokens: 1}, second.ConversationUsage)
	assert.InDelta(t, 0.018, second.ConversationCost, 1e-12)

	assert.InDelta(t, 0.031, m.ConversationCost, 1e-12)
	assert.InDelta(t, 0.017, m.ContextCost, 1e-12)
	assert.InDelta(t, 0.048, m.TotalCost, 1e-12)

	assert.Empty(t, transcript.CheckAlignment(sample(), m))
}

func TestComputeClipsToContextSize(t *testing.T) {
	p := Pricing{ContextSize: 6, InputCost: 1, OutputCost: 1}
	m, err := Compute(sample(), p, words{})
	require.NoError(t, err)

	assert.Equal(t, 6, m.Metrics[0].ConversationUsage.InputTokens)
	assert.Equal(t, 6, m.Metrics[1].ContextUsage.InputTokens)
	assert.Equal(t, 6, m.Metrics[1].ConversationUsage.InputTokens)
}

func TestComputeEmptyConversation(t *testing.T) {
	conv := &transcript.ConversationRecord{SystemPrompt: transcript.SystemPrompt{Prompt: "sys"}}
	m, err := Compute(conv, testPricing, words{})
	require.NoError(t, err)
	assert.Equal(t, 2, m.SystemTokens, "missing metadata counts as null")
	assert.Empty(t, m.Metrics)
	assert.Zero(t, m.TotalCost)
}

func TestComputeRejectsUnknownContextType(t *testing.T) {
	conv := sample()
	conv.Turns[1].Context.ContextType = "SEARCH"
	_, err := Compute(conv, testPricing, words{})
	assert.ErrorContains(t, err, "turn 1")
}

func TestComputeRejectsBadMetadata(t *testing.T) {
	conv := sample()
	conv.SystemPrompt.Metadata = json.RawMessage(`{`)
	_, err := Compute(conv, testPricing, words{})
	assert.Error(t, err)
}

func TestComputeRejectsZeroContext(t *testing.T) {
	_, err := Compute(sample(), Pricing{}, words{})
	assert.Error(t, err)
}

// Non-ASCII payload text is counted in its escaped form.
func TestComputeCountsEscapedPayloads(t *testing.T) {
	conv := &transcript.ConversationRecord{
		SystemPrompt: transcript.SystemPrompt{Metadata: json.RawMessage(`{"q":"café"}`)},
		Turns: []transcript.Turn{{
			UserPrompt: "abcd",
			Context: &transcript.Context{
				ContextType:   transcript.ContextAPICall,
				AgentQuery:    json.RawMessage(`"€€€"`),
				QueryResponse: json.RawMessage(`"ok"`),
			},
		}},
	}
	m, err := Compute(conv, testPricing, Estimate{})
	require.NoError(t, err)

	// `{"q": "caf\u00e9"}` is 18 bytes.
	assert.Equal(t, 5, m.SystemTokens)
	require.Len(t, m.Metrics, 1)
	// `"\u20ac\u20ac\u20ac"` is 20 bytes.
	assert.Equal(t, 5, m.Metrics[0].ContextUsage.OutputTokens)
}

func TestPreset(t *testing.T) {
	p, err := Preset("gpt-4")
	require.NoError(t, err)
	assert.Equal(t, 128000, p.ContextSize)

	_, err = Preset("gpt-9")
	assert.Error(t, err)
	assert.Equal(t, []string{"gpt-3.5", "gpt-4"}, PresetNames())
}

func TestEstimate(t *testing.T) {
	var e Estimate
	assert.Equal(t, 0, e.Count(""))
	assert.Equal(t, 1, e.Count("abcd"))
	assert.Equal(t, 2, e.Count("abcde"))
}
