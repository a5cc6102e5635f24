package render

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mr-Dark-debug/tokenreplay/internal/transcript"
)

func TestFormatCost(t *testing.T) {
	cases := []struct {
		cost float64
		want string
	}{
		{1234, "$12.34"},
		{100, "$1.000"},
		{0, "$0.000"},
		{0.5, "$0.005000"},
		{99.996, "$1.000"},
		{999.96, "$10.00"},
		{123456, "$1235"},
		{1234567, "$1.235e+4"},
		{-250, "$-2.500"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatCost(tc.cost), "cost %v", tc.cost)
	}
}

func TestSignificantSmallExponent(t *testing.T) {
	assert.Equal(t, "1.000e-7", significant(decimal.RequireFromString("0.0000001"), 4))
	assert.Equal(t, "0.000001000", significant(decimal.RequireFromString("0.000001"), 4))
}

func TestTokenUsageLines(t *testing.T) {
	el := TokenUsage(transcript.TokenUsage{PromptTokens: 5, InputTokens: 3, OutputTokens: 2}, 100, ClassContextToken)

	assert.Equal(t, ClassContextToken, el.Class)
	assert.Equal(t, []string{
		"Prompt Tokens: 5",
		"API Input Tokens: 3",
		"API Output Tokens: 2",
		"API Cost: $1.000",
	}, el.Lines)
}

func TestTotalCost(t *testing.T) {
	el := TotalCost(&transcript.MetricsRecord{ContextCost: 0, ConversationCost: 1234, TotalCost: 1234})

	assert.Equal(t, "Cumulative API Costs", el.Heading)
	assert.Contains(t, el.Lines, "Conversation API Cost: $12.34")
	assert.Contains(t, el.Lines, "Context API Cost: $0.000")
}

func TestAgentQueryIndentsPayload(t *testing.T) {
	ctx := &transcript.Context{
		ContextType:   transcript.ContextRAG,
		AgentQuery:    json.RawMessage(`{"q":"x"}`),
		QueryResponse: json.RawMessage(`[1]`),
	}

	q, err := AgentQuery(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Agent Query (RAG)", q.Heading)
	assert.Equal(t, []string{"{", `  "q": "x"`, "}"}, q.Lines)

	r, err := DatabaseResponse(ctx)
	require.NoError(t, err)
	assert.Equal(t, ClassDatabaseResponse, r.Class)
	assert.Equal(t, []string{"[", "  1", "]"}, r.Lines)
}

func TestAgentQueryRejectsInvalidPayload(t *testing.T) {
	_, err := AgentQuery(&transcript.Context{AgentQuery: json.RawMessage(`{`)})
	assert.Error(t, err)
}

func TestGroupText(t *testing.T) {
	g := Group()
	g.Add(UserPrompt("a"))
	g.Add(Element{Class: ClassTokenCount, Heading: "h", Lines: []string{"b"}})

	assert.Equal(t, "  a\n  h\n  b", g.Text())
}

func TestSystemPromptMetadata(t *testing.T) {
	el := SystemPrompt(transcript.SystemPrompt{Prompt: "be nice"})
	assert.Equal(t, []string{"be nice"}, el.Lines)

	el = SystemPrompt(transcript.SystemPrompt{Prompt: "be nice", Metadata: json.RawMessage(`{"id":1}`)})
	assert.Equal(t, []string{"be nice", "", "{", `  "id": 1`, "}"}, el.Lines)
}
