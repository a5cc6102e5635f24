// Package transcript holds the recorded conversation and its token/cost
// metrics, the two documents a replay is built from.
//
// Both records are read once per replay and never mutated by the
// scheduler. Index i of MetricsRecord.Metrics describes index i of
// ConversationRecord.Turns.
package transcript

import "encoding/json"

// ============================================================
// Conversation
// ============================================================

// ConversationRecord is the full dialogue: one system prompt followed
// by an ordered list of turns.
type ConversationRecord struct {
	SystemPrompt SystemPrompt `json:"system_prompt"`
	Turns        []Turn       `json:"turns"`
}

// SystemPrompt is the instruction applied to the whole conversation.
// Metadata is kept verbatim (date, customer id, ...).
type SystemPrompt struct {
	Prompt   string          `json:"prompt"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// Turn is one user prompt and the agent's reply, optionally preceded by
// an agent/database context exchange.
type Turn struct {
	UserPrompt    string   `json:"user_prompt"`
	AgentResponse string   `json:"agent_response"`
	Context       *Context `json:"context"`
}

// HasContext reports whether the turn carries a context exchange.
func (t Turn) HasContext() bool {
	return t.Context != nil
}

// Context types recorded by the tokenomics tooling.
const (
	ContextRAG     = "RAG"
	ContextAPICall = "API_CALL"
)

// Context is the query the agent issued to a backing store and the
// response it received. Both payloads are arbitrary JSON.
type Context struct {
	ContextType   string          `json:"context_type,omitempty"`
	AgentQuery    json.RawMessage `json:"agent_query"`
	QueryResponse json.RawMessage `json:"query_response"`
}

// ContextTurns returns how many turns carry a context exchange.
func (c *ConversationRecord) ContextTurns() int {
	n := 0
	for _, t := range c.Turns {
		if t.HasContext() {
			n++
		}
	}
	return n
}

// ============================================================
// Metrics
// ============================================================

// MetricsRecord holds per-turn token usage and aggregate costs.
// Costs are expressed in hundredths of a currency unit.
type MetricsRecord struct {
	SystemTokens     int          `json:"system_tokens"`
	ContextCost      float64      `json:"context_cost"`
	ConversationCost float64      `json:"conversation_cost"`
	TotalCost        float64      `json:"total_cost"`
	Metrics          []TurnMetric `json:"metrics"`
}

// TurnMetric is the usage for a single turn. ContextUsage and
// ContextCost are nil when the turn made no context call.
type TurnMetric struct {
	ContextUsage      *TokenUsage `json:"context_usage"`
	ContextCost       *float64    `json:"context_cost"`
	ConversationUsage TokenUsage  `json:"conversation_usage"`
	ConversationCost  float64     `json:"conversation_cost"`
}

// HasContext reports whether the metric entry records a context call.
func (m TurnMetric) HasContext() bool {
	return m.ContextUsage != nil
}

// TokenUsage counts the tokens of a single API call.
type TokenUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns input plus output tokens.
func (u TokenUsage) Total() int {
	return u.InputTokens + u.OutputTokens
}
