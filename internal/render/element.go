// Package render maps transcript payloads onto display elements.
//
// Every function here is pure: it builds an Element from its input
// and touches no display state. Placing an element into a region is
// the display package's job.
package render

import (
	"fmt"
	"strings"

	"github.com/Mr-Dark-debug/tokenreplay/internal/transcript"
	"github.com/Mr-Dark-debug/tokenreplay/pkg/jsonutil"
)

// Class identifies the visual role of an element.
type Class string

const (
	ClassUserPrompt        Class = "user-prompt"
	ClassAgentResponse     Class = "agent-response"
	ClassSystemPrompt      Class = "system-prompt"
	ClassAgentQuery        Class = "agent-query"
	ClassDatabaseResponse  Class = "database-response"
	ClassContextToken      Class = "context-token"
	ClassConversationToken Class = "conversation-token"
	ClassTokenCount        Class = "token-count"
	ClassCountWrapper      Class = "count-wrapper"
)

// Element is a renderable unit. Groups carry Children instead of Lines.
type Element struct {
	Class    Class     `json:"class"`
	Heading  string    `json:"heading,omitempty"`
	Lines    []string  `json:"lines,omitempty"`
	Children []Element `json:"children,omitempty"`
}

// Add appends a child element to a group.
func (e *Element) Add(child Element) {
	e.Children = append(e.Children, child)
}

// Text flattens the element into plain lines, children indented.
func (e Element) Text() string {
	var b strings.Builder
	e.write(&b, "")
	return strings.TrimRight(b.String(), "\n")
}

func (e Element) write(b *strings.Builder, indent string) {
	if e.Heading != "" {
		b.WriteString(indent + e.Heading + "\n")
	}
	for _, l := range e.Lines {
		b.WriteString(indent + l + "\n")
	}
	for _, c := range e.Children {
		c.write(b, indent+"  ")
	}
}

// ────────────────────────────────────────────────────────────
// Conversation region
// ────────────────────────────────────────────────────────────

// UserPrompt renders the user's side of a turn.
func UserPrompt(text string) Element {
	return Element{Class: ClassUserPrompt, Lines: splitLines(text)}
}

// AgentResponse renders the agent's reply.
func AgentResponse(text string) Element {
	return Element{Class: ClassAgentResponse, Lines: splitLines(text)}
}

// ────────────────────────────────────────────────────────────
// Context region
// ────────────────────────────────────────────────────────────

// SystemPrompt renders the system prompt, followed by its metadata
// when the conversation recorded any.
func SystemPrompt(sp transcript.SystemPrompt) Element {
	el := Element{
		Class:   ClassSystemPrompt,
		Heading: "System Prompt",
		Lines:   splitLines(sp.Prompt),
	}
	if !jsonutil.IsNull(sp.Metadata) {
		el.Lines = append(el.Lines, "")
		el.Lines = append(el.Lines, splitLines(jsonutil.PrettyJSON(sp.Metadata))...)
	}
	return el
}

// AgentQuery renders the query an agent sent to its backing store.
func AgentQuery(ctx *transcript.Context) (Element, error) {
	body, err := jsonutil.Indent(ctx.AgentQuery)
	if err != nil {
		return Element{}, fmt.Errorf("rendering agent query: %w", err)
	}
	return Element{
		Class:   ClassAgentQuery,
		Heading: contextHeading("Agent Query", ctx.ContextType),
		Lines:   splitLines(body),
	}, nil
}

// DatabaseResponse renders what the backing store answered.
func DatabaseResponse(ctx *transcript.Context) (Element, error) {
	body, err := jsonutil.Indent(ctx.QueryResponse)
	if err != nil {
		return Element{}, fmt.Errorf("rendering query response: %w", err)
	}
	return Element{
		Class:   ClassDatabaseResponse,
		Heading: contextHeading("Database Response", ctx.ContextType),
		Lines:   splitLines(body),
	}, nil
}

func contextHeading(label, contextType string) string {
	if contextType == "" {
		return label
	}
	return fmt.Sprintf("%s (%s)", label, contextType)
}

// ────────────────────────────────────────────────────────────
// Metrics region
// ────────────────────────────────────────────────────────────

// TokenHeader is the first element of the metrics region.
func TokenHeader(systemTokens int) Element {
	return Element{
		Class:   ClassTokenCount,
		Heading: "Token Metrics",
		Lines:   []string{fmt.Sprintf("System Prompt Tokens: %d", systemTokens)},
	}
}

// TokenUsage renders the usage and cost of one API call. class is
// ClassContextToken or ClassConversationToken.
func TokenUsage(usage transcript.TokenUsage, cost float64, class Class) Element {
	return Element{
		Class: class,
		Lines: []string{
			fmt.Sprintf("Prompt Tokens: %d", usage.PromptTokens),
			fmt.Sprintf("API Input Tokens: %d", usage.InputTokens),
			fmt.Sprintf("API Output Tokens: %d", usage.OutputTokens),
			"API Cost: " + FormatCost(cost),
		},
	}
}

// Group returns an empty per-turn wrapper for token usage elements.
func Group() Element {
	return Element{Class: ClassCountWrapper}
}

// TotalCost renders the cumulative cost summary.
func TotalCost(m *transcript.MetricsRecord) Element {
	return Element{
		Class:   ClassTokenCount,
		Heading: "Cumulative API Costs",
		Lines: []string{
			"Context API Cost: " + FormatCost(m.ContextCost),
			"Conversation API Cost: " + FormatCost(m.ConversationCost),
			"Total API Cost: " + FormatCost(m.TotalCost),
		},
	}
}

func splitLines(s string) []string {
	return strings.Split(s, "\n")
}
