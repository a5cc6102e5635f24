// Package schedule turns a conversation and its metrics into a timed,
// ordered list of reveal actions, and executes such lists.
//
// Schedule is pure: it computes every action and its due time up front
// and performs no display work until an action runs. Execution happens
// either through Run (headless, wall clock) or through a Queue driven
// by an event loop such as the TUI.
package schedule

import (
	"time"

	"github.com/Mr-Dark-debug/tokenreplay/internal/display"
	"github.com/Mr-Dark-debug/tokenreplay/internal/render"
	"github.com/Mr-Dark-debug/tokenreplay/internal/transcript"
)

// DefaultDelay is the spacing between consecutive reveals.
const DefaultDelay = 100 * time.Millisecond

// Kind says what an action reveals.
type Kind int

const (
	UserPrompt Kind = iota
	AgentResponse
	ContextRegion
	AgentQuery
	DatabaseResponse
	MetricsRegion
	ContextTokens
	ConversationTokens
	TotalCost
)

var kindNames = [...]string{
	UserPrompt:         "user-prompt",
	AgentResponse:      "agent-response",
	ContextRegion:      "context-region",
	AgentQuery:         "agent-query",
	DatabaseResponse:   "database-response",
	MetricsRegion:      "metrics-region",
	ContextTokens:      "context-tokens",
	ConversationTokens: "conversation-tokens",
	TotalCost:          "total-cost",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Action is one scheduled reveal. DueAt is relative to the start of
// the replay. Effect performs the reveal; an error marks a rendering
// defect for this action only.
type Action struct {
	DueAt  time.Duration
	Kind   Kind
	Region display.Region
	Turn   int
	Effect func() error
}

// Option configures Schedule.
type Option func(*options)

type options struct {
	delay time.Duration
}

// WithDelay sets the spacing between consecutive reveals.
func WithDelay(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.delay = d
		}
	}
}

// Schedule computes the full reveal plan for one replay. Actions come
// back in canonical order with non-decreasing DueAt:
//
//	conversation   prompt at t, response at t+Δ, per turn
//	context        region reset, then query/response per context turn
//	metrics        region reset, then per entry context and
//	               conversation usage
//	total          cumulative cost summary
//
// Clearing the conversation region is not part of the plan; drivers do
// it synchronously when a replay begins (see Begin).
func Schedule(conv *transcript.ConversationRecord, metrics *transcript.MetricsRecord, ctrl display.Controller, opts ...Option) []Action {
	o := options{delay: DefaultDelay}
	for _, opt := range opts {
		opt(&o)
	}
	p := &planner{ctrl: ctrl, delay: o.delay}

	p.conversation(conv.Turns)
	p.context(conv)
	p.metrics(metrics)

	p.at(p.cursor, TotalCost, display.Metrics, -1, func() error {
		ctrl.Append(display.Metrics, render.TotalCost(metrics))
		return nil
	})
	return p.actions
}

// Begin performs the synchronous start of a replay: stale context and
// metrics content is dropped and the conversation region is shown
// empty.
func Begin(ctrl display.Controller) {
	ctrl.Clear(display.Context)
	ctrl.Clear(display.Metrics)
	ctrl.Reset(display.Conversation)
}

// End returns the due time of the last action.
func End(actions []Action) time.Duration {
	if len(actions) == 0 {
		return 0
	}
	return actions[len(actions)-1].DueAt
}

// ────────────────────────────────────────────────────────────
// Planner
// ────────────────────────────────────────────────────────────

type planner struct {
	ctrl    display.Controller
	delay   time.Duration
	cursor  time.Duration
	actions []Action
}

func (p *planner) at(due time.Duration, kind Kind, region display.Region, turn int, effect func() error) {
	p.actions = append(p.actions, Action{
		DueAt:  due,
		Kind:   kind,
		Region: region,
		Turn:   turn,
		Effect: effect,
	})
}

func (p *planner) conversation(turns []transcript.Turn) {
	for i, turn := range turns {
		p.at(p.cursor, UserPrompt, display.Conversation, i, func() error {
			p.ctrl.Append(display.Conversation, render.UserPrompt(turn.UserPrompt))
			return nil
		})
		p.at(p.cursor+p.delay, AgentResponse, display.Conversation, i, func() error {
			p.ctrl.Append(display.Conversation, render.AgentResponse(turn.AgentResponse))
			return nil
		})
		p.cursor += 2 * p.delay
	}
}

func (p *planner) context(conv *transcript.ConversationRecord) {
	system := conv.SystemPrompt
	p.at(p.cursor, ContextRegion, display.Context, -1, func() error {
		p.ctrl.Reset(display.Context)
		p.ctrl.Append(display.Context, render.SystemPrompt(system))
		return nil
	})
	p.cursor += p.delay

	for i, turn := range conv.Turns {
		if !turn.HasContext() {
			continue
		}
		ctx := turn.Context
		p.at(p.cursor, AgentQuery, display.Context, i, func() error {
			el, err := render.AgentQuery(ctx)
			if err != nil {
				return err
			}
			p.ctrl.Append(display.Context, el)
			return nil
		})
		p.at(p.cursor+p.delay, DatabaseResponse, display.Context, i, func() error {
			el, err := render.DatabaseResponse(ctx)
			if err != nil {
				return err
			}
			p.ctrl.Append(display.Context, el)
			return nil
		})
		p.cursor += 2 * p.delay
	}
}

func (p *planner) metrics(m *transcript.MetricsRecord) {
	systemTokens := m.SystemTokens
	p.at(p.cursor, MetricsRegion, display.Metrics, -1, func() error {
		p.ctrl.Reset(display.Metrics)
		p.ctrl.Append(display.Metrics, render.TokenHeader(systemTokens))
		return nil
	})
	p.cursor += p.delay

	for i, entry := range m.Metrics {
		// The group is attached together with the conversation usage so
		// the region never shows an empty wrapper.
		group := render.Group()

		if entry.HasContext() {
			usage := *entry.ContextUsage
			var cost float64
			if entry.ContextCost != nil {
				cost = *entry.ContextCost
			}
			p.at(p.cursor, ContextTokens, display.Metrics, i, func() error {
				group.Add(render.TokenUsage(usage, cost, render.ClassContextToken))
				return nil
			})
			p.cursor += p.delay
		}

		usage, cost := entry.ConversationUsage, entry.ConversationCost
		p.at(p.cursor, ConversationTokens, display.Metrics, i, func() error {
			group.Add(render.TokenUsage(usage, cost, render.ClassConversationToken))
			p.ctrl.Append(display.Metrics, group)
			return nil
		})
		p.cursor += p.delay
	}
}
