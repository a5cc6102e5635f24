package display

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mr-Dark-debug/tokenreplay/internal/render"
)

func TestBoardTransitions(t *testing.T) {
	b := NewBoard()
	for _, r := range Regions {
		assert.False(t, b.Visible(r), "%s starts hidden", r)
	}

	b.Append(Context, render.UserPrompt("early"))
	assert.True(t, b.Visible(Context), "append shows a hidden region")

	b.Reset(Context)
	assert.True(t, b.Visible(Context))
	assert.Empty(t, b.Elements(Context))

	b.Append(Context, render.UserPrompt("a"))
	b.Append(Context, render.AgentResponse("b"))
	els := b.Elements(Context)
	require.Len(t, els, 2)
	assert.Equal(t, render.ClassUserPrompt, els[0].Class)
	assert.Equal(t, render.ClassAgentResponse, els[1].Class)

	b.Clear(Context)
	assert.False(t, b.Visible(Context))
	assert.Empty(t, b.Elements(Context))
}

func TestBoardVersionAdvances(t *testing.T) {
	b := NewBoard()
	v := b.Version()
	b.Reset(Metrics)
	assert.Greater(t, b.Version(), v)
}

func TestBoardElementsIsACopy(t *testing.T) {
	b := NewBoard()
	b.Append(Conversation, render.UserPrompt("a"))

	els := b.Elements(Conversation)
	els[0].Lines = []string{"mutated"}

	assert.Equal(t, []string{"a"}, b.Elements(Conversation)[0].Lines)
}

func TestPrinterStreamsTransitions(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	var buf bytes.Buffer
	p := NewPrinter(&buf, 0)

	p.Reset(Conversation)
	p.Append(Conversation, render.UserPrompt("hello"))
	group := render.Group()
	group.Add(render.TokenHeader(7))
	p.Append(Metrics, group)

	require.NoError(t, p.Err())
	out := buf.String()
	assert.Contains(t, out, "── conversation ──")
	assert.Contains(t, out, "[conversation] user: hello")
	assert.Contains(t, out, "Token Metrics")
	assert.Contains(t, out, "System Prompt Tokens: 7")
}
