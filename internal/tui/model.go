package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Mr-Dark-debug/tokenreplay/internal/display"
	"github.com/Mr-Dark-debug/tokenreplay/internal/loader"
	"github.com/Mr-Dark-debug/tokenreplay/internal/schedule"
	"github.com/Mr-Dark-debug/tokenreplay/internal/transcript"
	"github.com/Mr-Dark-debug/tokenreplay/pkg/logger"
)

// Options configures a Model.
type Options struct {
	// Title is shown in the header, usually the conversation ref.
	Title string
	// Delay is the spacing between reveals. Zero means the default.
	Delay time.Duration
	// Reload fetches the documents again. Nil disables reloading.
	Reload func(ctx context.Context) (*loader.Bundle, error)
	// Changes delivers a value whenever a watched document changes;
	// each one triggers Reload.
	Changes <-chan string
	Log     *logger.Logger
}

// Model is the root BubbleTea model for the replay viewer.
type Model struct {
	opts  Options
	log   *logger.Logger
	keys  keyMap
	board *display.Board

	// Data
	conv    *transcript.ConversationRecord
	metrics *transcript.MetricsRecord

	// Replay state. gen increments on every start; ticks carry the
	// generation they were scheduled for.
	gen     uint64
	queue   *schedule.Queue
	start   time.Time
	elapsed time.Duration
	end     time.Duration
	failed  int
	now     func() time.Time

	// UI state
	focus  display.Region
	scroll [3]int
	width  int
	height int

	// Status
	statusMsg string
	err       error
}

// NewModel creates a viewer for b. The replay starts on Init.
func NewModel(b *loader.Bundle, opts Options) Model {
	if opts.Delay <= 0 {
		opts.Delay = schedule.DefaultDelay
	}
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}

	keys := defaultKeys()
	keys.Reload.SetEnabled(opts.Reload != nil)

	return Model{
		opts:    opts,
		log:     log,
		keys:    keys,
		board:   display.NewBoard(),
		conv:    b.Conversation,
		metrics: b.Metrics,
		now:     time.Now,
		focus:   display.Conversation,
	}
}

// Board exposes the regions the model renders.
func (m Model) Board() *display.Board {
	return m.board
}

// ────────────────────────────────────────────────────────────
// Messages
// ────────────────────────────────────────────────────────────

// replayMsg starts a new replay of the current documents.
type replayMsg struct{}

// tickMsg asks the model to run every action of replay gen that is due.
type tickMsg struct{ gen uint64 }

type loadedMsg struct{ bundle *loader.Bundle }

type changedMsg struct{ ref string }

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

// ────────────────────────────────────────────────────────────
// Init
// ────────────────────────────────────────────────────────────

func (m Model) Init() tea.Cmd {
	replay := func() tea.Msg { return replayMsg{} }
	if m.opts.Changes == nil {
		return replay
	}
	return tea.Batch(replay, m.waitForChange())
}

func (m Model) waitForChange() tea.Cmd {
	ch := m.opts.Changes
	return func() tea.Msg {
		ref, ok := <-ch
		if !ok {
			return nil
		}
		return changedMsg{ref: ref}
	}
}

func (m Model) reload() tea.Cmd {
	fetch := m.opts.Reload
	return func() tea.Msg {
		b, err := fetch(context.Background())
		if err != nil {
			return errMsg{err}
		}
		return loadedMsg{bundle: b}
	}
}

// ────────────────────────────────────────────────────────────
// Update
// ────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case replayMsg:
		return m.startReplay()

	case tickMsg:
		if msg.gen != m.gen || m.queue == nil {
			return m, nil
		}
		return m.advance()

	case changedMsg:
		m.log.Infow("document changed, reloading", "ref", msg.ref)
		cmds := []tea.Cmd{m.waitForChange()}
		if m.opts.Reload != nil {
			cmds = append(cmds, m.reload())
		}
		return m, tea.Batch(cmds...)

	case loadedMsg:
		m.conv = msg.bundle.Conversation
		m.metrics = msg.bundle.Metrics
		m.err = nil
		return m.startReplay()

	case errMsg:
		m.err = msg.err
		m.statusMsg = fmt.Sprintf("Error: %v", msg.err)
		m.log.Errorw("reload failed", "error", msg.err)
		return m, nil
	}

	return m, nil
}

// startReplay supersedes any running replay. The conversation region
// is reset synchronously; everything else comes from the schedule.
func (m Model) startReplay() (tea.Model, tea.Cmd) {
	for _, mm := range transcript.CheckAlignment(m.conv, m.metrics) {
		m.log.Warnw("transcript documents disagree", "detail", mm.String())
	}

	m.gen++
	schedule.Begin(m.board)
	actions := schedule.Schedule(m.conv, m.metrics, m.board, schedule.WithDelay(m.opts.Delay))
	m.queue = schedule.NewQueue(actions)
	m.end = schedule.End(actions)
	m.start = m.now()
	m.elapsed = 0
	m.failed = 0
	m.scroll = [3]int{}
	m.statusMsg = ""

	m.log.Debugw("replay started", "generation", m.gen, "actions", len(actions), "duration", m.end)
	return m, m.nextTick()
}

// advance runs every due action, then schedules the next tick.
func (m Model) advance() (tea.Model, tea.Cmd) {
	m.elapsed = m.now().Sub(m.start)

	base := m.queue.Position()
	for i, a := range m.queue.PopDue(m.elapsed) {
		if err := schedule.Execute(a); err != nil {
			m.failed++
			m.log.Errorw("reveal failed",
				"index", base+i, "kind", a.Kind.String(), "region", a.Region.String(),
				"turn", a.Turn, "error", err)
		}
	}

	if m.queue.Done() {
		m.log.Debugw("replay finished", "generation", m.gen, "failed", m.failed)
	}
	return m, m.nextTick()
}

func (m Model) nextTick() tea.Cmd {
	due, ok := m.queue.NextDue()
	if !ok {
		return nil
	}
	wait := max(due-m.now().Sub(m.start), 0)
	gen := m.gen
	return tea.Tick(wait, func(time.Time) tea.Msg { return tickMsg{gen: gen} })
}

// playing reports whether the current replay still has pending reveals.
func (m Model) playing() bool {
	return m.queue != nil && !m.queue.Done()
}

// handleKey routes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Restart):
		return m.startReplay()

	case key.Matches(msg, m.keys.Reload):
		m.statusMsg = "Reloading..."
		return m, m.reload()

	case key.Matches(msg, m.keys.NextPane):
		m.focus = display.Region((int(m.focus) + 1) % len(display.Regions))

	case key.Matches(msg, m.keys.PrevPane):
		m.focus = display.Region((int(m.focus) + len(display.Regions) - 1) % len(display.Regions))

	// Scroll offsets count lines up from the bottom; zero follows the
	// newest content.
	case key.Matches(msg, m.keys.Up):
		m.scroll[m.focus] = clamp(m.scroll[m.focus]+1, 0, maxScroll(&m, m.focus))

	case key.Matches(msg, m.keys.Down):
		m.scroll[m.focus] = clamp(m.scroll[m.focus]-1, 0, maxScroll(&m, m.focus))

	case key.Matches(msg, m.keys.Top):
		m.scroll[m.focus] = maxScroll(&m, m.focus)

	case key.Matches(msg, m.keys.Bottom):
		m.scroll[m.focus] = 0
	}

	return m, nil
}

// ────────────────────────────────────────────────────────────
// View
// ────────────────────────────────────────────────────────────

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		renderHeader(&m),
		m.renderMainLayout(),
		renderFooter(&m),
	)
}

// renderMainLayout puts the conversation on the left and stacks the
// context and metrics regions on the right.
func (m Model) renderMainLayout() string {
	// Responsive: collapse to the focused pane on narrow terminals
	if m.compact() {
		return renderPanel(&m, m.focus)
	}

	right := lipgloss.JoinVertical(lipgloss.Left,
		renderPanel(&m, display.Context),
		renderPanel(&m, display.Metrics),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, renderPanel(&m, display.Conversation), right)
}

func (m Model) compact() bool {
	return m.width < 60
}

// paneSize returns the outer size of the pane showing r.
func (m Model) paneSize(r display.Region) (width, height int) {
	bodyHeight := max(m.height-2, 0) // header + footer
	if m.compact() {
		return m.width, bodyHeight
	}

	leftWidth := m.width * 55 / 100
	if r == display.Conversation {
		return leftWidth, bodyHeight
	}
	topHeight := bodyHeight / 2
	if r == display.Context {
		return m.width - leftWidth, topHeight
	}
	return m.width - leftWidth, bodyHeight - topHeight
}
