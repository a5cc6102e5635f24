// Package display owns the three output regions of a replay and the
// transitions allowed on them.
//
// A region is either hidden or visible and holds an ordered list of
// elements. The scheduler only ever talks to a Controller; which
// surface sits behind it (TUI panes, a text stream) is up to the
// caller.
package display

import (
	"sync"

	"github.com/Mr-Dark-debug/tokenreplay/internal/render"
)

// Region names one of the three display areas.
type Region int

const (
	Conversation Region = iota
	Context
	Metrics
)

// Regions lists every region in display order.
var Regions = []Region{Conversation, Context, Metrics}

func (r Region) String() string {
	switch r {
	case Conversation:
		return "conversation"
	case Context:
		return "context"
	case Metrics:
		return "metrics"
	default:
		return "unknown"
	}
}

// Controller is the set of region transitions a replay may perform.
type Controller interface {
	// Reset hides the region, clears it, then shows it empty.
	Reset(r Region)
	// Clear hides the region and drops its content.
	Clear(r Region)
	// Append adds an element to the end of the region, showing the
	// region if it was hidden.
	Append(r Region, el render.Element)
}

// ============================================================
// Board
// ============================================================

type regionState struct {
	visible  bool
	elements []render.Element
}

// Board is an in-memory Controller. It is safe for concurrent use so a
// renderer can snapshot it while a replay appends.
type Board struct {
	mu      sync.RWMutex
	regions [3]regionState
	version uint64
}

// NewBoard returns a board with every region hidden and empty.
func NewBoard() *Board {
	return &Board{}
}

func (b *Board) Reset(r Region) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.regions[r] = regionState{visible: true}
	b.version++
}

func (b *Board) Clear(r Region) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.regions[r] = regionState{}
	b.version++
}

func (b *Board) Append(r Region, el render.Element) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := &b.regions[r]
	st.visible = true
	st.elements = append(st.elements, el)
	b.version++
}

// Visible reports whether the region is shown.
func (b *Board) Visible(r Region) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.regions[r].visible
}

// Elements returns a copy of the region's elements in append order.
func (b *Board) Elements(r Region) []render.Element {
	b.mu.RLock()
	defer b.mu.RUnlock()

	src := b.regions[r].elements
	out := make([]render.Element, len(src))
	copy(out, src)
	return out
}

// Version increases on every transition. Views use it to skip
// re-rendering an unchanged board.
func (b *Board) Version() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}
