// Package tui implements the tokenreplay terminal replay viewer.
//
// The model owns a display.Board and drives the reveal schedule from
// its own Update loop: every scheduled action is popped from a
// schedule.Queue when a tick for the current replay generation
// arrives, so a restart simply bumps the generation and stale ticks
// fall through.
//
// Component architecture:
//
//	model.go    root model, message routing, Init/Update/View
//	keys.go     key bindings
//	theme.go    centralized color + style definitions
//	header.go   top bar and status line
//	pane.go     region panes (conversation, context, metrics)
//	helpers.go  wrapping, truncation, bars
package tui
