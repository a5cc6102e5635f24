package schedule

import (
	"context"
	"sync"

	"github.com/Mr-Dark-debug/tokenreplay/internal/display"
	"github.com/Mr-Dark-debug/tokenreplay/internal/transcript"
	"github.com/Mr-Dark-debug/tokenreplay/pkg/logger"
)

// Player runs one replay at a time against a controller. Starting a
// new replay cancels the running one; effects left over from an older
// generation are dropped even if their timer already fired.
type Player struct {
	ctrl  display.Controller
	clock Clock
	log   *logger.Logger
	opts  []Option

	// startMu serializes Play and Stop.
	startMu sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}

	// mu guards gen and every controller call.
	mu  sync.Mutex
	gen uint64
}

// NewPlayer creates a player. A nil clock means the wall clock.
func NewPlayer(ctrl display.Controller, clock Clock, log *logger.Logger, opts ...Option) *Player {
	if clock == nil {
		clock = RealClock
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Player{ctrl: ctrl, clock: clock, log: log, opts: opts}
}

// Generation returns the number of replays started so far.
func (p *Player) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen
}

// Play supersedes any running replay and blocks until this one ends.
// A superseded replay returns context.Canceled. When ctx is already
// done, Play returns its error without touching the controller.
func (p *Player) Play(ctx context.Context, conv *transcript.ConversationRecord, metrics *transcript.MetricsRecord) error {
	for _, m := range transcript.CheckAlignment(conv, metrics) {
		p.log.Warnw("transcript documents disagree", "detail", m.String())
	}

	p.startMu.Lock()
	p.stopLocked()
	if err := ctx.Err(); err != nil {
		p.startMu.Unlock()
		return err
	}

	p.mu.Lock()
	p.gen++
	gen := p.gen
	Begin(p.ctrl)
	p.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel, p.done = cancel, done
	p.startMu.Unlock()

	defer close(done)
	defer cancel()

	actions := Schedule(conv, metrics, p.ctrl, p.opts...)
	for i := range actions {
		actions[i].Effect = p.guard(gen, actions[i].Effect)
	}

	p.log.Debugw("replay started", "generation", gen, "actions", len(actions), "duration", End(actions))
	err := Run(runCtx, actions, p.clock, p.log)
	if err == nil {
		p.log.Debugw("replay finished", "generation", gen)
	}
	return err
}

// Stop cancels the running replay, if any, and waits for it to return.
func (p *Player) Stop() {
	p.startMu.Lock()
	defer p.startMu.Unlock()
	p.stopLocked()
}

func (p *Player) stopLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel, p.done = nil, nil
}

func (p *Player) guard(gen uint64, effect func() error) func() error {
	if effect == nil {
		return nil
	}
	return func() error {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.gen != gen {
			return nil
		}
		return effect()
	}
}
