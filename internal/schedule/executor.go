package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Mr-Dark-debug/tokenreplay/pkg/logger"
)

// Clock is the time source Run waits on.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock is the wall clock.
var RealClock Clock = realClock{}

// EffectError records an action whose effect failed.
type EffectError struct {
	Index int
	Kind  Kind
	Turn  int
	Err   error
}

func (e *EffectError) Error() string {
	return fmt.Sprintf("action %d (%s, turn %d): %v", e.Index, e.Kind, e.Turn, e.Err)
}

func (e *EffectError) Unwrap() error { return e.Err }

// EffectErrors is returned by Run when one or more effects failed.
// Every other action still ran.
type EffectErrors []*EffectError

func (e EffectErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d reveal(s) failed: %s", len(e), strings.Join(msgs, "; "))
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e EffectErrors) Unwrap() []error {
	out := make([]error, len(e))
	for i, err := range e {
		out[i] = err
	}
	return out
}

// Run executes actions at their due times, measured from the moment Run
// is called. It returns ctx.Err() when cancelled, EffectErrors when some
// effects failed, and nil otherwise.
func Run(ctx context.Context, actions []Action, clock Clock, log *logger.Logger) error {
	if clock == nil {
		clock = RealClock
	}
	if log == nil {
		log = logger.Nop()
	}

	q := NewQueue(actions)
	start := clock.Now()
	var failed EffectErrors

	for !q.Done() {
		due, _ := q.NextDue()
		if wait := due - clock.Now().Sub(start); wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-clock.After(wait):
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		base := q.Position()
		for i, a := range q.PopDue(clock.Now().Sub(start)) {
			idx := base + i
			if err := Execute(a); err != nil {
				log.Errorw("reveal failed",
					"index", idx, "kind", a.Kind.String(), "region", a.Region.String(),
					"turn", a.Turn, "due", a.DueAt, "error", err)
				failed = append(failed, &EffectError{Index: idx, Kind: a.Kind, Turn: a.Turn, Err: err})
			}
		}
	}

	if len(failed) > 0 {
		return failed
	}
	return nil
}

// Execute runs a single action's effect, converting a panic into an
// error so one broken element cannot stop a replay.
func Execute(a Action) (err error) {
	if a.Effect == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return a.Effect()
}
