package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Mr-Dark-debug/tokenreplay/internal/display"
	"github.com/Mr-Dark-debug/tokenreplay/internal/loader"
	"github.com/Mr-Dark-debug/tokenreplay/internal/schedule"
)

func (c *PlayCmd) Run(a *app) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return c.play(ctx, a)
}

func (c *PlayCmd) play(ctx context.Context, a *app) error {
	convRef, metricsRef := c.refs(a.cfg)
	ld, err := a.loader(convRef, metricsRef)
	if err != nil {
		return err
	}
	b, err := ld.Load(ctx, convRef, metricsRef)
	if err != nil {
		return err
	}

	delay := c.Delay
	if delay <= 0 {
		delay = a.cfg.Replay.Delay
	}
	printer := display.NewPrinter(a.out, c.Width)
	player := schedule.NewPlayer(printer, nil, a.log, schedule.WithDelay(delay))

	if !c.Watch && !a.cfg.Replay.Watch {
		if err := player.Play(ctx, b.Conversation, b.Metrics); err != nil {
			return err
		}
		return printer.Err()
	}
	return c.watch(ctx, a, ld, player, b)
}

// watch replays b, then replays again after every document change
// until ctx is done. A newer replay supersedes one still running, and
// no replay outlives watch.
func (c *PlayCmd) watch(ctx context.Context, a *app, ld *loader.Loader, player *schedule.Player, b *loader.Bundle) error {
	convRef, metricsRef := c.refs(a.cfg)

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		player.Stop()
	}()

	changes := make(chan string, 1)
	errc := make(chan error, 1)
	go func() { errc <- loader.Watch(ctx, []string{convRef, metricsRef}, changes) }()

	play := func(b *loader.Bundle) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := player.Play(ctx, b.Conversation, b.Metrics)
			if err != nil && !errors.Is(err, context.Canceled) {
				a.log.Errorw("replay failed", "error", err)
			}
		}()
	}
	play(b)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return err
		case ref := <-changes:
			a.log.Infow("document changed, replaying", "ref", ref)
			next, err := ld.Load(ctx, convRef, metricsRef)
			if err != nil {
				a.log.Errorw("reload failed", "error", err)
				continue
			}
			play(next)
		}
	}
}
