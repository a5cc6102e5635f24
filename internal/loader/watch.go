package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay lets a burst of writes from an editor finish before
// reporting a change.
const settleDelay = 100 * time.Millisecond

// Watch reports on changes when any of the local files at refs is
// written or recreated. It watches the parent directories so that
// editors replacing a file atomically are still seen. Watch returns
// when ctx is done.
func Watch(ctx context.Context, refs []string, changes chan<- string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	targets := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, ref := range refs {
		if IsRemote(ref) {
			continue
		}
		p, err := filepath.Abs(LocalPath(ref))
		if err != nil {
			return fmt.Errorf("resolving %s: %w", ref, err)
		}
		targets[p] = true
		dirs[filepath.Dir(p)] = true
	}
	if len(targets) == 0 {
		return fmt.Errorf("no local files to watch")
	}
	for d := range dirs {
		if err := watcher.Add(d); err != nil {
			return fmt.Errorf("watching %s: %w", d, err)
		}
	}

	var (
		pending string
		timer   <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name, err := filepath.Abs(ev.Name)
			if err != nil || !targets[name] {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			pending = name
			timer = time.After(settleDelay)

		case <-timer:
			timer = nil
			select {
			case changes <- pending:
			case <-ctx.Done():
				return nil
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watching files: %w", err)
		}
	}
}
