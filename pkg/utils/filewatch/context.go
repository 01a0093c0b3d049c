// Package filewatch ends contexts when files are changed.
package filewatch

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// UntilModifyContext derives a context which is cancelled when any of paths is changed.
//
// Paths can be files or directories. Empty paths are ignored.
// Creating, writing, removing, renaming and changing modes are changes.
// The cause of the cancellation (context.Cause) tells which file is changed.
//
// # Returns
//
// - context.Context: derived context.
//
// - func(): stops watching, and cancels the derived context.
//
// - error: when paths cannot be watched. The context and func are nil then.
func UntilModifyContext(ctx context.Context, paths ...string) (context.Context, func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := watcher.Add(p); err != nil {
			watcher.Close()
			return nil, nil, fmt.Errorf("cannot watch %s: %w", p, err)
		}
	}

	wctx, cancel := context.WithCancelCause(ctx)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-wctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				cancel(fmt.Errorf("%s is changed (%s)", ev.Name, ev.Op))
				return
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				cancel(fmt.Errorf("watching files failed: %w", werr))
				return
			}
		}
	}()
	return wctx, func() { cancel(nil) }, nil
}
