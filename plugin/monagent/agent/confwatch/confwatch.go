// SPDX-License-Identifier: GPL-3.0-or-later

package confwatch

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/monagent/monagent/logger"
)

const defaultDebounce = 2 * time.Second

// Watcher reports changes of check configuration files in a directory.
// Bursts of events (editors write files in several steps) collapse into one notification.
type Watcher struct {
	*logger.Logger

	Dir      string
	Debounce time.Duration
}

func New(dir string) *Watcher {
	return &Watcher{
		Logger:   logger.New().With(slog.String("component", "conf.d watcher")),
		Dir:      dir,
		Debounce: defaultDebounce,
	}
}

// Run watches Dir until ctx is done, sending to changed after every settled burst of changes.
// A pending notification is dropped if the previous one was not consumed yet.
func (w *Watcher) Run(ctx context.Context, changed chan<- struct{}) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(w.Dir); err != nil {
		return err
	}

	w.Infof("watching '%s'", w.Dir)

	timer := time.NewTimer(w.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !isConfigEvent(event) {
				continue
			}
			w.Debugf("%s: %s", event.Op, event.Name)
			timer.Reset(w.Debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.Warningf("watch error: %v", err)
		case <-timer.C:
			select {
			case changed <- struct{}{}:
			default:
			}
		}
	}
}

func isConfigEvent(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	switch filepath.Ext(event.Name) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}
