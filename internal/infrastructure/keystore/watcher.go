package keystore

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/turtacn/sharedcookie/pkg/logger"
)

// DirWatcher signals whenever a matching file in a directory is created,
// written, removed or renamed. Bursts of events collapse into one signal.
type DirWatcher struct {
	watcher *fsnotify.Watcher
	match   func(name string) bool
	notify  func()
	logger  logger.Logger

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewDirWatcher starts watching dir. notify must not block.
func NewDirWatcher(dir string, match func(name string) bool, notify func(), log logger.Logger) (*DirWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, err
	}

	dw := &DirWatcher{
		watcher: w,
		match:   match,
		notify:  notify,
		logger:  log.WithComponent("DirWatcher"),
		done:    make(chan struct{}),
	}
	dw.wg.Add(1)
	go dw.loop(dir)
	return dw, nil
}

func (d *DirWatcher) loop(dir string) {
	defer d.wg.Done()
	ctx := context.Background()
	const relevant = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

	for {
		select {
		case <-d.done:
			return
		case ev, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&relevant == 0 || !d.match(filepath.Base(ev.Name)) {
				continue
			}
			d.logger.Debug(ctx, "Key directory changed",
				logger.String("file", filepath.Base(ev.Name)),
				logger.String("op", ev.Op.String()),
			)
			d.notify()
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.logger.Warn(ctx, "Key directory watch error",
				logger.String("directory", dir),
				logger.Error(err),
			)
		}
	}
}

// Close stops the watcher and waits for its goroutine.
func (d *DirWatcher) Close() error {
	var err error
	d.closeOnce.Do(func() {
		close(d.done)
		err = d.watcher.Close()
		d.wg.Wait()
	})
	return err
}
