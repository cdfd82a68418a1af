package model

import (
	"sync/atomic"

	"github.com/knadh/koanf/providers/file"
)

// Invalidator is implemented by loaders that keep fetched bytes around.
// Invalidate drops whatever was cached for locator so the next load reads
// it again.
type Invalidator interface {
	Invalidate(locator string)
}

// watchDescription reloads the model when the description at locator
// changes on disk. A burst of file events collapses into one reload, and
// events for a superseded load are ignored.
func (l *Lifecycle) watchDescription(gen uint64, locator string) {
	if !l.cfg.Watch || isURL(locator) {
		return
	}
	var pending atomic.Bool
	w := file.Provider(locator)
	err := w.Watch(func(_ interface{}, err error) {
		if err != nil {
			l.log.Warnf("watch %s: %v", locator, err)
			return
		}
		if !pending.CompareAndSwap(false, true) {
			return
		}
		ev := func() {
			pending.Store(false)
			if l.closed || gen != l.gen {
				return
			}
			l.log.Infof("%s changed on disk, reloading", locator)
			l.Reload()
		}
		if err := l.cfg.Exec.Send(l.ctx, ev); err != nil {
			pending.Store(false)
		}
	})
	if err != nil {
		l.log.Warnf("watch %s: %v", locator, err)
		return
	}
	l.watch = w
}

func (l *Lifecycle) unwatch() {
	if l.watch == nil {
		return
	}
	if err := l.watch.Unwatch(); err != nil {
		l.log.Debugf("unwatch: %v", err)
	}
	l.watch = nil
}
