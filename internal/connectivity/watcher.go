// Package connectivity tracks whether the remote authority is reachable and
// notifies listeners on the offline-to-online edge.
package connectivity

import (
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Watcher struct {
	mu        sync.Mutex
	online    bool
	listeners []func(online bool)
	log       *zap.Logger
}

func NewWatcher(log *zap.Logger) *Watcher {
	return &Watcher{
		online: true,
		log:    log.Named("connectivity"),
	}
}

func (w *Watcher) Online() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.online
}

// SetOnline records a connectivity change. Listeners run synchronously on
// every change so a regained connection immediately triggers a sync pass.
func (w *Watcher) SetOnline(online bool) {
	w.mu.Lock()
	if w.online == online {
		w.mu.Unlock()
		return
	}
	w.online = online
	listeners := append(([]func(bool))(nil), w.listeners...)
	w.mu.Unlock()

	w.log.Info("connectivity changed", zap.Bool("online", online))
	for _, fn := range listeners {
		fn(online)
	}
}

// ReportFailure marks the link offline after a failed remote call.
func (w *Watcher) ReportFailure() {
	w.SetOnline(false)
}

func (w *Watcher) OnChange(fn func(online bool)) {
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	w.mu.Unlock()
}

var Module = fx.Module("connectivity",
	fx.Provide(NewWatcher),
)
