package nodeprops

import (
	"sync"

	"go.uber.org/zap"
)

// worker delivers queued items to a single listener callback in order.
// Callbacks of the same worker never overlap. A panicking callback is logged
// and the worker moves on to the next item.
type worker[T any] struct {
	logger  *zap.Logger
	kind    string
	deliver func(T)

	mu      sync.Mutex
	ready   []T
	stopped bool
	wake    chan struct{}
	done    chan struct{}
}

func newWorker[T any](logger *zap.Logger, kind string, deliver func(T)) *worker[T] {
	return &worker[T]{
		logger:  logger,
		kind:    kind,
		deliver: deliver,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// push appends items to the queue without waiting for delivery.
func (w *worker[T]) push(items ...T) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.ready = append(w.ready, items...)
	queuedBatches.WithLabelValues(w.kind).Add(float64(len(items)))
	w.mu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *worker[T]) next() (T, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var item T
	if w.stopped || len(w.ready) == 0 {
		return item, false
	}
	item = w.ready[0]
	w.ready[0] = *new(T)
	w.ready = w.ready[1:]
	queuedBatches.WithLabelValues(w.kind).Dec()
	return item, true
}

func (w *worker[T]) run() {
	for {
		select {
		case <-w.done:
			return
		case <-w.wake:
		}
		for {
			item, ok := w.next()
			if !ok {
				break
			}
			w.safeDeliver(item)
		}
	}
}

func (w *worker[T]) safeDeliver(item T) {
	defer func() {
		if r := recover(); r != nil {
			listenerPanics.WithLabelValues(w.kind).Inc()
			w.logger.Error("listener callback panicked",
				zap.String("kind", w.kind),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()
	w.deliver(item)
	deliveredBatches.WithLabelValues(w.kind).Inc()
}

// stop discards queued items and terminates run. An item that is being
// delivered when stop is called still completes.
func (w *worker[T]) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	queuedBatches.WithLabelValues(w.kind).Sub(float64(len(w.ready)))
	w.ready = nil
	close(w.done)
}
