// internal/engine/task.go
package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// task is a single-shot scheduled callback that can be cancelled before it
// fires. Cancel and fire race safely: exactly one of them wins.
type task struct {
	timer    *time.Timer
	done     chan struct{}
	stopOnce sync.Once
}

// schedule runs fn after delay unless cancelled first. A non-positive delay
// still goes through the timer so the callback never runs on the caller's
// goroutine.
func schedule(delay time.Duration, fn func()) *task {
	if delay < 0 {
		delay = 0
	}
	t := &task{done: make(chan struct{})}
	t.timer = time.NewTimer(delay)
	go func() {
		select {
		case <-t.timer.C:
			fn()
		case <-t.done:
		}
	}()
	return t
}

// cancel stops the task. Returns without effect if the task already fired.
func (t *task) cancel() {
	t.stopOnce.Do(func() {
		t.timer.Stop()
		close(t.done)
	})
}

// timerSet tracks at most one live task per emergency, mirroring its size
// into a gauge.
type timerSet struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*task
	gauge prometheus.Gauge
}

func newTimerSet(gauge prometheus.Gauge) *timerSet {
	return &timerSet{tasks: make(map[uuid.UUID]*task), gauge: gauge}
}

// put registers a task for the emergency, cancelling any previous one.
func (s *timerSet) put(id uuid.UUID, t *task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.tasks[id]; ok {
		old.cancel()
	} else if s.gauge != nil {
		s.gauge.Inc()
	}
	s.tasks[id] = t
}

// remove cancels and forgets the emergency's task. Returns false when no
// task was registered.
func (s *timerSet) remove(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	t.cancel()
	delete(s.tasks, id)
	if s.gauge != nil {
		s.gauge.Dec()
	}
	return true
}

// forget drops the bookkeeping entry after a task has fired on its own.
func (s *timerSet) forget(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; ok {
		delete(s.tasks, id)
		if s.gauge != nil {
			s.gauge.Dec()
		}
	}
}

// contains reports whether a task is registered for the emergency.
func (s *timerSet) contains(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[id]
	return ok
}

// stopAll cancels every registered task; used on shutdown.
func (s *timerSet) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.tasks {
		t.cancel()
		delete(s.tasks, id)
		if s.gauge != nil {
			s.gauge.Dec()
		}
	}
}
