// Package scheduler runs keyed one-shot timers. Scheduling a key that is already
// pending replaces the earlier timer.
package scheduler

import (
	"sync"
	"time"
)

// Scheduler is the timer facility used by the session orchestrator
type Scheduler interface {
	Schedule(key string, after time.Duration, fn func())
	Cancel(key string)
	Stop()
}

type entry struct {
	timer *time.Timer
	gen   uint64
}

// TimerScheduler implements Scheduler with time.AfterFunc
type TimerScheduler struct {
	mu      sync.Mutex
	timers  map[string]entry
	gen     uint64
	stopped bool
}

// New creates a TimerScheduler
func New() *TimerScheduler {
	return &TimerScheduler{timers: make(map[string]entry)}
}

// Schedule runs fn once after the delay unless the key is cancelled or
// rescheduled first
func (s *TimerScheduler) Schedule(key string, after time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if e, ok := s.timers[key]; ok {
		e.timer.Stop()
	}

	s.gen++
	gen := s.gen
	t := time.AfterFunc(after, func() {
		s.mu.Lock()
		e, ok := s.timers[key]
		if !ok || e.gen != gen {
			s.mu.Unlock()
			return
		}
		delete(s.timers, key)
		s.mu.Unlock()

		fn()
	})
	s.timers[key] = entry{timer: t, gen: gen}
}

// Cancel stops the pending timer for key, if any
func (s *TimerScheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.timers[key]; ok {
		e.timer.Stop()
		delete(s.timers, key)
	}
}

// Pending reports whether a timer is waiting for key
func (s *TimerScheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[key]
	return ok
}

// Stop cancels every timer. Later calls to Schedule are ignored.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.timers {
		e.timer.Stop()
		delete(s.timers, key)
	}
	s.stopped = true
}

var _ Scheduler = (*TimerScheduler)(nil)
