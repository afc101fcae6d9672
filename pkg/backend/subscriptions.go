package backend

import "sync"

// Subscriptions collects cancel funcs so they can be released together,
// including when a constructor fails halfway through.
type Subscriptions struct {
	mu      sync.Mutex
	cancels []func()
}

// Add records a cancel func. nil is ignored.
func (s *Subscriptions) Add(cancel func()) {
	if cancel == nil {
		return
	}
	s.mu.Lock()
	s.cancels = append(s.cancels, cancel)
	s.mu.Unlock()
}

// Release calls every recorded cancel func in reverse order. Calling it
// again is a no-op.
func (s *Subscriptions) Release() {
	s.mu.Lock()
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()

	for i := len(cancels) - 1; i >= 0; i-- {
		cancels[i]()
	}
}

// Len returns the number of live subscriptions.
func (s *Subscriptions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cancels)
}
