package backend

import "sync"

// Mailbox hands raw updates from transport goroutines to the single control
// goroutine. Posting never blocks: updates for the same topic coalesce, and
// the wake-up channel holds at most one token.
type Mailbox struct {
	mu      sync.Mutex
	pending map[Topic]Change
	order   []Topic
	ready   chan struct{}
}

// NewMailbox returns an empty Mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{
		pending: make(map[Topic]Change),
		ready:   make(chan struct{}, 1),
	}
}

// Post records that topic changed. Safe for concurrent use.
func (m *Mailbox) Post(topic Topic, c Change) {
	if c == 0 {
		return
	}

	m.mu.Lock()
	if _, ok := m.pending[topic]; !ok {
		m.order = append(m.order, topic)
	}
	m.pending[topic] |= c
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// Ready is signalled after at least one Post since the last Drain.
func (m *Mailbox) Ready() <-chan struct{} {
	return m.ready
}

// Drain returns the pending updates in first-posted order and empties the mailbox.
func (m *Mailbox) Drain() []Update {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.order) == 0 {
		return nil
	}

	ret := make([]Update, 0, len(m.order))
	for _, topic := range m.order {
		ret = append(ret, Update{Topic: topic, Change: m.pending[topic]})
	}
	m.pending = make(map[Topic]Change)
	m.order = nil
	return ret
}

// Len returns the number of topics waiting to be drained.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}
