// Package dispatch caches the last published value of every battery field and
// notifies observers only when a value actually changes.
package dispatch

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battinfo/pkg/battery"
)

// Kind tells what a Change carries.
type Kind int

const (
	FieldChanged Kind = iota
	ValidityChanged
)

func (k Kind) String() string {
	switch k {
	case FieldChanged:
		return "field"
	case ValidityChanged:
		return "validity"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Change is one notification. For ValidityChanged, Field is meaningless and
// Value holds the new bool.
type Change struct {
	Kind  Kind
	Field battery.Field
	Value any
}

// Name returns the event name of the change, e.g. "battery.level" or
// "battery.valid".
func (c Change) Name() string {
	if c.Kind == ValidityChanged {
		return "battery.valid"
	}
	return "battery." + c.Field.String()
}

type observer struct {
	id int
	fn func(Change)
}

// Dispatcher owns the cached snapshot. Offer and PublishValidity must be
// called from a single goroutine; State may be called from anywhere.
type Dispatcher struct {
	mu    sync.RWMutex
	state battery.State

	obsMu     sync.Mutex
	observers []observer
	nextID    int
}

// New returns a dispatcher seeded with initial. Seeding never notifies.
func New(initial battery.State) *Dispatcher {
	return &Dispatcher{state: initial}
}

// Offer records value for f and notifies observers if it differs from the
// cached value. It reports whether a notification was sent.
func (d *Dispatcher) Offer(f battery.Field, value any) bool {
	d.mu.Lock()
	if battery.Equal(d.state.Get(f), value) {
		d.mu.Unlock()
		return false
	}
	next := d.state
	if err := next.Set(f, value); err != nil {
		d.mu.Unlock()
		logrus.WithError(err).WithField("field", f).Error("dropping value of wrong type")
		return false
	}
	d.state = next
	d.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"field": f,
		"value": value,
	}).Debug("battery field changed")

	d.notify(Change{Kind: FieldChanged, Field: f, Value: value})
	return true
}

// PublishValidity records v and notifies observers. The caller is expected to
// call it only on an edge.
func (d *Dispatcher) PublishValidity(v bool) {
	d.mu.Lock()
	d.state.Valid = v
	d.mu.Unlock()

	d.notify(Change{Kind: ValidityChanged, Value: v})
}

// State returns a copy of the cached snapshot.
func (d *Dispatcher) State() battery.State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Get returns the cached value of f.
func (d *Dispatcher) Get(f battery.Field) any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state.Get(f)
}

// Observe registers fn. Observers run in registration order on the goroutine
// that dispatches. The returned func unregisters fn.
func (d *Dispatcher) Observe(fn func(Change)) func() {
	d.obsMu.Lock()
	id := d.nextID
	d.nextID++
	d.observers = append(d.observers, observer{id: id, fn: fn})
	d.obsMu.Unlock()

	return func() {
		d.obsMu.Lock()
		defer d.obsMu.Unlock()
		for i, o := range d.observers {
			if o.id == id {
				d.observers = append(d.observers[:i:i], d.observers[i+1:]...)
				return
			}
		}
	}
}

func (d *Dispatcher) notify(c Change) {
	d.obsMu.Lock()
	fns := make([]func(Change), 0, len(d.observers))
	for _, o := range d.observers {
		fns = append(fns, o.fn)
	}
	d.obsMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}
