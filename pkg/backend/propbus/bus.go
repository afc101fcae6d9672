package propbus

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Value is a property value as seen on the bus. Valid is false while the
// property has no provider, in which case Text is empty.
type Value struct {
	Text  string
	Valid bool
}

// Bus is a generic named-property subscription bus.
type Bus interface {
	// Subscribe calls fn, from any goroutine, whenever the named property
	// changes, including for the value it already has. The returned func
	// stops delivery.
	Subscribe(name string, fn func(Value)) (func(), error)
}

// MemoryBus is an in-process Bus used by tests and the console.
type MemoryBus struct {
	mu     sync.Mutex
	values map[string]Value
	subs   map[string]map[int]func(Value)
	nextID int
}

var _ Bus = &MemoryBus{}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		values: make(map[string]Value),
		subs:   make(map[string]map[int]func(Value)),
	}
}

func (b *MemoryBus) Subscribe(name string, fn func(Value)) (func(), error) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[name] == nil {
		b.subs[name] = make(map[int]func(Value))
	}
	b.subs[name][id] = fn
	current, ok := b.values[name]
	b.mu.Unlock()

	// Like a retained message, a known value is delivered right away.
	if ok {
		fn(current)
	}

	return func() {
		b.mu.Lock()
		delete(b.subs[name], id)
		b.mu.Unlock()
	}, nil
}

// Publish sets the named property and notifies subscribers on change.
func (b *MemoryBus) Publish(name, text string) {
	b.set(name, Value{Text: text, Valid: true})
}

// Unset removes the provider of the named property.
func (b *MemoryBus) Unset(name string) {
	b.set(name, Value{})
}

func (b *MemoryBus) set(name string, v Value) {
	b.mu.Lock()
	if old, ok := b.values[name]; ok && old == v {
		b.mu.Unlock()
		return
	}
	b.values[name] = v
	fns := make([]func(Value), 0, len(b.subs[name]))
	for _, fn := range b.subs[name] {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"name":  name,
		"value": v.Text,
		"valid": v.Valid,
	}).Trace("property published")

	for _, fn := range fns {
		fn(v)
	}
}

// Subscribers returns the number of subscriptions on the named property.
func (b *MemoryBus) Subscribers(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[name])
}
