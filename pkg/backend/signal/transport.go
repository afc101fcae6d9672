package signal

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battinfo/pkg/backend"
)

// Signals published by the charger/battery notification service. Each one
// carries its own validity flag.
const (
	TopicChargerType   backend.Topic = "chargerType"
	TopicBatteryState  backend.Topic = "batteryState"
	TopicBatteryStatus backend.Topic = "batteryStatus"
	TopicBatteryLevel  backend.Topic = "batteryLevel"
)

// Topics lists every signal in a fixed order.
var Topics = []backend.Topic{
	TopicChargerType,
	TopicBatteryState,
	TopicBatteryStatus,
	TopicBatteryLevel,
}

// Reading is a native signal value together with its validity.
type Reading struct {
	Value int
	Valid bool
}

// NoValue is the native value of a signal that has never been published. It
// is outside every known code set, so it maps to unknown.
const NoValue = -1

// Transport delivers native signal readings.
type Transport interface {
	// Watch calls fn on every change of topic, from any goroutine. It returns
	// the reading at the time of the call and a func that stops delivery.
	Watch(topic backend.Topic, fn func(Reading)) (Reading, func(), error)
}

// Emitter is an in-memory Transport. Feeds that read hardware push into it,
// and tests drive it directly.
type Emitter struct {
	mu       sync.Mutex
	readings map[backend.Topic]Reading
	watchers map[backend.Topic]map[int]func(Reading)
	nextID   int
}

var _ Transport = &Emitter{}

// NewEmitter returns an Emitter whose signals are all invalid and hold NoValue.
func NewEmitter() *Emitter {
	return &Emitter{
		readings: make(map[backend.Topic]Reading),
		watchers: make(map[backend.Topic]map[int]func(Reading)),
	}
}

func (e *Emitter) Watch(topic backend.Topic, fn func(Reading)) (Reading, func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	if e.watchers[topic] == nil {
		e.watchers[topic] = make(map[int]func(Reading))
	}
	e.watchers[topic][id] = fn

	cancel := func() {
		e.mu.Lock()
		delete(e.watchers[topic], id)
		e.mu.Unlock()
	}

	return e.reading(topic), cancel, nil
}

func (e *Emitter) reading(topic backend.Topic) Reading {
	if r, ok := e.readings[topic]; ok {
		return r
	}
	return Reading{Value: NoValue}
}

// Emit publishes r on topic. Watchers are only called if r differs from the
// previous reading.
func (e *Emitter) Emit(topic backend.Topic, r Reading) {
	e.mu.Lock()
	if e.reading(topic) == r {
		e.mu.Unlock()
		return
	}
	e.readings[topic] = r
	fns := make([]func(Reading), 0, len(e.watchers[topic]))
	for _, fn := range e.watchers[topic] {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"topic": topic,
		"value": r.Value,
		"valid": r.Valid,
	}).Trace("signal emitted")

	for _, fn := range fns {
		fn(r)
	}
}

// Set publishes a valid value.
func (e *Emitter) Set(topic backend.Topic, value int) {
	e.Emit(topic, Reading{Value: value, Valid: true})
}

// SetValid changes only the validity of topic.
func (e *Emitter) SetValid(topic backend.Topic, valid bool) {
	e.mu.Lock()
	r := e.reading(topic)
	e.mu.Unlock()

	r.Valid = valid
	e.Emit(topic, r)
}

// Reading returns the last reading of topic.
func (e *Emitter) Reading(topic backend.Topic) Reading {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reading(topic)
}

// Watchers returns the number of active watchers on topic.
func (e *Emitter) Watchers(topic backend.Topic) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.watchers[topic])
}
