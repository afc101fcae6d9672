// Package signal adapts a charger/battery notification service that
// publishes four fixed signals (charger type, battery state, battery status
// and battery level), each with its own validity flag.
package signal

import (
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battinfo/pkg/backend"
	"github.com/charlie0129/battinfo/pkg/battery"
	"github.com/charlie0129/battinfo/pkg/mapper"
	"github.com/charlie0129/battinfo/pkg/validity"
)

// Name of this backend in configuration and logs.
const Name = "signal"

var topicFields = map[backend.Topic][]battery.Field{
	TopicChargerType:   {battery.FieldChargerType},
	TopicBatteryState:  {battery.FieldChargingState},
	TopicBatteryStatus: {battery.FieldLevelStatus},
	TopicBatteryLevel:  {battery.FieldLevel},
}

// Adapter is the direct-signal backend.
type Adapter struct {
	mu       sync.RWMutex
	readings map[backend.Topic]Reading
	subs     *backend.Subscriptions
	mailbox  *backend.Mailbox
}

var _ backend.Adapter = &Adapter{}

// New subscribes to every signal of t and routes changes into mb. If any
// subscription fails, the ones already made are released.
func New(t Transport, mb *backend.Mailbox) (*Adapter, error) {
	a := &Adapter{
		readings: make(map[backend.Topic]Reading, len(Topics)),
		subs:     &backend.Subscriptions{},
		mailbox:  mb,
	}

	for _, topic := range Topics {
		initial, cancel, err := t.Watch(topic, a.onReading(topic))
		if err != nil {
			a.subs.Release()
			return nil, pkgerrors.Wrapf(err, "failed to watch signal %s", topic)
		}
		a.subs.Add(cancel)

		// A reading delivered while Watch was running is newer than initial.
		a.mu.Lock()
		if _, seen := a.readings[topic]; !seen {
			a.readings[topic] = initial
		}
		a.mu.Unlock()
	}

	logrus.WithField("signals", len(Topics)).Debug("direct-signal backend subscribed")

	return a, nil
}

func (a *Adapter) onReading(topic backend.Topic) func(Reading) {
	return func(r Reading) {
		a.mu.Lock()
		old := a.readings[topic]
		a.readings[topic] = r
		a.mu.Unlock()

		var c backend.Change
		if old.Value != r.Value {
			c |= backend.ValueChanged
		}
		if old.Valid != r.Valid {
			c |= backend.ValidityChanged
		}

		logrus.WithFields(logrus.Fields{
			"topic":  topic,
			"value":  r.Value,
			"valid":  r.Valid,
			"change": c,
		}).Trace("signal received")

		a.mailbox.Post(topic, c)
	}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Topics() []backend.Topic { return Topics }

// CurrentValue returns the native int of topic, or nil for an unknown topic.
func (a *Adapter) CurrentValue(topic backend.Topic) any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r, ok := a.readings[topic]
	if !ok {
		return nil
	}
	return r.Value
}

func (a *Adapter) IsValid(topic backend.Topic) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.readings[topic].Valid
}

func (a *Adapter) Close() error {
	a.subs.Release()
	return nil
}

// Fields returns the public fields derived from topic.
func (a *Adapter) Fields(topic backend.Topic) []battery.Field {
	return topicFields[topic]
}

// Read returns the normalized value of f. Metrics this service does not
// publish are always unsupported.
func (a *Adapter) Read(f battery.Field) any {
	switch f {
	case battery.FieldChargerType:
		return mapper.ChargerTypeFromCode(a.value(TopicChargerType))
	case battery.FieldChargingState:
		return mapper.ChargingStateFromCode(a.value(TopicBatteryState))
	case battery.FieldLevelStatus:
		return mapper.LevelStatusFromCode(a.value(TopicBatteryStatus))
	case battery.FieldLevel:
		return mapper.PercentFromCode(a.value(TopicBatteryLevel))
	case battery.FieldTemperature:
		return battery.UnsupportedTemperature()
	}
	return battery.Unsupported
}

// Validity requires all four signals to be valid at once.
func (a *Adapter) Validity() validity.Policy {
	return validity.AllOf(a.IsValid, Topics...)
}

func (a *Adapter) value(topic backend.Topic) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.readings[topic].Value
}
