// Package propbus adapts a generic named-property bus on which every battery
// property is published as text under "Battery.<Name>".
package propbus

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
const Name = "propbus"

// Adapter is the property-bus backend.
type Adapter struct {
	mu      sync.RWMutex
	values  map[Property]Value
	subs    *backend.Subscriptions
	mailbox *backend.Mailbox
	topics  []backend.Topic
}

var _ backend.Adapter = &Adapter{}

// New validates the property tables, then subscribes every property on bus
// and routes changes into mb. A table error wraps ErrInvalidTable.
func New(bus Bus, mb *backend.Mailbox) (*Adapter, error) {
	if err := validateTables(propertyNames, propertyFields); err != nil {
		return nil, err
	}

	a := &Adapter{
		values:  make(map[Property]Value, propertyCount),
		subs:    &backend.Subscriptions{},
		mailbox: mb,
	}

	for _, p := range Properties() {
		a.topics = append(a.topics, backend.Topic(p.Name()))

		cancel, err := bus.Subscribe(p.Name(), a.onValue(p))
		if err != nil {
			a.subs.Release()
			return nil, pkgerrors.Wrapf(err, "failed to subscribe to %s", p.Name())
		}
		a.subs.Add(cancel)
	}

	logrus.WithField("properties", len(a.topics)).Debug("property-bus backend subscribed")

	return a, nil
}

func (a *Adapter) onValue(p Property) func(Value) {
	topic := backend.Topic(p.Name())
	return func(v Value) {
		a.mu.Lock()
		old := a.values[p]
		a.values[p] = v
		a.mu.Unlock()

		var c backend.Change
		if old.Text != v.Text {
			c |= backend.ValueChanged
		}
		if old.Valid != v.Valid {
			c |= backend.ValidityChanged
		}

		logrus.WithFields(logrus.Fields{
			"property": topic,
			"value":    v.Text,
			"valid":    v.Valid,
			"change":   c,
		}).Trace("property received")

		a.mailbox.Post(topic, c)
	}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Topics() []backend.Topic { return a.topics }

// CurrentValue returns the raw text of the property, or nil for an unknown topic.
func (a *Adapter) CurrentValue(topic backend.Topic) any {
	p, ok := PropertyByName(string(topic))
	if !ok {
		return nil
	}
	return a.text(p)
}

func (a *Adapter) IsValid(topic backend.Topic) bool {
	p, ok := PropertyByName(string(topic))
	if !ok {
		return false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.values[p].Valid
}

func (a *Adapter) Close() error {
	a.subs.Release()
	return nil
}

// Fields returns the public fields derived from the property named by topic.
func (a *Adapter) Fields(topic backend.Topic) []battery.Field {
	p, ok := PropertyByName(string(topic))
	if !ok {
		return nil
	}
	return propertyFields[p]
}

// Read returns the normalized value of f. The bus does not publish a cycle count.
func (a *Adapter) Read(f battery.Field) any {
	switch f {
	case battery.FieldChargerType:
		return mapper.ChargerTypeFromToken(a.text(ChargerType))
	case battery.FieldChargingState:
		return mapper.ChargingStateFromToken(a.text(ChargingState))
	case battery.FieldLevelStatus:
		return mapper.LevelStatusFromTokens(a.text(Level), a.text(ChargingState))
	case battery.FieldLevel:
		return mapper.PercentFromToken(a.text(ChargePercentage))
	case battery.FieldRemainingCapacity:
		return mapper.IntFromToken(a.text(Energy))
	case battery.FieldMaximumCapacity:
		return mapper.IntFromToken(a.text(EnergyFull))
	case battery.FieldVoltage:
		return mapper.IntFromToken(a.text(Voltage))
	case battery.FieldRemainingChargingTime:
		return mapper.IntFromToken(a.text(TimeUntilFull))
	case battery.FieldCurrentFlow:
		return mapper.IntFromToken(a.text(Current))
	case battery.FieldTemperature:
		return mapper.TemperatureFromToken(a.text(Temperature))
	}
	return battery.Unsupported
}

// Validity has no native flag on this bus: the information is trusted while
// the charging state resolves to something other than unknown.
func (a *Adapter) Validity() validity.Policy {
	return validity.Derived(func() bool {
		return a.Read(battery.FieldChargingState) != battery.UnknownChargingState
	})
}

// text returns the property text, or "" while it has no provider.
func (a *Adapter) text(p Property) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v := a.values[p]
	if !v.Valid {
		return ""
	}
	return v.Text
}
