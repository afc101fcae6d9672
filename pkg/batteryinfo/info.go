// Package batteryinfo exposes the normalized battery view of one backend and
// notifies observers when any part of it changes.
package batteryinfo

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battinfo/pkg/backend"
	"github.com/charlie0129/battinfo/pkg/battery"
	"github.com/charlie0129/battinfo/pkg/dispatch"
	"github.com/charlie0129/battinfo/pkg/validity"
)

// Backend is a backend adapter together with its normalization hooks.
type Backend interface {
	backend.Adapter

	// Fields returns the public fields derived from topic.
	Fields(topic backend.Topic) []battery.Field
	// Read returns the normalized current value of f.
	Read(f battery.Field) any
	// Validity returns how the backend's topics aggregate into one flag.
	Validity() validity.Policy
}

// Info is the public battery object. Accessors are safe from any goroutine.
// Updates are only applied by Flush or Run, which must not run concurrently.
type Info struct {
	backend    Backend
	mailbox    *backend.Mailbox
	dispatcher *dispatch.Dispatcher
	aggregator *validity.Aggregator
}

// New builds the battery object over b, whose updates arrive in mb.
// Everything the backend already knows is taken as the initial state and
// is not announced to observers. Pending mailbox entries from the
// adapter's construction are discarded.
func New(b Backend, mb *backend.Mailbox) *Info {
	mb.Drain()

	initial := battery.UnknownState()
	for _, f := range battery.Fields() {
		if err := initial.Set(f, b.Read(f)); err != nil {
			logrus.WithError(err).WithField("field", f).Warn("backend returned a value of the wrong type")
		}
	}

	i := &Info{
		backend: b,
		mailbox: mb,
	}
	i.aggregator = validity.NewAggregator(b.Validity(), func(v bool) {
		i.dispatcher.PublishValidity(v)
	})
	initial.Valid = i.aggregator.Valid()
	i.dispatcher = dispatch.New(initial)

	logrus.WithFields(logrus.Fields{
		"backend": b.Name(),
		"valid":   initial.Valid,
	}).Info("battery info ready")

	return i
}

func (i *Info) ChargerType() battery.ChargerType {
	return i.dispatcher.State().ChargerType
}

func (i *Info) ChargingState() battery.ChargingState {
	return i.dispatcher.State().ChargingState
}

func (i *Info) LevelStatus() battery.LevelStatus {
	return i.dispatcher.State().LevelStatus
}

// Level is the charge percentage, or battery.Unsupported.
func (i *Info) Level() int {
	return i.dispatcher.State().Level
}

func (i *Info) RemainingCapacity() int {
	return i.dispatcher.State().RemainingCapacity
}

func (i *Info) MaximumCapacity() int {
	return i.dispatcher.State().MaximumCapacity
}

func (i *Info) Voltage() int {
	return i.dispatcher.State().Voltage
}

func (i *Info) RemainingChargingTime() int {
	return i.dispatcher.State().RemainingChargingTime
}

func (i *Info) CurrentFlow() int {
	return i.dispatcher.State().CurrentFlow
}

// Temperature in degrees Celsius, NaN when unsupported.
func (i *Info) Temperature() float64 {
	return i.dispatcher.State().Temperature
}

func (i *Info) CycleCount() int {
	return i.dispatcher.State().CycleCount
}

// IsValid reports whether the information as a whole can be trusted.
func (i *Info) IsValid() bool {
	return i.dispatcher.State().Valid
}

func (i *Info) BatteryCount() int { return battery.BatteryCount }

func (i *Info) BatteryIndex() int { return battery.BatteryIndex }

// State returns a snapshot of every field.
func (i *Info) State() battery.State {
	return i.dispatcher.State()
}

// BackendName returns the name of the selected backend.
func (i *Info) BackendName() string {
	return i.backend.Name()
}

// Observe registers fn for every change. fn runs on the goroutine calling
// Flush or Run and must not block.
func (i *Info) Observe(fn func(dispatch.Change)) func() {
	return i.dispatcher.Observe(fn)
}

// Flush applies every pending backend update. Field changes of a topic are
// dispatched before the validity it may have flipped.
func (i *Info) Flush() {
	for _, u := range i.mailbox.Drain() {
		logrus.WithFields(logrus.Fields{
			"topic":  u.Topic,
			"change": u.Change,
		}).Trace("applying backend update")

		// A validity flip can change what a backend reads back, so fields
		// are re-read for every update. The dispatcher drops repeats.
		for _, f := range i.backend.Fields(u.Topic) {
			i.dispatcher.Offer(f, i.backend.Read(f))
		}
		i.aggregator.Update(u.Topic)
	}
}

// Run applies updates as they arrive until ctx is done.
func (i *Info) Run(ctx context.Context) {
	i.Flush()
	for {
		select {
		case <-ctx.Done():
			return
		case <-i.mailbox.Ready():
			i.Flush()
		}
	}
}

// Close releases the backend subscriptions.
func (i *Info) Close() error {
	return i.backend.Close()
}
