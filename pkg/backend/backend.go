// Package backend defines the contract shared by every battery data source
// and the plumbing used to hand their updates to the control goroutine.
package backend

// Topic names one independently updating value of a transport.
type Topic string

// Change tells what changed about a topic.
type Change uint8

const (
	ValueChanged Change = 1 << iota
	ValidityChanged
)

func (c Change) String() string {
	switch c {
	case ValueChanged:
		return "value"
	case ValidityChanged:
		return "validity"
	case ValueChanged | ValidityChanged:
		return "value+validity"
	}
	return "none"
}

// Update is a raw, not yet normalized, notification from an adapter.
type Update struct {
	Topic  Topic
	Change Change
}

// Adapter wraps one concrete transport.
//
// Constructing an adapter subscribes to every topic it knows about and
// routes updates into the Mailbox it was given. There is no start step.
// CurrentValue and IsValid are non-blocking reads of the adapter's cache.
type Adapter interface {
	Name() string
	Topics() []Topic
	CurrentValue(topic Topic) any
	IsValid(topic Topic) bool
	// Close releases every subscription.
	Close() error
}
