// Package validity folds several partial validity signals into the single
// "is this information trustworthy right now" flag.
package validity

import (
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battinfo/pkg/backend"
)

// Policy computes the aggregate validity from the current backend state.
type Policy interface {
	Valid() bool
	String() string
}

type allOf struct {
	check  func(backend.Topic) bool
	topics []backend.Topic
}

// AllOf is valid only while check reports every topic valid.
func AllOf(check func(backend.Topic) bool, topics ...backend.Topic) Policy {
	return &allOf{check: check, topics: topics}
}

func (p *allOf) Valid() bool {
	for _, t := range p.topics {
		if !p.check(t) {
			return false
		}
	}
	return true
}

func (p *allOf) String() string { return "all-of" }

type derived struct {
	fn func() bool
}

// Derived projects validity from some other piece of state, typically a
// normalized field, instead of a native validity flag.
func Derived(fn func() bool) Policy {
	return &derived{fn: fn}
}

func (p *derived) Valid() bool { return p.fn() }

func (p *derived) String() string { return "derived" }

// Aggregator caches the aggregate validity and notifies only on edges.
// It is not safe for concurrent use; it belongs to the control goroutine.
type Aggregator struct {
	policy      Policy
	valid       bool
	lastChanged backend.Topic
	notify      func(bool)
}

// NewAggregator seeds the cache from policy without notifying.
func NewAggregator(policy Policy, notify func(bool)) *Aggregator {
	if notify == nil {
		notify = func(bool) {}
	}
	return &Aggregator{
		policy: policy,
		valid:  policy.Valid(),
		notify: notify,
	}
}

// Update recomputes the aggregate after topic reported a change. It
// notifies exactly once if the aggregate flipped and returns whether it did.
func (a *Aggregator) Update(topic backend.Topic) bool {
	a.lastChanged = topic

	valid := a.policy.Valid()
	if valid == a.valid {
		return false
	}
	a.valid = valid

	logrus.WithFields(logrus.Fields{
		"valid":  valid,
		"topic":  topic,
		"policy": a.policy.String(),
	}).Info("battery info validity changed")

	a.notify(valid)
	return true
}

// Valid returns the cached aggregate.
func (a *Aggregator) Valid() bool { return a.valid }

// LastChanged returns the topic that triggered the most recent Update.
func (a *Aggregator) LastChanged() backend.Topic { return a.lastChanged }
