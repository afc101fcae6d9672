// Package feed samples a local battery source and pushes the readings into a
// direct-signal emitter, so that the signal backend sees only changes.
package feed

import (
	"github.com/charlie0129/battinfo/pkg/backend"
	"github.com/charlie0129/battinfo/pkg/backend/signal"
	"github.com/charlie0129/battinfo/pkg/mapper"
)

// Thresholds used to derive a status bucket from a charge percentage.
const (
	EmptyThreshold = 5
	LowThreshold   = 20
)

// Sample is one reading of the native signals. A nil field means the source
// could not tell, and the signal is marked invalid.
type Sample struct {
	Charger *int
	State   *int
	Status  *int
	Level   *int
}

// Source produces samples.
type Source interface {
	Name() string
	Sample() (Sample, error)
}

// StatusFromPercent buckets a charge percentage into a native status code.
func StatusFromPercent(percent int, state int) int {
	switch {
	case percent <= EmptyThreshold:
		return mapper.StatusEmpty
	case percent <= LowThreshold:
		return mapper.StatusLow
	case percent >= 100 || state == mapper.StateFull:
		return mapper.StatusFull
	}
	return mapper.StatusOk
}

// Apply pushes s into e. The emitter drops readings that did not change.
func Apply(e *signal.Emitter, s Sample) {
	for _, v := range []struct {
		topic  backend.Topic
		native *int
	}{
		{signal.TopicChargerType, s.Charger},
		{signal.TopicBatteryState, s.State},
		{signal.TopicBatteryStatus, s.Status},
		{signal.TopicBatteryLevel, s.Level},
	} {
		if v.native == nil {
			e.SetValid(v.topic, false)
			continue
		}
		e.Set(v.topic, *v.native)
	}
}

// Invalidate marks every signal of e invalid, keeping the last values.
func Invalidate(e *signal.Emitter) {
	Apply(e, Sample{})
}
