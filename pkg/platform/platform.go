// Package platform samples the battery through the operating system's
// generic battery interface.
package platform

import (
	"errors"
	"math"

	"github.com/distatus/battery"
	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/battinfo/pkg/feed"
	"github.com/charlie0129/battinfo/pkg/mapper"
	"github.com/charlie0129/battinfo/pkg/utils/ptr"
)

// Name of this source in configuration and logs.
const Name = "platform"

// ErrNoBattery is returned when the system reports no battery at all.
var ErrNoBattery = errors.New("no batteries found")

// Source reads the first battery reported by the system.
type Source struct {
	getAll func() ([]*battery.Battery, error)
}

var _ feed.Source = &Source{}

// New returns a Source backed by battery.GetAll.
func New() *Source {
	return &Source{getAll: battery.GetAll}
}

func (s *Source) Name() string { return Name }

// Sample reads the battery. Partial errors from the system only invalidate
// the signals that could not be derived.
func (s *Source) Sample() (feed.Sample, error) {
	batteries, err := s.getAll()
	if len(batteries) == 0 {
		if err != nil {
			return feed.Sample{}, pkgerrors.Wrap(err, "failed to get battery info")
		}
		return feed.Sample{}, ErrNoBattery
	}

	// Only one battery is supported.
	bat := batteries[0]
	if bat == nil {
		return feed.Sample{}, ErrNoBattery
	}

	return sampleOf(bat), nil
}

func sampleOf(bat *battery.Battery) feed.Sample {
	var s feed.Sample

	switch bat.State {
	case battery.Charging:
		s.State = ptr.To(mapper.StateCharging)
		s.Charger = ptr.To(mapper.ChargerDCP)
	case battery.Full:
		s.State = ptr.To(mapper.StateFull)
		s.Charger = ptr.To(mapper.ChargerDCP)
	case battery.Discharging, battery.Empty:
		s.State = ptr.To(mapper.StateDischarging)
		s.Charger = ptr.To(mapper.ChargerNone)
	}

	if bat.Full > 0 && !math.IsNaN(bat.Current) {
		level := int(math.Round(bat.Current / bat.Full * 100))
		if level > 100 {
			level = 100
		}
		if level >= 0 {
			s.Level = ptr.To(level)
		}
	}

	if s.Level != nil {
		state := mapper.StateUnknown
		if s.State != nil {
			state = *s.State
		}
		s.Status = ptr.To(feed.StatusFromPercent(*s.Level, state))
	}

	return s
}
