//go:build darwin

package smc

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battinfo/pkg/feed"
	"github.com/charlie0129/battinfo/pkg/mapper"
	"github.com/charlie0129/battinfo/pkg/utils/ptr"
)

// Name of this source in configuration and logs.
const Name = "smc"

// ErrNoReading is returned when not a single battery key could be read.
var ErrNoReading = errors.New("no battery key could be read from SMC")

// Source samples the battery keys of an open AppleSMC.
type Source struct {
	conn *AppleSMC
}

var _ feed.Source = &Source{}

// NewSource returns a Source over conn, which must already be open.
func NewSource(conn *AppleSMC) *Source {
	return &Source{conn: conn}
}

func (s *Source) Name() string { return Name }

// Sample reads every key it needs. A key that cannot be read only
// invalidates the signals derived from it.
func (s *Source) Sample() (feed.Sample, error) {
	var ret feed.Sample

	charge, chargeErr := s.conn.GetBatteryCharge()
	if chargeErr == nil {
		ret.Level = ptr.To(mapper.PercentFromCode(charge))
	}

	pluggedIn, plugErr := s.conn.IsPluggedIn()
	if plugErr == nil {
		if pluggedIn {
			ret.Charger = ptr.To(mapper.ChargerDCP)
		} else {
			ret.Charger = ptr.To(mapper.ChargerNone)
		}
	}

	current, currentErr := s.conn.GetBatteryCurrent()
	if currentErr == nil {
		// A missing CH0B key reads as enabled.
		inhibited := false
		if enabled, err := s.conn.IsChargingEnabled(); err == nil {
			inhibited = !enabled
		}

		state := mapper.StateDischarging
		switch {
		case current > 0:
			state = mapper.StateCharging
		case current < 0:
			state = mapper.StateDischarging
		case plugErr == nil && pluggedIn && inhibited:
			state = mapper.StateNotCharging
		case plugErr == nil && pluggedIn && chargeErr == nil && charge >= 100:
			state = mapper.StateFull
		case plugErr == nil && pluggedIn:
			state = mapper.StateNotCharging
		}
		ret.State = ptr.To(state)
	}

	if ret.Level != nil && *ret.Level >= 0 {
		state := mapper.StateUnknown
		if ret.State != nil {
			state = *ret.State
		}
		ret.Status = ptr.To(feed.StatusFromPercent(*ret.Level, state))
	}

	if chargeErr != nil && plugErr != nil && currentErr != nil {
		return feed.Sample{}, errors.Join(ErrNoReading, chargeErr, plugErr, currentErr)
	}
	if chargeErr != nil || plugErr != nil || currentErr != nil {
		logrus.WithFields(logrus.Fields{
			"charge":    chargeErr,
			"pluggedIn": plugErr,
			"current":   currentErr,
		}).Debug("some SMC battery keys are unavailable")
	}

	return ret, nil
}
