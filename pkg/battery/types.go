package battery

import (
	"fmt"
	"math"
)

// Only one battery is supported. Both backends describe a single pack, so
// these are fixed rather than discovered.
const (
	BatteryCount = 1
	BatteryIndex = 0
)

// Unsupported is reported by integer metrics the active backend cannot produce.
const Unsupported = -1

// UnsupportedTemperature is reported when the active backend has no temperature.
func UnsupportedTemperature() float64 { return math.NaN() }

// ChargerType is the kind of charger currently connected.
type ChargerType int

const (
	UnknownCharger ChargerType = iota
	NoCharger
	USBCharger
	WallCharger
	VariableCurrentCharger
)

var chargerTypeNames = [...]string{"unknown", "none", "usb", "wall", "variableCurrent"}

func (t ChargerType) String() string {
	if t < 0 || int(t) >= len(chargerTypeNames) {
		return chargerTypeNames[UnknownCharger]
	}
	return chargerTypeNames[t]
}

func (t ChargerType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *ChargerType) UnmarshalText(b []byte) error {
	i, err := lookup(chargerTypeNames[:], string(b))
	if err != nil {
		return err
	}
	*t = ChargerType(i)
	return nil
}

// ChargingState is the normalized charging state.
type ChargingState int

const (
	UnknownChargingState ChargingState = iota
	Charging
	Discharging
	Idle
)

var chargingStateNames = [...]string{"unknown", "charging", "discharging", "idle"}

func (s ChargingState) String() string {
	if s < 0 || int(s) >= len(chargingStateNames) {
		return chargingStateNames[UnknownChargingState]
	}
	return chargingStateNames[s]
}

func (s ChargingState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *ChargingState) UnmarshalText(b []byte) error {
	i, err := lookup(chargingStateNames[:], string(b))
	if err != nil {
		return err
	}
	*s = ChargingState(i)
	return nil
}

// LevelStatus is the coarse charge bucket.
type LevelStatus int

const (
	LevelUnknown LevelStatus = iota
	LevelEmpty
	LevelLow
	LevelOk
	LevelFull
)

var levelStatusNames = [...]string{"unknown", "empty", "low", "ok", "full"}

func (l LevelStatus) String() string {
	if l < 0 || int(l) >= len(levelStatusNames) {
		return levelStatusNames[LevelUnknown]
	}
	return levelStatusNames[l]
}

func (l LevelStatus) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *LevelStatus) UnmarshalText(b []byte) error {
	i, err := lookup(levelStatusNames[:], string(b))
	if err != nil {
		return err
	}
	*l = LevelStatus(i)
	return nil
}

func lookup(names []string, name string) (int, error) {
	for i, n := range names {
		if n == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("invalid value %q", name)
}
