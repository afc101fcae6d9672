package propbus

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/charlie0129/battinfo/pkg/battery"
)

// Property is one logical battery property published on the bus.
type Property int

const (
	ChargePercentage Property = iota
	Level
	Energy
	EnergyFull
	ChargingState
	TimeUntilFull
	Current
	Voltage
	Temperature
	ChargerType

	propertyCount
)

// ErrInvalidTable means the property tables do not cover the Property enum
// exactly once. It is a programming error and must abort startup.
var ErrInvalidTable = errors.New("invalid property table")

// NamePrefix is prepended to every property name on the bus.
const NamePrefix = "Battery."

var propertyNames = map[Property]string{
	ChargePercentage: "ChargePercentage",
	Level:            "Level",
	Energy:           "Energy",
	EnergyFull:       "EnergyFull",
	ChargingState:    "ChargingState",
	TimeUntilFull:    "TimeUntilFull",
	Current:          "Current",
	Voltage:          "Voltage",
	Temperature:      "Temperature",
	ChargerType:      "ChargerType",
}

// propertyFields is the handler table: the public fields to re-derive when a
// property changes. Level status depends on both Level and ChargingState.
var propertyFields = map[Property][]battery.Field{
	ChargePercentage: {battery.FieldLevel},
	Level:            {battery.FieldLevelStatus},
	Energy:           {battery.FieldRemainingCapacity},
	EnergyFull:       {battery.FieldMaximumCapacity},
	ChargingState:    {battery.FieldChargingState, battery.FieldLevelStatus},
	TimeUntilFull:    {battery.FieldRemainingChargingTime},
	Current:          {battery.FieldCurrentFlow},
	Voltage:          {battery.FieldVoltage},
	Temperature:      {battery.FieldTemperature},
	ChargerType:      {battery.FieldChargerType},
}

// Properties returns every property in enum order.
func Properties() []Property {
	ret := make([]Property, 0, propertyCount)
	for p := Property(0); p < propertyCount; p++ {
		ret = append(ret, p)
	}
	return ret
}

// Name returns the bus name of p, e.g. "Battery.ChargePercentage".
func (p Property) Name() string {
	return NamePrefix + propertyNames[p]
}

func (p Property) String() string {
	if n, ok := propertyNames[p]; ok {
		return n
	}
	return fmt.Sprintf("Property(%d)", int(p))
}

// PropertyByName looks a property up by its bus name.
func PropertyByName(name string) (Property, bool) {
	for p := Property(0); p < propertyCount; p++ {
		if p.Name() == name {
			return p, true
		}
	}
	return 0, false
}

// validateTables checks that names and handlers have exactly one entry for
// every Property and nothing else.
func validateTables(names map[Property]string, handlers map[Property][]battery.Field) error {
	if len(names) != int(propertyCount) {
		return errors.Wrapf(ErrInvalidTable, "%d names for %d properties", len(names), propertyCount)
	}
	if len(handlers) != int(propertyCount) {
		return errors.Wrapf(ErrInvalidTable, "%d handlers for %d properties", len(handlers), propertyCount)
	}

	seen := make(map[string]Property, len(names))
	for p := Property(0); p < propertyCount; p++ {
		name, ok := names[p]
		if !ok || name == "" {
			return errors.Wrapf(ErrInvalidTable, "property %d has no name", p)
		}
		if other, dup := seen[name]; dup {
			return errors.Wrapf(ErrInvalidTable, "properties %d and %d share name %s", other, p, name)
		}
		seen[name] = p

		if _, ok := handlers[p]; !ok {
			return errors.Wrapf(ErrInvalidTable, "property %s has no handler", name)
		}
	}
	return nil
}
