package mapper

import "github.com/charlie0129/battinfo/pkg/battery"

// Native codes of the direct-signal service. Firmware may report codes
// outside these sets; every mapper below is total over int.

// ChargerCode is the charger kind reported by the charger signal.
type ChargerCode = int

const (
	ChargerNone     ChargerCode = 0
	ChargerUSB      ChargerCode = 1
	ChargerDCP      ChargerCode = 2
	ChargerHVDCP    ChargerCode = 3
	ChargerCDP      ChargerCode = 4
	ChargerWireless ChargerCode = 5
	ChargerOther    ChargerCode = 6
)

// BatteryStateCode is reported by the battery state signal.
type BatteryStateCode = int

const (
	StateUnknown     BatteryStateCode = 0
	StateCharging    BatteryStateCode = 1
	StateDischarging BatteryStateCode = 2
	StateNotCharging BatteryStateCode = 3
	StateFull        BatteryStateCode = 4
)

// BatteryStatusCode is reported by the battery status signal.
type BatteryStatusCode = int

const (
	StatusEmpty BatteryStatusCode = 0
	StatusLow   BatteryStatusCode = 1
	StatusOk    BatteryStatusCode = 2
	StatusFull  BatteryStatusCode = 3
)

// ChargerTypeFromCode maps a charger code. "Other" and unlisted codes are Unknown.
func ChargerTypeFromCode(code int) battery.ChargerType {
	switch code {
	case ChargerNone:
		return battery.NoCharger
	case ChargerUSB:
		return battery.USBCharger
	case ChargerDCP, ChargerHVDCP, ChargerCDP:
		return battery.WallCharger
	case ChargerWireless:
		return battery.VariableCurrentCharger
	}
	return battery.UnknownCharger
}

// ChargingStateFromCode maps a battery state code.
func ChargingStateFromCode(code int) battery.ChargingState {
	switch code {
	case StateCharging:
		return battery.Charging
	case StateDischarging, StateNotCharging:
		return battery.Discharging
	case StateFull:
		return battery.Idle
	}
	return battery.UnknownChargingState
}

// LevelStatusFromCode maps a battery status code.
func LevelStatusFromCode(code int) battery.LevelStatus {
	switch code {
	case StatusEmpty:
		return battery.LevelEmpty
	case StatusLow:
		return battery.LevelLow
	case StatusOk:
		return battery.LevelOk
	case StatusFull:
		return battery.LevelFull
	}
	return battery.LevelUnknown
}

// PercentFromCode returns code if it is a valid percentage, Unsupported otherwise.
func PercentFromCode(code int) int {
	if code < 0 || code > 100 {
		return battery.Unsupported
	}
	return code
}
