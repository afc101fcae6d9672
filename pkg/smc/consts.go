//go:build darwin

package smc

// SMC keys of the battery on Apple Silicon.
const (
	ACPowerKey        = "AC-W"
	ChargingKey1      = "CH0B"
	BatteryChargeKey  = "BUIC"
	BatteryCurrentKey = "B0AC"
)
