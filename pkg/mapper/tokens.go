package mapper

import (
	"math"
	"strconv"
	"strings"

	"github.com/charlie0129/battinfo/pkg/battery"
)

// Property-bus values are free text. Every table carries an explicit
// "unknown" and "" entry, and a token missing from a table is looked up as
// "unknown", so unrecognized and known-unknown tokens cannot diverge.

const unknownToken = "unknown"

var chargerTypeTokens = map[string]battery.ChargerType{
	unknownToken: battery.UnknownCharger,
	"":           battery.UnknownCharger,
	"none":       battery.NoCharger,
	"usb":        battery.USBCharger,
	"dcp":        battery.WallCharger,
	"cdp":        battery.WallCharger,
	"hvdcp":      battery.WallCharger,
	"wireless":   battery.VariableCurrentCharger,
}

var chargingStateTokens = map[string]battery.ChargingState{
	unknownToken:  battery.UnknownChargingState,
	"":            battery.UnknownChargingState,
	"charging":    battery.Charging,
	"discharging": battery.Discharging,
	"notcharging": battery.Discharging,
	"idle":        battery.Idle,
	"full":        battery.Idle,
}

var levelTokens = map[string]battery.LevelStatus{
	unknownToken: battery.LevelUnknown,
	"":           battery.LevelUnknown,
	"empty":      battery.LevelEmpty,
	"low":        battery.LevelLow,
	"normal":     battery.LevelOk,
	"full":       battery.LevelFull,
}

func fromTable[T any](table map[string]T, token string) T {
	if v, ok := table[token]; ok {
		return v
	}
	return table[unknownToken]
}

// ChargerTypeFromToken maps a charger type name.
func ChargerTypeFromToken(token string) battery.ChargerType {
	return fromTable(chargerTypeTokens, token)
}

// ChargingStateFromToken maps a charging state name.
func ChargingStateFromToken(token string) battery.ChargingState {
	return fromTable(chargingStateTokens, token)
}

// LevelBucketFromToken maps a level bucket name without consulting the charging state.
func LevelBucketFromToken(token string) battery.LevelStatus {
	return fromTable(levelTokens, token)
}

// LevelStatusFromTokens derives the level status from the level bucket and
// charging state tokens. See ResolveLevelStatus for the precedence.
func LevelStatusFromTokens(level, chargingState string) battery.LevelStatus {
	return ResolveLevelStatus(LevelBucketFromToken(level), ChargingStateFromToken(chargingState))
}

// ResolveLevelStatus combines a discrete level bucket with the charging state.
// An explicit empty or low bucket always wins. Otherwise an idle battery on a
// known bucket is full. An unknown bucket stays unknown whatever the state.
func ResolveLevelStatus(bucket battery.LevelStatus, state battery.ChargingState) battery.LevelStatus {
	switch bucket {
	case battery.LevelEmpty, battery.LevelLow:
		return bucket
	case battery.LevelOk, battery.LevelFull:
		if state == battery.Idle {
			return battery.LevelFull
		}
		return bucket
	}
	return battery.LevelUnknown
}

// IntFromToken parses a numeric token. Anything that is not a finite number
// is Unsupported.
func IntFromToken(token string) int {
	f, ok := parseFloat(token)
	if !ok || f > math.MaxInt32 || f < math.MinInt32 {
		return battery.Unsupported
	}
	return int(math.Round(f))
}

// PercentFromToken parses a percentage, Unsupported when outside 0..100.
func PercentFromToken(token string) int {
	v := IntFromToken(token)
	if v == battery.Unsupported {
		return v
	}
	return PercentFromCode(v)
}

// TemperatureFromTenths converts tenths of a degree Celsius to degrees.
func TemperatureFromTenths(tenths int) float64 {
	return float64(tenths) / 10
}

// TemperatureFromToken parses tenths of a degree. NaN when unparsable.
func TemperatureFromToken(token string) float64 {
	f, ok := parseFloat(token)
	if !ok {
		return battery.UnsupportedTemperature()
	}
	return f / 10
}

func parseFloat(token string) (float64, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(token, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
