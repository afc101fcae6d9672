package battery

import "math"

// Field identifies one observable value of the public model.
type Field int

const (
	FieldChargerType Field = iota
	FieldChargingState
	FieldLevelStatus
	FieldLevel
	FieldRemainingCapacity
	FieldMaximumCapacity
	FieldVoltage
	FieldRemainingChargingTime
	FieldCurrentFlow
	FieldTemperature
	FieldCycleCount

	fieldCount
)

var fieldNames = [fieldCount]string{
	FieldChargerType:           "chargerType",
	FieldChargingState:         "chargingState",
	FieldLevelStatus:           "levelStatus",
	FieldLevel:                 "level",
	FieldRemainingCapacity:     "remainingCapacity",
	FieldMaximumCapacity:       "maximumCapacity",
	FieldVoltage:               "voltage",
	FieldRemainingChargingTime: "remainingChargingTime",
	FieldCurrentFlow:           "currentFlow",
	FieldTemperature:           "temperature",
	FieldCycleCount:            "cycleCount",
}

func (f Field) String() string {
	if f < 0 || f >= fieldCount {
		return "invalid"
	}
	return fieldNames[f]
}

// Fields returns every observable field in declaration order.
func Fields() []Field {
	ret := make([]Field, 0, fieldCount)
	for f := Field(0); f < fieldCount; f++ {
		ret = append(ret, f)
	}
	return ret
}

// FieldByName is the inverse of Field.String.
func FieldByName(name string) (Field, bool) {
	for f, n := range fieldNames {
		if n == name {
			return Field(f), true
		}
	}
	return 0, false
}

// Equal compares two field values. NaN equals NaN, so an unsupported
// temperature does not look like a change every time it is re-read.
func Equal(a, b any) bool {
	fa, aok := a.(float64)
	fb, bok := b.(float64)
	if aok && bok {
		if math.IsNaN(fa) && math.IsNaN(fb) {
			return true
		}
		return fa == fb
	}
	return a == b
}

// JSONValue returns v in a form encoding/json accepts. NaN becomes nil.
func JSONValue(v any) any {
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return nil
	}
	return v
}
