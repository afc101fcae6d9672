package battery

import (
	"encoding/json"
	"fmt"
	"math"
)

// State is a snapshot of every observable field.
// Units:
// - Level: percent
// - RemainingCapacity, MaximumCapacity: as reported by the backend (mAh or mWh)
// - Voltage: mV
// - RemainingChargingTime: seconds
// - CurrentFlow: mA
// - Temperature: degrees Celsius
type State struct {
	ChargerType           ChargerType
	ChargingState         ChargingState
	LevelStatus           LevelStatus
	Level                 int
	RemainingCapacity     int
	MaximumCapacity       int
	Voltage               int
	RemainingChargingTime int
	CurrentFlow           int
	Temperature           float64
	CycleCount            int
	Valid                 bool
}

// UnknownState returns a state in which nothing is known or supported.
func UnknownState() State {
	return State{
		ChargerType:           UnknownCharger,
		ChargingState:         UnknownChargingState,
		LevelStatus:           LevelUnknown,
		Level:                 Unsupported,
		RemainingCapacity:     Unsupported,
		MaximumCapacity:       Unsupported,
		Voltage:               Unsupported,
		RemainingChargingTime: Unsupported,
		CurrentFlow:           Unsupported,
		Temperature:           UnsupportedTemperature(),
		CycleCount:            Unsupported,
	}
}

// Get returns the value of field f.
func (s *State) Get(f Field) any {
	switch f {
	case FieldChargerType:
		return s.ChargerType
	case FieldChargingState:
		return s.ChargingState
	case FieldLevelStatus:
		return s.LevelStatus
	case FieldLevel:
		return s.Level
	case FieldRemainingCapacity:
		return s.RemainingCapacity
	case FieldMaximumCapacity:
		return s.MaximumCapacity
	case FieldVoltage:
		return s.Voltage
	case FieldRemainingChargingTime:
		return s.RemainingChargingTime
	case FieldCurrentFlow:
		return s.CurrentFlow
	case FieldTemperature:
		return s.Temperature
	case FieldCycleCount:
		return s.CycleCount
	}
	return nil
}

// Set stores v into field f. The dynamic type of v must match the field.
func (s *State) Set(f Field, v any) error {
	ok := false
	switch f {
	case FieldChargerType:
		s.ChargerType, ok = v.(ChargerType)
	case FieldChargingState:
		s.ChargingState, ok = v.(ChargingState)
	case FieldLevelStatus:
		s.LevelStatus, ok = v.(LevelStatus)
	case FieldLevel:
		s.Level, ok = v.(int)
	case FieldRemainingCapacity:
		s.RemainingCapacity, ok = v.(int)
	case FieldMaximumCapacity:
		s.MaximumCapacity, ok = v.(int)
	case FieldVoltage:
		s.Voltage, ok = v.(int)
	case FieldRemainingChargingTime:
		s.RemainingChargingTime, ok = v.(int)
	case FieldCurrentFlow:
		s.CurrentFlow, ok = v.(int)
	case FieldTemperature:
		s.Temperature, ok = v.(float64)
	case FieldCycleCount:
		s.CycleCount, ok = v.(int)
	default:
		return fmt.Errorf("unknown field %d", f)
	}
	if !ok {
		return fmt.Errorf("value %v (%T) does not fit field %s", v, v, f)
	}
	return nil
}

type stateJSON struct {
	ChargerType           ChargerType   `json:"chargerType"`
	ChargingState         ChargingState `json:"chargingState"`
	LevelStatus           LevelStatus   `json:"levelStatus"`
	Level                 int           `json:"level"`
	RemainingCapacity     int           `json:"remainingCapacity"`
	MaximumCapacity       int           `json:"maximumCapacity"`
	Voltage               int           `json:"voltage"`
	RemainingChargingTime int           `json:"remainingChargingTime"`
	CurrentFlow           int           `json:"currentFlow"`
	// Temperature is null when unsupported.
	Temperature *float64 `json:"temperature"`
	CycleCount  int      `json:"cycleCount"`
	Valid       bool     `json:"valid"`
}

func (s State) MarshalJSON() ([]byte, error) {
	out := stateJSON{
		ChargerType:           s.ChargerType,
		ChargingState:         s.ChargingState,
		LevelStatus:           s.LevelStatus,
		Level:                 s.Level,
		RemainingCapacity:     s.RemainingCapacity,
		MaximumCapacity:       s.MaximumCapacity,
		Voltage:               s.Voltage,
		RemainingChargingTime: s.RemainingChargingTime,
		CurrentFlow:           s.CurrentFlow,
		CycleCount:            s.CycleCount,
		Valid:                 s.Valid,
	}
	if !math.IsNaN(s.Temperature) && !math.IsInf(s.Temperature, 0) {
		t := s.Temperature
		out.Temperature = &t
	}
	return json.Marshal(out)
}

func (s *State) UnmarshalJSON(b []byte) error {
	var in stateJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*s = State{
		ChargerType:           in.ChargerType,
		ChargingState:         in.ChargingState,
		LevelStatus:           in.LevelStatus,
		Level:                 in.Level,
		RemainingCapacity:     in.RemainingCapacity,
		MaximumCapacity:       in.MaximumCapacity,
		Voltage:               in.Voltage,
		RemainingChargingTime: in.RemainingChargingTime,
		CurrentFlow:           in.CurrentFlow,
		Temperature:           UnsupportedTemperature(),
		CycleCount:            in.CycleCount,
		Valid:                 in.Valid,
	}
	if in.Temperature != nil {
		s.Temperature = *in.Temperature
	}
	return nil
}
