package events

import (
	"encoding/json"
	"time"

	"github.com/charlie0129/battinfo/pkg/battery"
	"github.com/charlie0129/battinfo/pkg/dispatch"
)

// Event name constants. Field events are named FieldPrefix + field name,
// e.g. "battery.level".
const (
	FieldPrefix  = "battery."
	BatteryValid = "battery.valid"
)

// Event is a generic SSE event from daemon.
type Event struct {
	Name string          // SSE event name
	Data json.RawMessage // Raw JSON payload
}

// FieldChangedEvent is the typed payload of every battery.<field> event.
// Value is null for an unsupported temperature.
type FieldChangedEvent struct {
	Field string `json:"field"`
	Value any    `json:"value"`
	Ts    int64  `json:"ts"`
}

// ValidityChangedEvent is the typed payload for battery.valid.
type ValidityChangedEvent struct {
	Valid bool  `json:"valid"`
	Ts    int64 `json:"ts"`
}

// FieldEventName returns the event name of f.
func FieldEventName(f battery.Field) string {
	return FieldPrefix + f.String()
}

// Payload returns the event name and typed payload of c, stamped with now.
func Payload(c dispatch.Change, now time.Time) (string, any) {
	if c.Kind == dispatch.ValidityChanged {
		return BatteryValid, ValidityChangedEvent{Valid: c.Value.(bool), Ts: now.Unix()}
	}
	return FieldEventName(c.Field), FieldChangedEvent{
		Field: c.Field.String(),
		Value: battery.JSONValue(c.Value),
		Ts:    now.Unix(),
	}
}

// DecodeAs decodes the event payload into the caller-specified generic type T.
// It ignores the event name and simply unmarshals Data into T. If Data is empty,
// it returns the zero value of T with a nil error.
//
// Example:
//
//	payload, err := events.DecodeAs[events.ValidityChangedEvent](ev)
//	if err != nil { /* handle */ }
//	fmt.Println(payload.Valid)
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
