package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/battinfo/pkg/battery"
	"github.com/charlie0129/battinfo/pkg/dispatch"
)

func TestSeededFromState(t *testing.T) {
	s := battery.UnknownState()
	s.Level = 42
	e := New(s)

	assert.Equal(t, 42.0, testutil.ToFloat64(e.values.WithLabelValues("level")))
	assert.Equal(t, 1, testutil.CollectAndCount(e.values), "unsupported fields are absent")
	assert.Equal(t, 0.0, testutil.ToFloat64(e.valid))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.info.WithLabelValues("unknown", "unknown", "unknown")))
}

func TestObserve(t *testing.T) {
	e := New(battery.UnknownState())

	s := battery.UnknownState()
	s.Temperature = 23.7
	e.Observe(dispatch.Change{Kind: dispatch.FieldChanged, Field: battery.FieldTemperature, Value: 23.7}, s)
	assert.InDelta(t, 23.7, testutil.ToFloat64(e.values.WithLabelValues("temperature")), 1e-9)

	s.ChargingState = battery.Charging
	e.Observe(dispatch.Change{Kind: dispatch.FieldChanged, Field: battery.FieldChargingState, Value: battery.Charging}, s)
	assert.Equal(t, 1, testutil.CollectAndCount(e.info), "old info series is replaced")
	assert.Equal(t, 1.0, testutil.ToFloat64(e.info.WithLabelValues("unknown", "charging", "unknown")))

	e.Observe(dispatch.Change{Kind: dispatch.ValidityChanged, Value: true}, s)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.valid))

	s.Temperature = battery.UnsupportedTemperature()
	e.Observe(dispatch.Change{Kind: dispatch.FieldChanged, Field: battery.FieldTemperature, Value: s.Temperature}, s)
	assert.Equal(t, 0, testutil.CollectAndCount(e.values))

	assert.Equal(t, 2.0, testutil.ToFloat64(e.notifications.WithLabelValues("temperature")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.notifications.WithLabelValues("chargingState")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.notifications.WithLabelValues("valid")))
}

func TestHandler(t *testing.T) {
	e := New(battery.UnknownState())
	e.Observe(dispatch.Change{Kind: dispatch.ValidityChanged, Value: true}, battery.UnknownState())

	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "battinfo_valid 1")
	assert.Contains(t, string(body), `battinfo_notifications_total{field="valid"} 1`)
}

func TestEventDropped(t *testing.T) {
	e := New(battery.UnknownState())
	e.EventDropped("battery.level")
	e.EventDropped("battery.level")
	e.EventDropped("battery.valid")

	assert.Equal(t, 2.0, testutil.ToFloat64(e.droppedEvents.WithLabelValues("battery.level")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.droppedEvents.WithLabelValues("battery.valid")))
}
