package propbus

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/battinfo/pkg/backend"
	"github.com/charlie0129/battinfo/pkg/battery"
)

func TestEveryPropertyHasExactlyOneEntry(t *testing.T) {
	for _, p := range Properties() {
		assert.Contains(t, propertyNames, p, "property %d has no name", p)
		assert.Contains(t, propertyFields, p, "property %s has no handler", p)
	}
	assert.Len(t, propertyNames, int(propertyCount))
	assert.Len(t, propertyFields, int(propertyCount))
	require.NoError(t, validateTables(propertyNames, propertyFields))
}

func TestBusNames(t *testing.T) {
	want := []string{
		"Battery.ChargePercentage",
		"Battery.Level",
		"Battery.Energy",
		"Battery.EnergyFull",
		"Battery.ChargingState",
		"Battery.TimeUntilFull",
		"Battery.Current",
		"Battery.Voltage",
		"Battery.Temperature",
		"Battery.ChargerType",
	}
	var got []string
	for _, p := range Properties() {
		got = append(got, p.Name())
	}
	assert.Equal(t, want, got)

	p, ok := PropertyByName("Battery.Temperature")
	assert.True(t, ok)
	assert.Equal(t, Temperature, p)
	_, ok = PropertyByName("Temperature")
	assert.False(t, ok)
}

func TestValidateTablesDetectsDrift(t *testing.T) {
	copyNames := func() map[Property]string {
		m := make(map[Property]string, len(propertyNames))
		for k, v := range propertyNames {
			m[k] = v
		}
		return m
	}
	copyHandlers := func() map[Property][]battery.Field {
		m := make(map[Property][]battery.Field, len(propertyFields))
		for k, v := range propertyFields {
			m[k] = v
		}
		return m
	}

	tests := []struct {
		name   string
		mutate func(map[Property]string, map[Property][]battery.Field)
	}{
		{"missing name", func(n map[Property]string, _ map[Property][]battery.Field) { delete(n, Voltage) }},
		{"missing handler", func(_ map[Property]string, h map[Property][]battery.Field) { delete(h, Current) }},
		{"extra handler", func(_ map[Property]string, h map[Property][]battery.Field) { h[propertyCount] = nil }},
		{"duplicate name", func(n map[Property]string, _ map[Property][]battery.Field) { n[Level] = "Voltage" }},
		{"renamed key", func(n map[Property]string, _ map[Property][]battery.Field) {
			delete(n, Energy)
			n[propertyCount+1] = "Energy"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, h := copyNames(), copyHandlers()
			tt.mutate(n, h)
			err := validateTables(n, h)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidTable))
		})
	}
}

func TestAdapterReadsBus(t *testing.T) {
	bus := NewMemoryBus()
	bus.Publish("Battery.ChargePercentage", "64")
	bus.Publish("Battery.Level", "normal")
	bus.Publish("Battery.Energy", "2100")
	bus.Publish("Battery.EnergyFull", "3000")
	bus.Publish("Battery.ChargingState", "charging")
	bus.Publish("Battery.TimeUntilFull", "1800")
	bus.Publish("Battery.Current", "-450")
	bus.Publish("Battery.Voltage", "3900")
	bus.Publish("Battery.Temperature", "237")
	bus.Publish("Battery.ChargerType", "dcp")

	a, err := New(bus, backend.NewMailbox())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, battery.WallCharger, a.Read(battery.FieldChargerType))
	assert.Equal(t, battery.Charging, a.Read(battery.FieldChargingState))
	assert.Equal(t, battery.LevelOk, a.Read(battery.FieldLevelStatus))
	assert.Equal(t, 64, a.Read(battery.FieldLevel))
	assert.Equal(t, 2100, a.Read(battery.FieldRemainingCapacity))
	assert.Equal(t, 3000, a.Read(battery.FieldMaximumCapacity))
	assert.Equal(t, 3900, a.Read(battery.FieldVoltage))
	assert.Equal(t, 1800, a.Read(battery.FieldRemainingChargingTime))
	assert.Equal(t, -450, a.Read(battery.FieldCurrentFlow))
	assert.InDelta(t, 23.7, a.Read(battery.FieldTemperature).(float64), 1e-9)
	assert.Equal(t, battery.Unsupported, a.Read(battery.FieldCycleCount))

	assert.Equal(t, "dcp", a.CurrentValue("Battery.ChargerType"))
	assert.True(t, a.IsValid("Battery.ChargerType"))
	assert.Nil(t, a.CurrentValue("Battery.Nope"))
	assert.False(t, a.IsValid("Battery.Nope"))
	assert.True(t, a.Validity().Valid())
}

func TestAdapterEmptyBus(t *testing.T) {
	a, err := New(NewMemoryBus(), backend.NewMailbox())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, battery.UnknownCharger, a.Read(battery.FieldChargerType))
	assert.Equal(t, battery.UnknownChargingState, a.Read(battery.FieldChargingState))
	assert.Equal(t, battery.LevelUnknown, a.Read(battery.FieldLevelStatus))
	assert.Equal(t, battery.Unsupported, a.Read(battery.FieldLevel))
	assert.True(t, math.IsNaN(a.Read(battery.FieldTemperature).(float64)))
	assert.False(t, a.Validity().Valid())
	assert.Len(t, a.Topics(), int(propertyCount))
}

func TestUnsetPropertyReadsAsMissing(t *testing.T) {
	bus := NewMemoryBus()
	bus.Publish("Battery.ChargingState", "idle")
	mb := backend.NewMailbox()
	a, err := New(bus, mb)
	require.NoError(t, err)
	defer a.Close()
	mb.Drain()

	bus.Unset("Battery.ChargingState")
	assert.Equal(t, []backend.Update{
		{Topic: "Battery.ChargingState", Change: backend.ValueChanged | backend.ValidityChanged},
	}, mb.Drain())
	assert.Equal(t, battery.UnknownChargingState, a.Read(battery.FieldChargingState))
	assert.False(t, a.Validity().Valid())
}

func TestFieldsPerProperty(t *testing.T) {
	a, err := New(NewMemoryBus(), backend.NewMailbox())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t,
		[]battery.Field{battery.FieldChargingState, battery.FieldLevelStatus},
		a.Fields("Battery.ChargingState"))
	assert.Equal(t, []battery.Field{battery.FieldLevelStatus}, a.Fields("Battery.Level"))
	assert.Equal(t, []battery.Field{battery.FieldLevel}, a.Fields("Battery.ChargePercentage"))
	assert.Nil(t, a.Fields("Battery.Nope"))
}

type brokenBus struct {
	*MemoryBus
	failOn string
}

func (b *brokenBus) Subscribe(name string, fn func(Value)) (func(), error) {
	if name == b.failOn {
		return nil, errors.New("bus unavailable")
	}
	return b.MemoryBus.Subscribe(name, fn)
}

func TestPartialSubscribeFailureReleases(t *testing.T) {
	bus := NewMemoryBus()
	_, err := New(&brokenBus{MemoryBus: bus, failOn: "Battery.Voltage"}, backend.NewMailbox())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Battery.Voltage")

	for _, p := range Properties() {
		assert.Equal(t, 0, bus.Subscribers(p.Name()), "%s leaked", p.Name())
	}
}

func TestCloseUnsubscribes(t *testing.T) {
	bus := NewMemoryBus()
	a, err := New(bus, backend.NewMailbox())
	require.NoError(t, err)
	assert.Equal(t, 1, bus.Subscribers("Battery.Level"))
	require.NoError(t, a.Close())
	assert.Equal(t, 0, bus.Subscribers("Battery.Level"))
}
