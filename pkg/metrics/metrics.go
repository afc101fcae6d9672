// Package metrics exports the normalized battery state to Prometheus.
package metrics

import (
	"math"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charlie0129/battinfo/pkg/battery"
	"github.com/charlie0129/battinfo/pkg/dispatch"
)

const namespace = "battinfo"

// Exporter keeps Prometheus collectors in sync with battery changes.
type Exporter struct {
	registry *prometheus.Registry

	notifications *prometheus.CounterVec
	valid         prometheus.Gauge
	values        *prometheus.GaugeVec
	info          *prometheus.GaugeVec
	droppedEvents *prometheus.CounterVec

	mu        sync.Mutex
	infoLabel prometheus.Labels
}

// New creates an Exporter on its own registry, seeded with initial.
func New(initial battery.State) *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Change notifications by field.",
			},
			[]string{"field"},
		),
		valid: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "valid",
			Help:      "1 when the battery information can be trusted.",
		}),
		values: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "battery_value",
				Help:      "Numeric battery fields. Unsupported fields are absent.",
			},
			[]string{"field"},
		),
		info: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "battery_info",
				Help:      "Always 1, labelled with the current enumerated fields.",
			},
			[]string{"chargerType", "chargingState", "levelStatus"},
		),
		droppedEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_dropped_total",
				Help:      "Events a slow event stream subscriber missed, by event name.",
			},
			[]string{"event"},
		),
	}
	e.registry.MustRegister(
		e.notifications,
		e.valid,
		e.values,
		e.info,
		e.droppedEvents,
		collectors.NewGoCollector(),
	)

	for _, f := range battery.Fields() {
		e.setValue(f, initial.Get(f))
	}
	e.setValid(initial.Valid)
	e.setInfo(initial)

	return e
}

// Observe is a batteryinfo observer. s must be the state after the change.
func (e *Exporter) Observe(c dispatch.Change, s battery.State) {
	if c.Kind == dispatch.ValidityChanged {
		e.notifications.WithLabelValues("valid").Inc()
		e.setValid(c.Value.(bool))
		return
	}

	e.notifications.WithLabelValues(c.Field.String()).Inc()
	e.setValue(c.Field, c.Value)
	e.setInfo(s)
}

// EventDropped counts one event a subscriber missed.
func (e *Exporter) EventDropped(name string) {
	e.droppedEvents.WithLabelValues(name).Inc()
}

// Handler serves the registry in the exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

func (e *Exporter) setValid(v bool) {
	if v {
		e.valid.Set(1)
	} else {
		e.valid.Set(0)
	}
}

func (e *Exporter) setValue(f battery.Field, v any) {
	var val float64
	switch n := v.(type) {
	case int:
		if n == battery.Unsupported {
			e.values.DeleteLabelValues(f.String())
			return
		}
		val = float64(n)
	case float64:
		if math.IsNaN(n) {
			e.values.DeleteLabelValues(f.String())
			return
		}
		val = n
	default:
		// Enumerations are exported through the info metric.
		return
	}
	e.values.WithLabelValues(f.String()).Set(val)
}

func (e *Exporter) setInfo(s battery.State) {
	labels := prometheus.Labels{
		"chargerType":   s.ChargerType.String(),
		"chargingState": s.ChargingState.String(),
		"levelStatus":   s.LevelStatus.String(),
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.infoLabel != nil {
		e.info.Delete(e.infoLabel)
	}
	e.info.With(labels).Set(1)
	e.infoLabel = labels
}
