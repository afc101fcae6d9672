package daemon

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battinfo/pkg/backend"
	"github.com/charlie0129/battinfo/pkg/backend/propbus"
	"github.com/charlie0129/battinfo/pkg/backend/signal"
	"github.com/charlie0129/battinfo/pkg/batteryinfo"
	"github.com/charlie0129/battinfo/pkg/config"
	"github.com/charlie0129/battinfo/pkg/feed"
	"github.com/charlie0129/battinfo/pkg/mqttbus"
	"github.com/charlie0129/battinfo/pkg/platform"
)

// buildBackend selects the backend named in conf. The returned loop is nil
// when nothing needs sampling. The returned func releases the transport.
func buildBackend(conf config.Config) (*batteryinfo.Info, *feed.Loop, func(), error) {
	mb := backend.NewMailbox()

	switch conf.Backend() {
	case config.BackendSignal:
		emitter := signal.NewEmitter()
		src, closeSource, err := newSource(conf.Source())
		if err != nil {
			return nil, nil, nil, err
		}
		a, err := signal.New(emitter, mb)
		if err != nil {
			closeSource()
			return nil, nil, nil, pkgerrors.Wrap(err, "failed to create signal backend")
		}

		var loop *feed.Loop
		if src != nil {
			loop = feed.NewLoop(src, emitter, conf.SampleInterval())
			// The first sample lands before seeding so the initial state is
			// not all unknown.
			loop.Once()
		}
		return batteryinfo.New(a, mb), loop, closeSource, nil

	case config.BackendPropBus:
		m := conf.MQTT()
		bus := mqttbus.New(mqttbus.Options{
			Broker:      m.Broker,
			Username:    m.Username,
			Password:    m.Password,
			ClientID:    m.ClientID,
			TopicPrefix: m.TopicPrefix,
		})
		if err := bus.Connect(); err != nil {
			logrus.WithError(err).Warn("mqtt broker not reachable yet, properties stay invalid until it is")
		}
		a, err := propbus.New(bus, mb)
		if err != nil {
			bus.Close()
			return nil, nil, nil, pkgerrors.Wrap(err, "failed to create property bus backend")
		}
		return batteryinfo.New(a, mb), nil, bus.Close, nil
	}

	return nil, nil, nil, fmt.Errorf("unknown backend %q", conf.Backend())
}

// newSource returns the feed for a signal backend, or nil for SourceNone.
func newSource(s config.Source) (feed.Source, func(), error) {
	switch s {
	case config.SourcePlatform:
		return platform.New(), func() {}, nil
	case config.SourceSMC:
		return newSMCSource()
	case config.SourceNone:
		return nil, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown source %q", s)
}
