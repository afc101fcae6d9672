package config

import "time"

// Backend names the transport the daemon normalizes.
type Backend string

const (
	BackendSignal  Backend = "signal"
	BackendPropBus Backend = "propbus"
)

// Source names the feed that drives a signal backend.
type Source string

const (
	SourcePlatform Source = "platform"
	SourceSMC      Source = "smc"
	SourceNone     Source = "none"
)

// MQTT holds the property bus broker settings.
type MQTT struct {
	Broker      string `json:"broker,omitempty" yaml:"broker,omitempty"`
	Username    string `json:"username,omitempty" yaml:"username,omitempty"`
	Password    string `json:"password,omitempty" yaml:"password,omitempty"`
	ClientID    string `json:"clientID,omitempty" yaml:"clientID,omitempty"`
	TopicPrefix string `json:"topicPrefix,omitempty" yaml:"topicPrefix,omitempty"`
}

// Redis holds the state mirror settings. An empty Addr disables the mirror.
type Redis struct {
	Addr       string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Password   string `json:"password,omitempty" yaml:"password,omitempty"`
	DB         int    `json:"db,omitempty" yaml:"db,omitempty"`
	Key        string `json:"key,omitempty" yaml:"key,omitempty"`
	Channel    string `json:"channel,omitempty" yaml:"channel,omitempty"`
	TTLSeconds int    `json:"ttlSeconds,omitempty" yaml:"ttlSeconds,omitempty"`
}

type Config interface {
	Backend() Backend
	Source() Source
	SampleInterval() time.Duration
	AllowNonRootAccess() bool
	MQTT() MQTT
	Redis() Redis

	SetBackend(Backend)
	SetSource(Source)
	SetSampleInterval(time.Duration)
	SetAllowNonRootAccess(bool)

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}
