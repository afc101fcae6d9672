package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/charlie0129/battinfo/pkg/utils/ptr"
)

const (
	EnvMQTTPassword  = "BATTINFO_MQTT_PASSWORD"
	EnvRedisPassword = "BATTINFO_REDIS_PASSWORD"
)

var (
	defaultFileConfig = &RawFileConfig{
		Backend:               ptr.To(BackendSignal),
		Source:                ptr.To(SourcePlatform),
		SampleIntervalSeconds: ptr.To(10),
		AllowNonRootAccess:    ptr.To(false),
	}
)

var _ Config = &File{}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = &RawFileConfig{}
	}

	f := &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}

	return f
}

type RawFileConfig struct {
	Backend               *Backend `json:"backend,omitempty" yaml:"backend,omitempty"`
	Source                *Source  `json:"source,omitempty" yaml:"source,omitempty"`
	SampleIntervalSeconds *int     `json:"sampleIntervalSeconds,omitempty" yaml:"sampleIntervalSeconds,omitempty"`
	AllowNonRootAccess    *bool    `json:"allowNonRootAccess,omitempty" yaml:"allowNonRootAccess,omitempty"`
	MQTT                  *MQTT    `json:"mqtt,omitempty" yaml:"mqtt,omitempty"`
	Redis                 *Redis   `json:"redis,omitempty" yaml:"redis,omitempty"`
}

// Validate reports values the daemon cannot start with.
func (c *RawFileConfig) Validate() error {
	if c.Backend != nil {
		switch *c.Backend {
		case BackendSignal, BackendPropBus:
		default:
			return fmt.Errorf("unknown backend %q, want %q or %q", *c.Backend, BackendSignal, BackendPropBus)
		}
	}
	if c.Source != nil {
		switch *c.Source {
		case SourcePlatform, SourceSMC, SourceNone:
		default:
			return fmt.Errorf("unknown source %q", *c.Source)
		}
	}
	if c.SampleIntervalSeconds != nil && *c.SampleIntervalSeconds <= 0 {
		return fmt.Errorf("sampleIntervalSeconds must be positive, got %d", *c.SampleIntervalSeconds)
	}
	if c.Backend != nil && *c.Backend == BackendPropBus && (c.MQTT == nil || c.MQTT.Broker == "") {
		return fmt.Errorf("backend %q needs mqtt.broker", BackendPropBus)
	}
	return nil
}

// Validate checks the in-memory settings, including ones changed by the
// setters since the last Load.
func (f *File) Validate() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.c.Validate()
}

func (f *File) Backend() Backend {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.Backend != nil {
		return *f.c.Backend
	}
	return *defaultFileConfig.Backend
}

func (f *File) Source() Source {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.Source != nil {
		return *f.c.Source
	}
	return *defaultFileConfig.Source
}

func (f *File) SampleInterval() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()

	seconds := *defaultFileConfig.SampleIntervalSeconds
	if f.c.SampleIntervalSeconds != nil {
		seconds = *f.c.SampleIntervalSeconds
	}
	return time.Duration(seconds) * time.Second
}

func (f *File) AllowNonRootAccess() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.AllowNonRootAccess != nil {
		return *f.c.AllowNonRootAccess
	}
	return *defaultFileConfig.AllowNonRootAccess
}

// MQTT returns the broker settings with the password taken from the
// environment when set there.
func (f *File) MQTT() MQTT {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var m MQTT
	if f.c.MQTT != nil {
		m = *f.c.MQTT
	}
	if pw, ok := os.LookupEnv(EnvMQTTPassword); ok {
		m.Password = pw
	}
	return m
}

func (f *File) Redis() Redis {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var r Redis
	if f.c.Redis != nil {
		r = *f.c.Redis
	}
	if pw, ok := os.LookupEnv(EnvRedisPassword); ok {
		r.Password = pw
	}
	return r
}

func (f *File) SetBackend(b Backend) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.Backend = &b
}

func (f *File) SetSource(s Source) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.Source = &s
}

func (f *File) SetSampleInterval(d time.Duration) {
	if d < time.Second {
		panic("sample interval must be at least one second")
	}

	seconds := int(d / time.Second)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.SampleIntervalSeconds = &seconds
}

func (f *File) SetAllowNonRootAccess(b bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.AllowNonRootAccess = &b
}

func (f *File) isYAML() bool {
	switch strings.ToLower(filepath.Ext(f.filepath)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// A missing file means all defaults. Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	if f.isYAML() {
		err = yaml.Unmarshal(b, &conf)
	} else {
		err = json.Unmarshal(b, &conf)
	}
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	if err := conf.Validate(); err != nil {
		return pkgerrors.Wrapf(err, "invalid config in file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	if f.isYAML() {
		enc := yaml.NewEncoder(fp)
		enc.SetIndent(2)
		err = enc.Encode(f.c)
		if err == nil {
			err = enc.Close()
		}
	} else {
		enc := json.NewEncoder(fp)
		enc.SetIndent("", "  ")
		err = enc.Encode(f.c)
	}
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

// LogrusFields lists the effective settings. Passwords are never logged.
func (f *File) LogrusFields() logrus.Fields {
	m := f.MQTT()
	r := f.Redis()
	return logrus.Fields{
		"backend":            f.Backend(),
		"source":             f.Source(),
		"sampleInterval":     f.SampleInterval().String(),
		"allowNonRootAccess": f.AllowNonRootAccess(),
		"mqttBroker":         m.Broker,
		"mqttTopicPrefix":    m.TopicPrefix,
		"redisAddr":          r.Addr,
	}
}
