// Package mirror copies the battery state into redis: a JSON snapshot under
// one key and every change notification on a pub/sub channel.
package mirror

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battinfo/pkg/battery"
	"github.com/charlie0129/battinfo/pkg/dispatch"
	"github.com/charlie0129/battinfo/pkg/events"
)

const (
	DefaultKey     = "battinfo:state:0"
	DefaultChannel = "battinfo:events"

	// maxPending bounds the events kept while redis is slow.
	maxPending = 64
)

// Options configures the mirror.
type Options struct {
	Addr     string
	Password string
	DB       int
	Key      string
	Channel  string
	TTL      time.Duration
}

// store is the part of redis the mirror writes to.
type store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Publish(ctx context.Context, channel string, msg []byte) error
	Ping(ctx context.Context) error
	Close() error
}

type redisStore struct{ rdb *redis.Client }

func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s *redisStore) Publish(ctx context.Context, channel string, msg []byte) error {
	return s.rdb.Publish(ctx, channel, msg).Err()
}

func (s *redisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *redisStore) Close() error {
	return s.rdb.Close()
}

type pendingEvent struct {
	name    string
	payload any
}

// Mirror hands snapshots from the control goroutine to its own writer
// goroutine. Observe never blocks and never does I/O.
type Mirror struct {
	store   store
	key     string
	channel string
	ttl     time.Duration

	mu      sync.Mutex
	state   battery.State
	seeded  bool
	dirty   bool
	pending []pendingEvent
	dropped int
	ready   chan struct{}
}

// New connects lazily to the redis server in opts.
func New(opts Options) *Mirror {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return newMirror(&redisStore{rdb: rdb}, opts)
}

func newMirror(s store, opts Options) *Mirror {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.Channel == "" {
		opts.Channel = DefaultChannel
	}
	return &Mirror{
		store:   s,
		key:     opts.Key,
		channel: opts.Channel,
		ttl:     opts.TTL,
		ready:   make(chan struct{}, 1),
	}
}

// Ping checks that redis is reachable.
func (m *Mirror) Ping(ctx context.Context) error {
	if err := m.store.Ping(ctx); err != nil {
		return pkgerrors.Wrap(err, "failed to ping redis")
	}
	return nil
}

// Seed schedules a write of the initial snapshot.
func (m *Mirror) Seed(s battery.State) {
	m.mu.Lock()
	m.state = s
	m.seeded = true
	m.dirty = true
	m.mu.Unlock()
	m.signal()
}

// Observe records a change and the state after it.
func (m *Mirror) Observe(c dispatch.Change, s battery.State) {
	name, payload := events.Payload(c, time.Now())

	m.mu.Lock()
	m.state = s
	m.seeded = true
	m.dirty = true
	if len(m.pending) >= maxPending {
		m.pending = m.pending[1:]
		m.dropped++
	}
	m.pending = append(m.pending, pendingEvent{name: name, payload: payload})
	m.mu.Unlock()

	m.signal()
}

func (m *Mirror) signal() {
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// Run writes to redis until ctx is done, then closes the connection.
// With a TTL the snapshot is rewritten every TTL/2 so the key outlives
// quiet periods.
func (m *Mirror) Run(ctx context.Context) {
	defer func() {
		if err := m.store.Close(); err != nil {
			logrus.WithError(err).Warn("failed to close redis connection")
		}
	}()

	var refresh <-chan time.Time
	if m.ttl > 0 {
		ticker := time.NewTicker(m.ttl / 2)
		defer ticker.Stop()
		refresh = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.ready:
			m.flush(ctx)
		case <-refresh:
			m.markStale()
			m.flush(ctx)
		}
	}
}

// markStale forces the next flush to rewrite the snapshot.
func (m *Mirror) markStale() {
	m.mu.Lock()
	m.dirty = m.seeded
	m.mu.Unlock()
}

func (m *Mirror) flush(ctx context.Context) {
	m.mu.Lock()
	state, dirty := m.state, m.dirty
	pending, dropped := m.pending, m.dropped
	m.dirty = false
	m.pending = nil
	m.dropped = 0
	m.mu.Unlock()

	if dropped > 0 {
		logrus.WithField("dropped", dropped).Warn("redis mirror fell behind, events dropped")
	}

	if dirty {
		b, err := json.Marshal(state)
		if err != nil {
			logrus.WithError(err).Error("failed to encode battery state")
		} else if err := m.store.Set(ctx, m.key, b, m.ttl); err != nil {
			logrus.WithError(err).WithField("key", m.key).Warn("failed to mirror battery state")
		}
	}

	for _, ev := range pending {
		b, err := json.Marshal(struct {
			Name string `json:"name"`
			Data any    `json:"data"`
		}{ev.name, ev.payload})
		if err != nil {
			logrus.WithError(err).WithField("event", ev.name).Error("failed to encode event")
			continue
		}
		if err := m.store.Publish(ctx, m.channel, b); err != nil {
			logrus.WithError(err).WithField("channel", m.channel).Warn("failed to publish battery event")
		}
	}
}
