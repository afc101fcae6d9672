package feed

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battinfo/pkg/backend/signal"
)

// DefaultInterval is used when no sample interval is configured.
const DefaultInterval = 10 * time.Second

// Health describes how regularly a Loop has been sampling.
type Health struct {
	Source          string    `json:"source"`
	IntervalSeconds float64   `json:"intervalSeconds"`
	LastSample      time.Time `json:"lastSample"`
	RecentSamples   int       `json:"recentSamples"`
	ExpectedSamples int       `json:"expectedSamples"`
	LastError       string    `json:"lastError,omitempty"`
}

// Loop samples a Source at a fixed interval.
type Loop struct {
	source   Source
	emitter  *signal.Emitter
	interval time.Duration
	recorder *TimeSeriesRecorder

	mu        sync.Mutex
	lastError string
}

// NewLoop returns a Loop pushing samples of src into e.
func NewLoop(src Source, e *signal.Emitter, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Loop{
		source:   src,
		emitter:  e,
		interval: interval,
		recorder: NewTimeSeriesRecorder(60),
	}
}

// Run samples until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	logrus.WithFields(logrus.Fields{
		"source":   l.source.Name(),
		"interval": l.interval,
	}).Debug("feed loop starts")

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		l.Once()
		select {
		case <-ctx.Done():
			logrus.WithField("source", l.source.Name()).Debug("feed loop stopped")
			return
		case <-ticker.C:
		}
	}
}

// Once takes a single sample. A failed sample invalidates every signal.
func (l *Loop) Once() {
	l.checkMissedSamples()
	l.recorder.AddRecordNow()

	s, err := l.source.Sample()
	if err != nil {
		logrus.WithError(err).WithField("source", l.source.Name()).Warn("failed to sample battery")
		l.setLastError(err.Error())
		Invalidate(l.emitter)
		return
	}
	l.setLastError("")

	logrus.WithFields(logrus.Fields{
		"source": l.source.Name(),
		"sample": s,
	}).Trace("battery sampled")

	Apply(l.emitter, s)
}

// Health reports the recent sampling history.
func (l *Loop) Health() Health {
	window := 6 * l.interval
	l.mu.Lock()
	msg := l.lastError
	l.mu.Unlock()

	return Health{
		Source:          l.source.Name(),
		IntervalSeconds: l.interval.Seconds(),
		LastSample:      l.recorder.GetLastRecord(),
		RecentSamples:   l.recorder.GetRecordsIn(window, l.interval),
		ExpectedSamples: int(window / l.interval),
		LastError:       msg,
	}
}

func (l *Loop) setLastError(msg string) {
	l.mu.Lock()
	l.lastError = msg
	l.mu.Unlock()
}

// checkMissedSamples logs when the previous sample is much older than the
// interval, which happens after system sleep.
func (l *Loop) checkMissedSamples() {
	last := l.recorder.GetLastRecord()
	if last.IsZero() {
		return
	}
	if gap := time.Since(last); gap > 2*l.interval {
		logrus.WithFields(logrus.Fields{
			"source": l.source.Name(),
			"gap":    gap.Round(time.Second).String(),
		}).Info("possibly missed battery samples")
	}
}
