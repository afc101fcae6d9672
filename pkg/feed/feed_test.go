package feed

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/charlie0129/battinfo/pkg/backend/signal"
	"github.com/charlie0129/battinfo/pkg/mapper"
	"github.com/charlie0129/battinfo/pkg/utils/ptr"
)

func TestTimeSeriesRecorder_GetRecordsIn(t *testing.T) {
	type fields struct {
		MaxRecordCount int
		records        []time.Time
	}
	type args struct {
		last time.Duration
	}
	tests := []struct {
		name   string
		fields fields
		args   args
		want   int
	}{
		{
			name: "test noncontinuous records",
			fields: fields{
				MaxRecordCount: 10,
				records: []time.Time{
					time.Now().Add(-time.Second * 31).Add(-10 * time.Millisecond),
					time.Now().Add(-time.Second * 20).Add(-10 * time.Millisecond),
					time.Now().Add(-time.Second * 10).Add(-10 * time.Millisecond),
				},
			},
			args: args{
				last: time.Second * 40,
			},
			want: 2,
		},
		{
			name: "test continuous records",
			fields: fields{
				MaxRecordCount: 10,
				records: []time.Time{
					time.Now().Add(-time.Second * 70).Add(-10 * time.Millisecond),
					time.Now().Add(-time.Second * 60).Add(-10 * time.Millisecond),
					time.Now().Add(-time.Second * 40).Add(-10 * time.Millisecond),
					time.Now().Add(-time.Second * 30).Add(-10 * time.Millisecond),
					time.Now().Add(-time.Second * 20).Add(-10 * time.Millisecond),
					time.Now().Add(-time.Second * 10).Add(-10 * time.Millisecond),
				},
			},
			args: args{
				last: time.Second * 50,
			},
			want: 4,
		},
		{
			name: "test stale last record",
			fields: fields{
				MaxRecordCount: 10,
				records: []time.Time{
					time.Now().Add(-time.Second * 30).Add(-10 * time.Millisecond),
					time.Now().Add(-time.Second * 20).Add(-10 * time.Millisecond),
					time.Now().Add(-time.Second * 15).Add(-10 * time.Millisecond),
				},
			},
			args: args{
				last: time.Second * 50,
			},
			want: 0,
		},
		{
			name:   "test no records",
			fields: fields{MaxRecordCount: 10},
			args:   args{last: time.Minute},
			want:   0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &TimeSeriesRecorder{
				MaxRecordCount: tt.fields.MaxRecordCount,
				records:        tt.fields.records,
				mu:             &sync.Mutex{},
			}
			if got := r.GetRecordsIn(tt.args.last, 10*time.Second); got != tt.want {
				t.Errorf("GetRecordsIn() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecorderKeepsLastN(t *testing.T) {
	r := NewTimeSeriesRecorder(3)
	base := time.Now()
	for i := 0; i < 5; i++ {
		r.AddRecord(base.Add(time.Duration(i) * time.Second))
	}
	records := r.GetRecords()
	assert.Len(t, records, 3)
	assert.Equal(t, base.Add(4*time.Second).Round(0), r.GetLastRecord())
}

func TestStatusFromPercent(t *testing.T) {
	tests := []struct {
		name    string
		percent int
		state   int
		want    int
	}{
		{"empty", 3, mapper.StateDischarging, mapper.StatusEmpty},
		{"empty edge", EmptyThreshold, mapper.StateCharging, mapper.StatusEmpty},
		{"low", 15, mapper.StateDischarging, mapper.StatusLow},
		{"ok", 60, mapper.StateCharging, mapper.StatusOk},
		{"hundred", 100, mapper.StateCharging, mapper.StatusFull},
		{"reported full", 97, mapper.StateFull, mapper.StatusFull},
		{"low beats full state", 10, mapper.StateFull, mapper.StatusLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFromPercent(tt.percent, tt.state))
		})
	}
}

func TestApply(t *testing.T) {
	e := signal.NewEmitter()
	Apply(e, Sample{
		Charger: ptr.To(mapper.ChargerDCP),
		State:   ptr.To(mapper.StateCharging),
		Status:  ptr.To(mapper.StatusOk),
		Level:   ptr.To(64),
	})
	assert.Equal(t, signal.Reading{Value: mapper.ChargerDCP, Valid: true}, e.Reading(signal.TopicChargerType))
	assert.Equal(t, signal.Reading{Value: 64, Valid: true}, e.Reading(signal.TopicBatteryLevel))

	Apply(e, Sample{Level: ptr.To(65)})
	assert.Equal(t, signal.Reading{Value: mapper.ChargerDCP, Valid: false}, e.Reading(signal.TopicChargerType))
	assert.Equal(t, signal.Reading{Value: 65, Valid: true}, e.Reading(signal.TopicBatteryLevel))

	Invalidate(e)
	for _, topic := range signal.Topics {
		assert.False(t, e.Reading(topic).Valid)
	}
}

type fakeSource struct {
	sample Sample
	err    error
	calls  int
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Sample() (Sample, error) {
	f.calls++
	return f.sample, f.err
}

func TestLoopOnce(t *testing.T) {
	src := &fakeSource{sample: Sample{
		Charger: ptr.To(mapper.ChargerNone),
		State:   ptr.To(mapper.StateDischarging),
		Status:  ptr.To(mapper.StatusLow),
		Level:   ptr.To(18),
	}}
	e := signal.NewEmitter()
	l := NewLoop(src, e, time.Second)

	l.Once()
	assert.Equal(t, 1, src.calls)
	assert.True(t, e.Reading(signal.TopicBatteryState).Valid)
	assert.Empty(t, l.Health().LastError)

	src.err = errors.New("no battery")
	l.Once()
	for _, topic := range signal.Topics {
		assert.False(t, e.Reading(topic).Valid)
	}

	h := l.Health()
	assert.Equal(t, "fake", h.Source)
	assert.Equal(t, "no battery", h.LastError)
	assert.Equal(t, 1.0, h.IntervalSeconds)
	assert.Equal(t, 6, h.ExpectedSamples)
	assert.Equal(t, 2, h.RecentSamples)
	assert.False(t, h.LastSample.IsZero())
}

func TestNewLoopDefaultInterval(t *testing.T) {
	l := NewLoop(&fakeSource{}, signal.NewEmitter(), 0)
	assert.Equal(t, DefaultInterval.Seconds(), l.Health().IntervalSeconds)
}
