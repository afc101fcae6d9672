package feed

import (
	"sync"
	"time"
)

// TimeSeriesRecorder records the last N sample times.
type TimeSeriesRecorder struct {
	MaxRecordCount int
	records        []time.Time
	mu             *sync.Mutex
}

// NewTimeSeriesRecorder returns a new TimeSeriesRecorder.
func NewTimeSeriesRecorder(maxRecordCount int) *TimeSeriesRecorder {
	return &TimeSeriesRecorder{
		MaxRecordCount: maxRecordCount,
		records:        make([]time.Time, 0),
		mu:             &sync.Mutex{},
	}
}

// AddRecordNow adds a new record with the current time.
func (r *TimeSeriesRecorder) AddRecordNow() {
	r.AddRecord(time.Now())
}

// AddRecord adds a new record.
func (r *TimeSeriesRecorder) AddRecord(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Strip monotonic clock reading, so time.Since stays accurate across
	// system sleep.
	t = t.Round(0)

	if len(r.records) >= r.MaxRecordCount {
		r.records = r.records[1:]
	}
	r.records = append(r.records, t)
}

// GetRecords returns a copy of the records, oldest first.
func (r *TimeSeriesRecorder) GetRecords() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]time.Time(nil), r.records...)
}

// GetRecordsIn returns the number of continuous records in the last
// duration. Records are continuous when adjacent ones are less than
// interval+1s apart.
func (r *TimeSeriesRecorder) GetRecordsIn(last, interval time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	// The last record must be within one interval from now.
	if len(r.records) == 0 || time.Since(r.records[len(r.records)-1]) >= interval+time.Second {
		return 0
	}

	count := 0
	for i := len(r.records) - 1; i >= 0; i-- {
		record := r.records[i]
		if time.Since(record) > last {
			break
		}

		theRecordAfter := record
		if i+1 < len(r.records) {
			theRecordAfter = r.records[i+1]
		}

		if theRecordAfter.Sub(record) >= interval+time.Second {
			break
		}
		count++
	}

	return count
}

// GetLastRecord returns the last record, or the zero time.
func (r *TimeSeriesRecorder) GetLastRecord() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.records) == 0 {
		return time.Time{}
	}

	return r.records[len(r.records)-1]
}
