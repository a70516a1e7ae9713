package imcs

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// PrometheusCollector is the bundled integration with a monitoring system.
type MetricsCollector interface {
	// RecordAppend is called after each Append. n is the number of values
	// in the call.
	RecordAppend(n int, duration time.Duration, err error)

	// RecordDelete is called after each Delete, Truncate and DeleteAll.
	// n is the number of elements removed.
	RecordDelete(n int64, duration time.Duration, err error)

	// RecordParallel is called after each parallel split. partitions is 0
	// when the tree was evaluated single-threaded.
	RecordParallel(partitions int, duration time.Duration, err error)

	// RecordFlush is called after each commit-time flush.
	RecordFlush(duration time.Duration, err error)

	// RecordSnapshot is called after each snapshot or restore. bytes is the
	// encoded size.
	RecordSnapshot(bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAppend(int, time.Duration, error)     {}
func (NoopMetricsCollector) RecordDelete(int64, time.Duration, error)   {}
func (NoopMetricsCollector) RecordParallel(int, time.Duration, error)   {}
func (NoopMetricsCollector) RecordFlush(time.Duration, error)           {}
func (NoopMetricsCollector) RecordSnapshot(int64, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AppendCount      atomic.Int64
	AppendValues     atomic.Int64
	AppendErrors     atomic.Int64
	AppendTotalNanos atomic.Int64
	DeleteCount      atomic.Int64
	DeletedElements  atomic.Int64
	DeleteErrors     atomic.Int64
	ParallelCount    atomic.Int64
	ParallelRejected atomic.Int64
	ParallelErrors   atomic.Int64
	FlushCount       atomic.Int64
	FlushErrors      atomic.Int64
	FlushTotalNanos  atomic.Int64
	SnapshotCount    atomic.Int64
	SnapshotBytes    atomic.Int64
	SnapshotErrors   atomic.Int64
}

// RecordAppend implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAppend(n int, duration time.Duration, err error) {
	b.AppendCount.Add(1)
	b.AppendTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AppendErrors.Add(1)
		return
	}
	b.AppendValues.Add(int64(n))
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(n int64, _ time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
		return
	}
	b.DeletedElements.Add(n)
}

// RecordParallel implements MetricsCollector.
func (b *BasicMetricsCollector) RecordParallel(partitions int, _ time.Duration, err error) {
	b.ParallelCount.Add(1)
	switch {
	case err != nil:
		b.ParallelErrors.Add(1)
	case partitions == 0:
		b.ParallelRejected.Add(1)
	}
}

// RecordFlush implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFlush(duration time.Duration, err error) {
	b.FlushCount.Add(1)
	b.FlushTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.FlushErrors.Add(1)
	}
}

// RecordSnapshot implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshot(bytes int64, _ time.Duration, err error) {
	b.SnapshotCount.Add(1)
	if err != nil {
		b.SnapshotErrors.Add(1)
		return
	}
	b.SnapshotBytes.Add(bytes)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AppendCount:      b.AppendCount.Load(),
		AppendValues:     b.AppendValues.Load(),
		AppendErrors:     b.AppendErrors.Load(),
		AppendAvgNanos:   avg(b.AppendTotalNanos.Load(), b.AppendCount.Load()),
		DeleteCount:      b.DeleteCount.Load(),
		DeletedElements:  b.DeletedElements.Load(),
		DeleteErrors:     b.DeleteErrors.Load(),
		ParallelCount:    b.ParallelCount.Load(),
		ParallelRejected: b.ParallelRejected.Load(),
		ParallelErrors:   b.ParallelErrors.Load(),
		FlushCount:       b.FlushCount.Load(),
		FlushErrors:      b.FlushErrors.Load(),
		FlushAvgNanos:    avg(b.FlushTotalNanos.Load(), b.FlushCount.Load()),
		SnapshotCount:    b.SnapshotCount.Load(),
		SnapshotBytes:    b.SnapshotBytes.Load(),
		SnapshotErrors:   b.SnapshotErrors.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AppendCount      int64
	AppendValues     int64
	AppendErrors     int64
	AppendAvgNanos   int64
	DeleteCount      int64
	DeletedElements  int64
	DeleteErrors     int64
	ParallelCount    int64
	ParallelRejected int64
	ParallelErrors   int64
	FlushCount       int64
	FlushErrors      int64
	FlushAvgNanos    int64
	SnapshotCount    int64
	SnapshotBytes    int64
	SnapshotErrors   int64
}
