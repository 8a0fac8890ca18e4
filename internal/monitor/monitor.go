// Package monitor observes query and transaction latency for diagnostics.
// It is observation-only: nothing here alters control flow or retries.
package monitor

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ErlanBelekov/tweet-pipeline/internal/metrics"
)

type OpKind string

const (
	KindQuery OpKind = "query"
	KindTx    OpKind = "tx"
)

// Metric is one timestamped observation. Held in a bounded ring buffer,
// oldest evicted first; no durability requirement.
type Metric struct {
	At       time.Time
	Kind     OpKind
	Op       string
	Duration time.Duration
	Rows     int
	Failed   bool
}

type Config struct {
	BufferSize int
	SlowQuery  time.Duration
	LongTx     time.Duration
}

func DefaultConfig() Config {
	return Config{
		BufferSize: 1000,
		SlowQuery:  time.Second,
		LongTx:     5 * time.Second,
	}
}

// Monitor is constructed at the composition root and injected wherever
// database work happens; tests build fresh instances.
type Monitor struct {
	mu    sync.Mutex
	buf   []Metric
	next  int
	total int

	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Monitor {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	return &Monitor{
		buf:    make([]Metric, 0, cfg.BufferSize),
		cfg:    cfg,
		logger: logger.With("component", "monitor"),
	}
}

// TrackQuery times a single query. fn returns the affected/returned row count.
func (m *Monitor) TrackQuery(op string, fn func() (int, error)) (int, error) {
	return m.track(KindQuery, op, m.cfg.SlowQuery, fn)
}

// TrackTx times a whole transaction.
func (m *Monitor) TrackTx(op string, fn func() (int, error)) (int, error) {
	return m.track(KindTx, op, m.cfg.LongTx, fn)
}

func (m *Monitor) track(kind OpKind, op string, threshold time.Duration, fn func() (int, error)) (int, error) {
	start := time.Now()
	rows, err := fn()
	elapsed := time.Since(start)

	m.record(Metric{
		At:       start,
		Kind:     kind,
		Op:       op,
		Duration: elapsed,
		Rows:     rows,
		Failed:   err != nil,
	})

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	switch kind {
	case KindQuery:
		metrics.DBQueryDuration.WithLabelValues(op, outcome).Observe(elapsed.Seconds())
	case KindTx:
		metrics.DBTxDuration.WithLabelValues(op, outcome).Observe(elapsed.Seconds())
	}

	if threshold > 0 && elapsed > threshold {
		metrics.SlowOperationsTotal.WithLabelValues(string(kind)).Inc()
		m.logger.Warn("slow database operation",
			"kind", kind,
			"op", op,
			"duration", elapsed,
			"threshold", threshold,
			"rows", rows,
		)
	}

	return rows, err
}

func (m *Monitor) record(metric Metric) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.buf) < cap(m.buf) {
		m.buf = append(m.buf, metric)
	} else {
		m.buf[m.next] = metric
	}
	m.next = (m.next + 1) % cap(m.buf)
	m.total++
}

type Stats struct {
	Observed int // total observations ever recorded
	Buffered int
	Failures int
	Slow     int
	Avg      time.Duration
	Max      time.Duration
}

// Stats aggregates over the current ring buffer contents.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{Observed: m.total, Buffered: len(m.buf)}
	var sum time.Duration
	for _, metric := range m.buf {
		sum += metric.Duration
		if metric.Duration > s.Max {
			s.Max = metric.Duration
		}
		if metric.Failed {
			s.Failures++
		}
		threshold := m.cfg.SlowQuery
		if metric.Kind == KindTx {
			threshold = m.cfg.LongTx
		}
		if threshold > 0 && metric.Duration > threshold {
			s.Slow++
		}
	}
	if len(m.buf) > 0 {
		s.Avg = sum / time.Duration(len(m.buf))
	}
	return s
}

// Snapshot returns buffered metrics, oldest first.
func (m *Monitor) Snapshot() []Metric {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Metric, 0, len(m.buf))
	if len(m.buf) < cap(m.buf) {
		out = append(out, m.buf...)
		return out
	}
	out = append(out, m.buf[m.next:]...)
	out = append(out, m.buf[:m.next]...)
	return out
}
