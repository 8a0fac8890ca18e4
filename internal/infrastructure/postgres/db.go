package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ErlanBelekov/tweet-pipeline/internal/domain"
	"github.com/ErlanBelekov/tweet-pipeline/internal/metrics"
	"github.com/ErlanBelekov/tweet-pipeline/internal/retry"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PoolConfig struct {
	DatabaseURL string

	// MaxConns/MinConns of 0 means "use the sizing heuristic".
	MaxConns int32
	MinConns int32

	ConnTimeout     time.Duration
	MaxConnIdleTime time.Duration
	HealthInterval  time.Duration
}

// Health is the last-known pool health plus occupancy at check time.
type Health struct {
	Healthy   bool
	Error     string
	CheckedAt time.Time

	Acquired int32
	Idle     int32
	Total    int32
}

// Manager owns the physical connection pool: sizing, validated acquisition,
// rate-limited health probes, and idle cleanup.
type Manager struct {
	pool           *pgxpool.Pool
	minConns       int32
	healthInterval time.Duration
	logger         *slog.Logger

	mu         sync.Mutex
	lastHealth Health
}

func NewManager(ctx context.Context, cfg PoolConfig, logger *slog.Logger) (*Manager, error) {
	pgCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	maxConns, minConns := cfg.MaxConns, cfg.MinConns
	if maxConns <= 0 {
		maxConns = HeuristicMaxConns()
	}
	if minConns <= 0 {
		minConns = max(2, maxConns/4)
	}
	if minConns > maxConns {
		minConns = maxConns
	}

	pgCfg.MaxConns = maxConns
	pgCfg.MinConns = minConns
	pgCfg.MaxConnLifetime = 1 * time.Hour
	if cfg.MaxConnIdleTime > 0 {
		pgCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.ConnTimeout > 0 {
		pgCfg.ConnConfig.ConnectTimeout = cfg.ConnTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	interval := cfg.HealthInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &Manager{
		pool:           pool,
		minConns:       minConns,
		healthInterval: interval,
		logger:         logger.With("component", "db"),
	}, nil
}

// HeuristicMaxConns sizes the pool from the host: min(2×CPU cores,
// 4×total memory in GB), floor of 2.
func HeuristicMaxConns() int32 {
	cores := runtime.NumCPU()
	memGB := totalMemoryGB()
	n := min(cores*2, memGB*4)
	return int32(max(n, 2))
}

// totalMemoryGB reads MemTotal from /proc/meminfo; assumes 8 GB when the
// file is unavailable (non-linux dev hosts).
func totalMemoryGB() int {
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return 8
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			break
		}
		kb, err := strconv.Atoi(fields[1])
		if err != nil {
			break
		}
		return max(kb/(1024*1024), 1)
	}
	return 8
}

// Acquire returns a validated connection, retrying with backoff on failure.
// A connection that fails the validation round-trip is destroyed, never
// returned to the pool.
func (m *Manager) Acquire(ctx context.Context) (*pgxpool.Conn, error) {
	var conn *pgxpool.Conn
	attempt := 0

	policy := retry.Policy{MaxAttempts: 3, InitialDelay: 500 * time.Millisecond}
	err := retry.Do(ctx, policy, "acquire connection", func() error {
		attempt++
		if attempt > 1 {
			metrics.PoolAcquireRetriesTotal.Inc()
		}

		c, err := m.pool.Acquire(ctx)
		if err != nil {
			return err
		}
		if err := c.Ping(ctx); err != nil {
			// Close the underlying conn so pgxpool destroys it on release.
			_ = c.Conn().Close(ctx)
			c.Release()
			return fmt.Errorf("validate connection: %w", err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConnectionFailed, err)
	}
	return conn, nil
}

// HealthCheck probes the database at most once per interval; more frequent
// calls get the cached result without blocking.
func (m *Manager) HealthCheck(ctx context.Context) Health {
	m.mu.Lock()
	if !m.lastHealth.CheckedAt.IsZero() && time.Since(m.lastHealth.CheckedAt) < m.healthInterval {
		cached := m.lastHealth
		m.mu.Unlock()
		return cached
	}
	m.mu.Unlock()

	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	h := Health{Healthy: true, CheckedAt: time.Now()}
	if err := m.pool.Ping(probeCtx); err != nil {
		h.Healthy = false
		h.Error = err.Error()
		m.logger.Warn("pool health check failed", "error", err)
	}

	stat := m.pool.Stat()
	h.Acquired = stat.AcquiredConns()
	h.Idle = stat.IdleConns()
	h.Total = stat.TotalConns()

	m.mu.Lock()
	m.lastHealth = h
	m.mu.Unlock()
	return h
}

// Cleanup closes idle connections above the configured minimum. Returns
// how many were closed.
func (m *Manager) Cleanup(ctx context.Context) int {
	idle := m.pool.AcquireAllIdle(ctx)
	excess := len(idle) - int(m.minConns)

	closed := 0
	for i, conn := range idle {
		if i < excess {
			_ = conn.Conn().Close(ctx)
			closed++
		}
		conn.Release()
	}
	if closed > 0 {
		m.logger.Debug("closed excess idle connections", "count", closed)
	}
	return closed
}

// ObserveOccupancy exports current pool counts to Prometheus.
func (m *Manager) ObserveOccupancy() {
	stat := m.pool.Stat()
	metrics.PoolConnections.WithLabelValues("acquired").Set(float64(stat.AcquiredConns()))
	metrics.PoolConnections.WithLabelValues("idle").Set(float64(stat.IdleConns()))
	metrics.PoolConnections.WithLabelValues("constructing").Set(float64(stat.ConstructingConns()))
}

func (m *Manager) Ping(ctx context.Context) error {
	return m.pool.Ping(ctx)
}

func (m *Manager) Pool() *pgxpool.Pool {
	return m.pool
}

func (m *Manager) Close() {
	m.pool.Close()
}
