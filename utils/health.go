package utils

import (
	"context"
	"sync"
	"time"
)

// Pinger is anything the health monitor can probe.
type Pinger func(ctx context.Context) error

// HealthStatus represents current status of external services.
type HealthStatus struct {
	Store     bool      `json:"store"`
	Redis     []bool    `json:"redis"`
	CheckedAt time.Time `json:"checkedAt"`
}

// HealthMonitor keeps the latest health snapshot in memory.
type HealthMonitor struct {
	store    Pinger
	redis    []Pinger
	interval time.Duration

	mu      sync.RWMutex
	current HealthStatus
}

// NewHealthMonitor probes store and every redis pinger each interval.
func NewHealthMonitor(store Pinger, redis []Pinger, interval time.Duration) *HealthMonitor {
	return &HealthMonitor{store: store, redis: redis, interval: interval}
}

// Status returns latest stored health snapshot.
func (m *HealthMonitor) Status() HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Check probes every dependency once and stores the result.
func (m *HealthMonitor) Check(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	redisHealth := make([]bool, 0, len(m.redis))
	for _, ping := range m.redis {
		redisHealth = append(redisHealth, ping(ctx) == nil)
	}

	status := HealthStatus{
		Store:     m.store == nil || m.store(ctx) == nil,
		Redis:     redisHealth,
		CheckedAt: time.Now(),
	}

	m.mu.Lock()
	m.current = status
	m.mu.Unlock()
	return status
}

// Start performs periodic health checks until ctx is cancelled.
func (m *HealthMonitor) Start(ctx context.Context) {
	m.Check(ctx)
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Check(ctx)
			}
		}
	}()
}
