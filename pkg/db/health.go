package db

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// HealthStatus is the probe result reported to operational tooling
type HealthStatus struct {
	IsHealthy bool   `json:"isHealthy"`
	Message   string `json:"message"`
	MockMode  bool   `json:"mockMode"`
}

// Health runs SELECT 1 with the health timeout. Probes go through the executor, so a
// passing probe marks the state connected again.
func (d *Database) Health(ctx context.Context) HealthStatus {
	if d.State.MockMode() {
		return HealthStatus{
			IsHealthy: false,
			Message:   ErrMockMode.Error(),
			MockMode:  true,
		}
	}

	req := NewQuery("health_check", "SELECT 1 AS ok").WithTimeout(d.healthTimeout)
	if _, err := d.Executor.Fetch(ctx, req, Strict); err != nil {
		return HealthStatus{
			IsHealthy: false,
			Message:   fmt.Sprintf("database unreachable: %v", err),
		}
	}
	return HealthStatus{
		IsHealthy: true,
		Message:   "database connection healthy",
	}
}

// Prober re-checks a disconnected database in the background so that the dashboard's
// connectivity pre-check recovers without issuing queries of its own.
type Prober struct {
	db       *Database
	interval time.Duration
	log      logrus.FieldLogger
}

func NewProber(d *Database, interval time.Duration) *Prober {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Prober{
		db:       d,
		interval: interval,
		log:      d.log,
	}
}

// Run probes on every tick until ctx is done
func (p *Prober) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.ProbeOnce(ctx)
		}
	}
}

// ProbeOnce issues a health check when the state is disconnected. It reports whether a
// probe was issued.
func (p *Prober) ProbeOnce(ctx context.Context) bool {
	state := p.db.State.Snapshot()
	if state.MockMode || state.Connected {
		return false
	}

	status := p.db.Health(ctx)
	if status.IsHealthy {
		p.log.WithField("after_failures", state.ConsecutiveFailures).Info("database connection recovered")
	} else {
		p.log.Debugf("database still unreachable: %s", status.Message)
	}
	return true
}
