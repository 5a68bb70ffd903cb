package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	logpkg "github.com/viola622/Flowise/internal/logger"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates every component failed.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names reported in Report.Checks.
const (
	ComponentDatabase    = "database"
	ComponentEmbedding   = "embedding"
	ComponentSearchIndex = "search_index"
)

// DefaultProbeTimeout bounds each probe.
const DefaultProbeTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type probe struct {
	name  string
	check func(ctx context.Context) error
}

// Service coordinates health checks.
type Service struct {
	probes  []probe
	timeout time.Duration
}

// New creates a Service. embedding and index can be nil.
func New(db DBPinger, embedding, index Checker) *Service {
	s := &Service{timeout: DefaultProbeTimeout}
	s.probes = append(s.probes, probe{ComponentDatabase, db.Ping})
	if embedding != nil {
		s.probes = append(s.probes, probe{ComponentEmbedding, embedding.HealthCheck})
	}
	if index != nil {
		s.probes = append(s.probes, probe{ComponentSearchIndex, index.HealthCheck})
	}
	return s
}

// WithTimeout overrides the per-probe timeout.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check runs every probe concurrently.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult, len(s.probes))
		g      errgroup.Group
	)
	for _, p := range s.probes {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			result := CheckOK
			if err := p.check(pctx); err != nil {
				result = CheckError
				logpkg.FromContext(ctx).Warn("Health probe failed", zap.String("component", p.name), zap.Error(err))
			}
			mu.Lock()
			checks[p.name] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, v := range checks {
		if v == CheckError {
			failed++
		}
	}
	status := Healthy
	switch {
	case failed == len(checks):
		status = Unhealthy
	case failed > 0:
		status = Degraded
	}
	return Report{Status: status, Checks: checks}
}
