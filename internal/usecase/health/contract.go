package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// Checker is any dependency that can report its own availability
// (embedding provider, search index).
type Checker interface {
	HealthCheck(ctx context.Context) error
}
