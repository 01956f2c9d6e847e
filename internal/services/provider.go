package services

import (
	"context"
)

// Provider is a backing service the engine depends on
type Provider interface {
	// Type returns the service type name
	Type() string

	// HealthCheck checks if the service is available
	HealthCheck(ctx context.Context) error
}

// BaseProvider provides common functionality for providers
type BaseProvider struct {
	serviceType string
}

// Type returns the service type
func (p *BaseProvider) Type() string {
	return p.serviceType
}

// Pinger is anything that can report connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseProvider reports the health of the repository backend
type DatabaseProvider struct {
	BaseProvider
	db Pinger
}

// NewDatabaseProvider wraps a repository for health checks
func NewDatabaseProvider(driver string, db Pinger) *DatabaseProvider {
	return &DatabaseProvider{
		BaseProvider: BaseProvider{serviceType: driver},
		db:           db,
	}
}

// HealthCheck pings the database
func (p *DatabaseProvider) HealthCheck(ctx context.Context) error {
	return p.db.Ping(ctx)
}
