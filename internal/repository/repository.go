package repository

import (
	"context"
	"errors"

	"github.com/fleetdesk/dispatch/internal/models"
)

// ErrNoDriver reports a credential lookup that matched no driver record.
var ErrNoDriver = errors.New("driver not found")

// CredentialStore is the lookup/update contract for driver identity records.
type CredentialStore interface {
	// FindByLoginID resolves a driver by normalized login identifier.
	// Resolution is deterministic under a raced uniqueness violation: the
	// first match in stable driver-ID order wins.
	FindByLoginID(ctx context.Context, loginID string) (*models.Driver, error)

	// FindByToken resolves a driver by exact, case-sensitive access token.
	FindByToken(ctx context.Context, token string) (*models.Driver, error)

	// TouchLastActive stamps the driver's last-activity timestamp. Best
	// effort: callers swallow the error.
	TouchLastActive(ctx context.Context, driverID string) error
}

// ProjectStore is the driver-scoped project contract. Every operation takes
// the acting driver's ID and repeats it in the store-side predicate; the
// authorization context is never trusted implicitly.
type ProjectStore interface {
	// ListByDriver returns the driver's projects ordered by scheduled date
	// then time, ascending.
	ListByDriver(ctx context.Context, driverID string) ([]models.Project, error)

	// GetOwned returns the project only when its driver reference equals
	// driverID, models.ErrNotOwned otherwise (including plain not-found).
	GetOwned(ctx context.Context, projectID, driverID string) (*models.Project, error)

	// ApplyTransition applies the status change as a single atomic
	// check-and-set write: the ownership predicate and the legal-prior-state
	// predicate are part of the same update. Returns the number of rows
	// modified; zero means the project was reassigned, already transitioned,
	// or in an illegal state for the change.
	ApplyTransition(ctx context.Context, projectID, driverID string, change models.StatusChange) (int64, error)
}

// ReferenceStore serves read-only reference data, not filtered by driver.
type ReferenceStore interface {
	ListCompanies(ctx context.Context) ([]models.Company, error)
	ListCarTypes(ctx context.Context) ([]models.CarType, error)
}

// Repository aggregates the store contracts the service depends on.
type Repository interface {
	CredentialStore
	ProjectStore
	ReferenceStore

	PingContext(ctx context.Context) error
}
