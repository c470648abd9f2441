package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fleetdesk/dispatch/internal/models"
)

// MemoryRepo is an in-memory Repository used in tests and local development.
// All methods are safe for concurrent use.
type MemoryRepo struct {
	mu        sync.RWMutex
	drivers   map[string]models.Driver
	projects  map[string]models.Project
	companies []models.Company
	carTypes  []models.CarType

	// TouchLastActiveErr, when set, is returned by TouchLastActive. Lets
	// tests exercise the best-effort contract.
	TouchLastActiveErr error
}

var _ Repository = (*MemoryRepo)(nil)

// NewMemory creates an empty MemoryRepo
func NewMemory() *MemoryRepo {
	return &MemoryRepo{
		drivers:  make(map[string]models.Driver),
		projects: make(map[string]models.Project),
	}
}

func (m *MemoryRepo) PingContext(ctx context.Context) error {
	return ctx.Err()
}

// PutDriver inserts or replaces a driver record
func (m *MemoryRepo) PutDriver(driver models.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.ID] = driver
}

// PutProject inserts or replaces a project record
func (m *MemoryRepo) PutProject(project models.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[project.ID] = project
}

// GetProject returns a project by ID without any ownership predicate.
// Test fixture accessor, not part of the store contracts.
func (m *MemoryRepo) GetProject(projectID string) (models.Project, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	project, ok := m.projects[projectID]
	return project, ok
}

// SetReferences replaces the reference data
func (m *MemoryRepo) SetReferences(companies []models.Company, carTypes []models.CarType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.companies = companies
	m.carTypes = carTypes
}

func (m *MemoryRepo) FindByLoginID(ctx context.Context, loginID string) (*models.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// stable ID order: first match wins under a raced uniqueness violation
	for _, driver := range m.sortedDriversLocked() {
		if driver.LoginID == loginID {
			d := driver
			return &d, nil
		}
	}
	return nil, ErrNoDriver
}

func (m *MemoryRepo) FindByToken(ctx context.Context, token string) (*models.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, driver := range m.sortedDriversLocked() {
		if driver.AccessToken != nil && *driver.AccessToken == token {
			d := driver
			return &d, nil
		}
	}
	return nil, ErrNoDriver
}

func (m *MemoryRepo) TouchLastActive(ctx context.Context, driverID string) error {
	if m.TouchLastActiveErr != nil {
		return m.TouchLastActiveErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	driver, ok := m.drivers[driverID]
	if !ok {
		return ErrNoDriver
	}
	now := time.Now()
	driver.LastActiveAt = &now
	driver.UpdatedAt = now
	m.drivers[driverID] = driver
	return nil
}

func (m *MemoryRepo) ListByDriver(ctx context.Context, driverID string) ([]models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	projects := []models.Project{}
	for _, project := range m.projects {
		if project.DriverID != nil && *project.DriverID == driverID {
			projects = append(projects, project)
		}
	}
	sort.Slice(projects, func(i, j int) bool {
		if projects[i].Date != projects[j].Date {
			return projects[i].Date < projects[j].Date
		}
		return projects[i].Time < projects[j].Time
	})
	return projects, nil
}

func (m *MemoryRepo) GetOwned(ctx context.Context, projectID, driverID string) (*models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	project, ok := m.projects[projectID]
	if !ok || project.DriverID == nil || *project.DriverID != driverID {
		return nil, models.ErrNotOwned
	}
	p := project
	return &p, nil
}

func (m *MemoryRepo) ApplyTransition(ctx context.Context, projectID, driverID string, change models.StatusChange) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	project, ok := m.projects[projectID]
	if !ok || project.DriverID == nil || *project.DriverID != driverID {
		return 0, nil
	}
	if project.Status != models.ProjectActive {
		return 0, nil
	}
	if !acceptanceAllowed(change, project.Acceptance) {
		return 0, nil
	}

	switch c := change.(type) {
	case models.AcceptChange:
		project.Acceptance = models.AcceptanceAccepted
		project.AcceptedAt = &c.At
		project.AcceptedBy = &driverID
		project.UpdatedAt = c.At
	case models.StartChange:
		project.Acceptance = models.AcceptanceStarted
		project.StartedAt = &c.At
		project.UpdatedAt = c.At
	case models.DeclineChange:
		project.Acceptance = models.AcceptanceDeclined
		project.DeclinedAt = &c.At
		project.DeclinedBy = &driverID
		project.UpdatedAt = c.At
	case models.CompleteChange:
		project.Status = models.ProjectCompleted
		project.CompletedAt = &c.At
		project.CompletedBy = &driverID
		project.UpdatedAt = c.At
	default:
		return 0, nil
	}

	m.projects[projectID] = project
	return 1, nil
}

func (m *MemoryRepo) ListCompanies(ctx context.Context) ([]models.Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Company{}, m.companies...), nil
}

func (m *MemoryRepo) ListCarTypes(ctx context.Context) ([]models.CarType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.CarType{}, m.carTypes...), nil
}

func (m *MemoryRepo) sortedDriversLocked() []models.Driver {
	drivers := make([]models.Driver, 0, len(m.drivers))
	for _, driver := range m.drivers {
		drivers = append(drivers, driver)
	}
	sort.Slice(drivers, func(i, j int) bool { return drivers[i].ID < drivers[j].ID })
	return drivers
}

func acceptanceAllowed(change models.StatusChange, current models.AcceptanceStatus) bool {
	for _, allowed := range change.AllowedFrom() {
		if allowed == current {
			return true
		}
	}
	return false
}
