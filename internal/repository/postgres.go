package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fleetdesk/dispatch/internal/models"
)

const dbTimeout = time.Second * 3

// PostgresRepo implements Repository against Postgres via database/sql.
type PostgresRepo struct {
	DB *sql.DB
}

func (m *PostgresRepo) Connection() *sql.DB {
	return m.DB
}

func (m *PostgresRepo) PingContext(ctx context.Context) error {
	return m.DB.PingContext(ctx)
}

const driverColumns = `id, name, login_id, pin, status, access_token, last_active_at, created_at, updated_at`

func scanDriver(row *sql.Row) (*models.Driver, error) {
	var driver models.Driver
	err := row.Scan(
		&driver.ID,
		&driver.Name,
		&driver.LoginID,
		&driver.PIN,
		&driver.Status,
		&driver.AccessToken,
		&driver.LastActiveAt,
		&driver.CreatedAt,
		&driver.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &driver, nil
}

func (m *PostgresRepo) FindByLoginID(ctx context.Context, loginID string) (*models.Driver, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	// order by id limit 1 keeps resolution deterministic if the uniqueness
	// invariant on login_id was violated by a write race
	query := `select ` + driverColumns + ` from drivers where login_id = $1 order by id limit 1`

	driver, err := scanDriver(m.DB.QueryRowContext(ctx, query, loginID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoDriver
	}
	return driver, err
}

func (m *PostgresRepo) FindByToken(ctx context.Context, token string) (*models.Driver, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	query := `select ` + driverColumns + ` from drivers where access_token = $1 order by id limit 1`

	driver, err := scanDriver(m.DB.QueryRowContext(ctx, query, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoDriver
	}
	return driver, err
}

func (m *PostgresRepo) TouchLastActive(ctx context.Context, driverID string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	query := `update drivers set last_active_at = $1, updated_at = $1 where id = $2`

	_, err := m.DB.ExecContext(ctx, query, time.Now(), driverID)
	return err
}

const projectColumns = `id, driver_id, company_id, car_type_id, client_name, client_phone,
	pickup, dropoff, date, time, passengers, price, driver_fee,
	status, payment_status, acceptance_status,
	accepted_at, accepted_by, started_at, declined_at, declined_by, completed_at, completed_by,
	created_at, updated_at`

func scanProject(scanner interface{ Scan(...any) error }) (models.Project, error) {
	var p models.Project
	err := scanner.Scan(
		&p.ID,
		&p.DriverID,
		&p.CompanyID,
		&p.CarTypeID,
		&p.ClientName,
		&p.ClientPhone,
		&p.Pickup,
		&p.Dropoff,
		&p.Date,
		&p.Time,
		&p.Passengers,
		&p.Price,
		&p.DriverFee,
		&p.Status,
		&p.PaymentStatus,
		&p.Acceptance,
		&p.AcceptedAt,
		&p.AcceptedBy,
		&p.StartedAt,
		&p.DeclinedAt,
		&p.DeclinedBy,
		&p.CompletedAt,
		&p.CompletedBy,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

func (m *PostgresRepo) ListByDriver(ctx context.Context, driverID string) ([]models.Project, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	query := `select ` + projectColumns + ` from projects where driver_id = $1 order by date, time`

	rows, err := m.DB.QueryContext(ctx, query, driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

func (m *PostgresRepo) GetOwned(ctx context.Context, projectID, driverID string) (*models.Project, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	query := `select ` + projectColumns + ` from projects where id = $1 and driver_id = $2`

	project, err := scanProject(m.DB.QueryRowContext(ctx, query, projectID, driverID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotOwned
		}
		return nil, err
	}
	return &project, nil
}

func (m *PostgresRepo) ApplyTransition(ctx context.Context, projectID, driverID string, change models.StatusChange) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	// The ownership predicate and the legal-prior-state predicate are part of
	// the same update statement, so a concurrent reassignment between any
	// earlier read and this write cannot let a stale owner's change through.
	var query string
	var args []interface{}

	switch c := change.(type) {
	case models.AcceptChange:
		query = `update projects
			set acceptance_status = 'accepted', accepted_at = $1, accepted_by = $2, updated_at = $1
			where id = $3 and driver_id = $2 and status = 'active' and acceptance_status = 'pending'`
		args = []interface{}{c.At, driverID, projectID}
	case models.StartChange:
		query = `update projects
			set acceptance_status = 'started', started_at = $1, updated_at = $1
			where id = $2 and driver_id = $3 and status = 'active' and acceptance_status = 'accepted'`
		args = []interface{}{c.At, projectID, driverID}
	case models.DeclineChange:
		query = `update projects
			set acceptance_status = 'declined', declined_at = $1, declined_by = $2, updated_at = $1
			where id = $3 and driver_id = $2 and status = 'active' and acceptance_status in ('pending', 'accepted')`
		args = []interface{}{c.At, driverID, projectID}
	case models.CompleteChange:
		// acceptance_status is left untouched: completion is orthogonal to
		// the acceptance axis
		query = `update projects
			set status = 'completed', completed_at = $1, completed_by = $2, updated_at = $1
			where id = $3 and driver_id = $2 and status = 'active'`
		args = []interface{}{c.At, driverID, projectID}
	default:
		return 0, fmt.Errorf("unsupported status change %T", change)
	}

	result, err := m.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (m *PostgresRepo) ListCompanies(ctx context.Context) ([]models.Company, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, `select id, name from companies order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	companies := []models.Company{}
	for rows.Next() {
		var company models.Company
		if err = rows.Scan(&company.ID, &company.Name); err != nil {
			return nil, err
		}
		companies = append(companies, company)
	}
	return companies, rows.Err()
}

func (m *PostgresRepo) ListCarTypes(ctx context.Context) ([]models.CarType, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, `select id, name from car_types order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	carTypes := []models.CarType{}
	for rows.Next() {
		var carType models.CarType
		if err = rows.Scan(&carType.ID, &carType.Name); err != nil {
			return nil, err
		}
		carTypes = append(carTypes, carType)
	}
	return carTypes, rows.Err()
}
