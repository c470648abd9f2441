package projects

import (
	"context"

	"github.com/fleetdesk/dispatch/common/logger"
	"github.com/fleetdesk/dispatch/internal/clock"
	"github.com/fleetdesk/dispatch/internal/models"
	"github.com/fleetdesk/dispatch/internal/repository"
)

// Service enforces the project status machine for the acting driver.
type Service struct {
	store repository.ProjectStore
	clock clock.Clock
}

// New creates a project Service
func New(store repository.ProjectStore, clk clock.Clock) *Service {
	return &Service{
		store: store,
		clock: clk,
	}
}

// List returns the driver's projects ordered by scheduled date then time.
func (s *Service) List(ctx context.Context, driverID string) ([]models.Project, error) {
	return s.store.ListByDriver(ctx, driverID)
}

// Transition moves a project to the target status on behalf of driverID.
//
// The ownership check and the state update are folded into one atomic
// check-and-set write in the store; the preliminary GetOwned exists only to
// shape the error. A project that was reassigned between the read and the
// write yields models.ErrTransitionRejected, never a successful stale write.
func (s *Service) Transition(ctx context.Context, projectID, driverID string, target models.TransitionTarget) error {
	if projectID == "" || driverID == "" {
		return models.ErrValidation
	}

	change, err := s.changeFor(target, driverID)
	if err != nil {
		return err
	}

	// Same error shape whether the project does not exist or belongs to a
	// different driver.
	if _, err := s.store.GetOwned(ctx, projectID, driverID); err != nil {
		return err
	}

	rows, err := s.store.ApplyTransition(ctx, projectID, driverID, change)
	if err != nil {
		return err
	}
	if rows == 0 {
		logger.Warn("Status transition matched no row",
			"project_id", projectID,
			"driver_id", driverID,
			"target", string(target),
		)
		return models.ErrTransitionRejected
	}

	logger.Info("Project status transitioned",
		"project_id", projectID,
		"driver_id", driverID,
		"target", string(target),
	)
	return nil
}

// changeFor builds the status change for a target. Unknown targets are a
// validation failure before any store access.
func (s *Service) changeFor(target models.TransitionTarget, driverID string) (models.StatusChange, error) {
	now := s.clock.Now()

	switch target {
	case models.TargetAccepted:
		return models.AcceptChange{At: now, By: driverID}, nil
	case models.TargetStarted:
		return models.StartChange{At: now}, nil
	case models.TargetDeclined:
		return models.DeclineChange{At: now, By: driverID}, nil
	case models.TargetCompleted:
		return models.CompleteChange{At: now, By: driverID}, nil
	default:
		return nil, models.ErrValidation
	}
}
