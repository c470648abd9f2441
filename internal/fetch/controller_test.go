package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/fleetdesk/dispatch/internal/clock"
	"github.com/fleetdesk/dispatch/internal/models"
	"github.com/fleetdesk/dispatch/internal/repository"
)

func strPtr(s string) *string { return &s }

// flakyProjects fails its first n ListByDriver calls, then delegates.
type flakyProjects struct {
	repository.ProjectStore
	failures int
	calls    int
}

func (f *flakyProjects) ListByDriver(ctx context.Context, driverID string) ([]models.Project, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("backend unavailable")
	}
	return f.ProjectStore.ListByDriver(ctx, driverID)
}

// brokenRefs always fails.
type brokenRefs struct{}

func (brokenRefs) ListCompanies(ctx context.Context) ([]models.Company, error) {
	return nil, errors.New("reference backend unavailable")
}

func (brokenRefs) ListCarTypes(ctx context.Context) ([]models.CarType, error) {
	return nil, errors.New("reference backend unavailable")
}

type ControllerSuite struct {
	suite.Suite
	store  *repository.MemoryRepo
	clock  *clock.Mock
	slept  []time.Duration
	ctx    context.Context
	cancel context.CancelFunc
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	s.store = repository.NewMemory()
	s.clock = clock.NewMock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	s.slept = nil
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.store.PutProject(models.Project{ID: "p-1", DriverID: strPtr("d-1"), Date: "2026-03-05", Time: "10:00", Status: models.ProjectActive, Acceptance: models.AcceptancePending})
	s.store.PutProject(models.Project{ID: "p-2", DriverID: strPtr("d-1"), Date: "2026-03-06", Time: "11:00", Status: models.ProjectActive, Acceptance: models.AcceptancePending})
	s.store.SetReferences(
		[]models.Company{{ID: "c-1", Name: "Split Transfers"}},
		[]models.CarType{{ID: "ct-1", Name: "Sedan"}},
	)
}

func (s *ControllerSuite) TearDownTest() {
	s.cancel()
}

// controller wires a Controller over the given project store with an
// instrumented sleep that advances the mock clock instead of waiting.
func (s *ControllerSuite) controller(projects repository.ProjectStore, refs repository.ReferenceStore) *Controller {
	c := New(projects, refs, s.clock, DefaultConfig())
	c.sleep = func(ctx context.Context, d time.Duration) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.slept = append(s.slept, d)
		s.clock.Advance(d)
		return nil
	}
	return c
}

func (s *ControllerSuite) TestLoadSucceedsFirstTry() {
	c := s.controller(s.store, s.store)

	view, err := c.Load(s.ctx, "d-1")
	s.Require().NoError(err)

	s.Len(view.Projects, 2)
	s.Equal("p-1", view.Projects[0].ID)
	s.Len(view.Companies, 1)
	s.Len(view.CarTypes, 1)
	s.Empty(s.slept)
	s.Zero(c.RetryCount("d-1"))
}

func (s *ControllerSuite) TestLoadRecoversAfterTransientFailures() {
	flaky := &flakyProjects{ProjectStore: s.store, failures: 2}
	c := s.controller(flaky, s.store)

	view, err := c.Load(s.ctx, "d-1")
	s.Require().NoError(err)

	s.Len(view.Projects, 2)
	s.Equal(3, flaky.calls)
	// strictly increasing delays: base, then 2x base
	s.Equal([]time.Duration{2 * time.Second, 4 * time.Second}, s.slept)
	// a successful load clears the retry counter
	s.Zero(c.RetryCount("d-1"))
}

func (s *ControllerSuite) TestLoadGivesUpAfterRetryBudget() {
	flaky := &flakyProjects{ProjectStore: s.store, failures: 10}
	c := s.controller(flaky, s.store)

	_, err := c.Load(s.ctx, "d-1")
	s.Require().Error(err)

	s.ErrorIs(err, models.ErrPersistentFetch)
	s.Equal(4, flaky.calls) // initial attempt + 3 retries
	s.Equal([]time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second}, s.slept)
	s.Equal(3, c.RetryCount("d-1"))

	_, ok := c.Current("d-1")
	s.False(ok)
}

func (s *ControllerSuite) TestReferenceFailureDegradesToEmpty() {
	c := s.controller(s.store, brokenRefs{})

	view, err := c.Load(s.ctx, "d-1")
	s.Require().NoError(err)

	s.Len(view.Projects, 2)
	s.Empty(view.Companies)
	s.Empty(view.CarTypes)
}

func (s *ControllerSuite) TestLoadReplacesViewWholesale() {
	c := s.controller(s.store, s.store)

	_, err := c.Load(s.ctx, "d-1")
	s.Require().NoError(err)

	// p-2 moves to another driver; the next load must not retain it
	project, ok := s.store.GetProject("p-2")
	s.Require().True(ok)
	project.DriverID = strPtr("d-2")
	s.store.PutProject(project)

	view, err := c.Load(s.ctx, "d-1")
	s.Require().NoError(err)
	s.Require().Len(view.Projects, 1)
	s.Equal("p-1", view.Projects[0].ID)

	current, ok := c.Current("d-1")
	s.Require().True(ok)
	s.Len(current.Projects, 1)
}

func (s *ControllerSuite) TestLoadStopsWhenContextCancelled() {
	flaky := &flakyProjects{ProjectStore: s.store, failures: 10}
	c := New(flaky, s.store, s.clock, DefaultConfig())
	c.sleep = func(ctx context.Context, d time.Duration) error {
		s.cancel()
		return s.ctx.Err()
	}

	_, err := c.Load(s.ctx, "d-1")
	s.ErrorIs(err, context.Canceled)
	s.Equal(1, flaky.calls)
}

func (s *ControllerSuite) TestInvalidateFencesOutInFlightLoad() {
	flaky := &flakyProjects{ProjectStore: s.store, failures: 1}
	c := New(flaky, s.store, s.clock, DefaultConfig())

	var fresh View
	c.sleep = func(ctx context.Context, d time.Duration) error {
		// a new session starts while the old load is waiting to retry
		c.Invalidate("d-1")
		view, err := c.Load(context.Background(), "d-1")
		s.Require().NoError(err)
		fresh = view
		// distinguish the stale load's timestamp from the fresh one's
		s.clock.Advance(time.Minute)
		return nil
	}

	stale, err := c.Load(s.ctx, "d-1")
	s.Require().NoError(err)

	// the stale load still returns data to its caller, but the committed
	// view belongs to the newer session
	s.Len(stale.Projects, 2)
	s.NotEqual(fresh.LoadedAt, stale.LoadedAt)
	current, ok := c.Current("d-1")
	s.Require().True(ok)
	s.Equal(fresh.LoadedAt, current.LoadedAt)
}

func (s *ControllerSuite) TestSupersededLoadLeavesRetryCounterAlone() {
	flaky := &flakyProjects{ProjectStore: s.store, failures: 10}
	c := New(flaky, s.store, s.clock, DefaultConfig())

	invalidated := false
	c.sleep = func(ctx context.Context, d time.Duration) error {
		// a new session starts while the doomed load waits for its first retry
		if !invalidated {
			invalidated = true
			c.Invalidate("d-1")
		}
		return nil
	}

	_, err := c.Load(s.ctx, "d-1")
	s.ErrorIs(err, models.ErrPersistentFetch)

	// the stale load kept retrying after the invalidation, but the counter
	// the new session observes stays untouched
	s.Zero(c.RetryCount("d-1"))
}

func (s *ControllerSuite) TestInvalidateDropsView() {
	c := s.controller(s.store, s.store)

	_, err := c.Load(s.ctx, "d-1")
	s.Require().NoError(err)

	c.Invalidate("d-1")
	_, ok := c.Current("d-1")
	s.False(ok)
	s.Zero(c.RetryCount("d-1"))
}

func (s *ControllerSuite) TestLoadRejectsEmptyDriverID() {
	c := s.controller(s.store, s.store)

	_, err := c.Load(s.ctx, "")
	s.ErrorIs(err, models.ErrValidation)
}
