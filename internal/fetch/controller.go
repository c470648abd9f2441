package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fleetdesk/dispatch/common/logger"
	"github.com/fleetdesk/dispatch/internal/clock"
	"github.com/fleetdesk/dispatch/internal/models"
	"github.com/fleetdesk/dispatch/internal/repository"
)

// Config bounds the retry behaviour of a Controller.
type Config struct {
	// BaseDelay is multiplied by the retry attempt number, so retries wait
	// BaseDelay, 2*BaseDelay, 3*BaseDelay.
	BaseDelay time.Duration
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int
}

// DefaultConfig matches the delivery cadence drivers expect on a flaky
// mobile connection: three retries at 2s, 4s, 6s.
func DefaultConfig() Config {
	return Config{
		BaseDelay:  2 * time.Second,
		MaxRetries: 3,
	}
}

// View is one driver's complete working set. Every successful load replaces
// the previous View wholesale; there is no partial merging.
type View struct {
	Projects  []models.Project `json:"projects"`
	Companies []models.Company `json:"companies"`
	CarTypes  []models.CarType `json:"car_types"`
	LoadedAt  time.Time        `json:"loaded_at"`
}

// Controller loads per-driver project snapshots with bounded retry.
//
// Project data is load-bearing: its failure is retried and eventually
// surfaced. Reference data (companies, car types) is cosmetic and degrades to
// empty slices when its fetch fails.
type Controller struct {
	projects repository.ProjectStore
	refs     repository.ReferenceStore
	clock    clock.Clock
	cfg      Config

	// sleep is swappable in tests so retry pacing is observable without
	// real waiting.
	sleep func(ctx context.Context, d time.Duration) error

	mu          sync.RWMutex
	views       map[string]View
	retryCounts map[string]int
	generations map[string]uint64
}

// New creates a fetch Controller.
func New(projects repository.ProjectStore, refs repository.ReferenceStore, clk clock.Clock, cfg Config) *Controller {
	return &Controller{
		projects:    projects,
		refs:        refs,
		clock:       clk,
		cfg:         cfg,
		sleep:       sleepContext,
		views:       make(map[string]View),
		retryCounts: make(map[string]int),
		generations: make(map[string]uint64),
	}
}

// Load fetches the driver's projects, retrying transient failures up to the
// configured bound, and commits the result as the driver's current View.
// After exhaustion the last failure is wrapped in models.ErrPersistentFetch.
func (c *Controller) Load(ctx context.Context, driverID string) (View, error) {
	if driverID == "" {
		return View{}, models.ErrValidation
	}

	c.mu.RLock()
	generation := c.generations[driverID]
	c.mu.RUnlock()

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * c.cfg.BaseDelay
			c.setRetryCount(driverID, generation, attempt)
			logger.Warn("Retrying project fetch",
				"driver_id", driverID,
				"attempt", attempt,
				"delay", delay.String(),
			)
			if err := c.sleep(ctx, delay); err != nil {
				return View{}, err
			}
		}

		projectList, err := c.projects.ListByDriver(ctx, driverID)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", models.ErrTransientFetch, err)
			logger.Warn("Project fetch failed",
				"driver_id", driverID,
				"attempt", attempt,
				"error", err.Error(),
			)
			continue
		}

		view := View{
			Projects: projectList,
			LoadedAt: c.clock.Now(),
		}
		c.loadReferences(ctx, driverID, &view)
		c.commit(ctx, driverID, generation, view)
		return view, nil
	}

	return View{}, fmt.Errorf("%w: driver %s gave up after %d retries: %v",
		models.ErrPersistentFetch, driverID, c.cfg.MaxRetries, lastErr)
}

// loadReferences fills in companies and car types. A failure here is logged
// and leaves the slices empty; it never fails the load.
func (c *Controller) loadReferences(ctx context.Context, driverID string, view *View) {
	companies, err := c.refs.ListCompanies(ctx)
	if err != nil {
		logger.Warn("Company reference fetch failed, continuing without",
			"driver_id", driverID, "error", err.Error())
	} else {
		view.Companies = companies
	}

	carTypes, err := c.refs.ListCarTypes(ctx)
	if err != nil {
		logger.Warn("Car type reference fetch failed, continuing without",
			"driver_id", driverID, "error", err.Error())
	} else {
		view.CarTypes = carTypes
	}
}

// commit installs the view and resets the retry count, unless the driver's
// session generation moved on while this load was in flight.
func (c *Controller) commit(ctx context.Context, driverID string, generation uint64, view View) {
	if ctx.Err() != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[driverID] != generation {
		logger.Info("Discarding superseded fetch result", "driver_id", driverID)
		return
	}
	c.views[driverID] = view
	c.retryCounts[driverID] = 0
}

// Current returns the driver's last committed View.
func (c *Controller) Current(driverID string) (View, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	view, ok := c.views[driverID]
	return view, ok
}

// RetryCount reports how many retries the driver's most recent load has
// consumed. It is zero after a successful load.
func (c *Controller) RetryCount(driverID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.retryCounts[driverID]
}

// Invalidate drops the driver's View and fences out any in-flight load, so a
// stale result cannot land after a logout or a fresh login.
func (c *Controller) Invalidate(driverID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[driverID]++
	delete(c.views, driverID)
	c.retryCounts[driverID] = 0
}

// setRetryCount is generation-fenced like commit: a superseded load's
// retries must not overwrite the counter the newer session observes.
func (c *Controller) setRetryCount(driverID string, generation uint64, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[driverID] != generation {
		return
	}
	c.retryCounts[driverID] = n
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
