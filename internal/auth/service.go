package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fleetdesk/dispatch/common/logger"
	"github.com/fleetdesk/dispatch/internal/models"
	"github.com/fleetdesk/dispatch/internal/repository"
)

// Identity is a resolved driver identity. Token is set only on the
// direct-access path, for propagation into subsequent authorized calls.
type Identity struct {
	DriverID string `json:"driver_id"`
	Name     string `json:"name"`
	Token    string `json:"token,omitempty"`
}

// Config holds authentication policy
type Config struct {
	// AllowOfflineLogin controls whether a driver whose operational status is
	// offline may still authenticate. The back office historically flipped on
	// this; keep it an explicit, named policy rather than an implicit query
	// predicate.
	AllowOfflineLogin bool
}

// DefaultConfig returns the default authentication policy
func DefaultConfig() Config {
	return Config{
		AllowOfflineLogin: true,
	}
}

// Service validates driver credentials and direct-access tokens
type Service struct {
	store repository.CredentialStore
	cfg   Config
}

// New creates an authentication Service
func New(store repository.CredentialStore, cfg Config) *Service {
	return &Service{
		store: store,
		cfg:   cfg,
	}
}

// Login resolves a driver from a login identifier and PIN. The identifier is
// trimmed and case-folded, the PIN trimmed, before comparison. Failures are
// non-enumerable: an unknown identifier and a wrong PIN produce the same
// models.ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, loginID, pin string) (Identity, error) {
	loginID = NormalizeLoginID(loginID)
	pin = strings.TrimSpace(pin)

	if loginID == "" || pin == "" {
		return Identity{}, models.ErrValidation
	}

	driver, err := s.store.FindByLoginID(ctx, loginID)
	if err != nil {
		if errors.Is(err, repository.ErrNoDriver) {
			return Identity{}, models.ErrInvalidCredentials
		}
		return Identity{}, err
	}

	if driver.PIN != pin {
		return Identity{}, models.ErrInvalidCredentials
	}

	if !s.cfg.AllowOfflineLogin && driver.Status == models.DriverOffline {
		return Identity{}, models.ErrInvalidCredentials
	}

	s.touchLastActive(driver.ID)

	return Identity{DriverID: driver.ID, Name: driver.Name}, nil
}

// LoginWithToken resolves a driver from a direct-access token. Matching is
// exact and case-sensitive; tokens are opaque values, not human-typed.
func (s *Service) LoginWithToken(ctx context.Context, token string) (Identity, error) {
	if strings.TrimSpace(token) == "" {
		return Identity{}, models.ErrValidation
	}

	driver, err := s.store.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNoDriver) {
			return Identity{}, models.ErrInvalidToken
		}
		return Identity{}, err
	}

	s.touchLastActive(driver.ID)

	return Identity{DriverID: driver.ID, Name: driver.Name, Token: token}, nil
}

// touchLastActive stamps the driver's last-activity timestamp in the
// background. Failures are logged and never surfaced: authentication has
// already succeeded by the time this runs.
func (s *Service) touchLastActive(driverID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.store.TouchLastActive(ctx, driverID); err != nil {
			logger.Warn("Failed to record driver activity",
				"driver_id", driverID,
				"error", err,
			)
		}
	}()
}

// NormalizeLoginID trims surrounding whitespace and case-folds a login
// identifier so that "  DRV001 " and "drv001" resolve identically.
func NormalizeLoginID(loginID string) string {
	return strings.ToLower(strings.TrimSpace(loginID))
}
