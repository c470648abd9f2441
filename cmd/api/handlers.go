package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fleetdesk/dispatch/common/jwt"
	commonMiddleware "github.com/fleetdesk/dispatch/common/middleware"
	"github.com/fleetdesk/dispatch/common/request"
	"github.com/fleetdesk/dispatch/common/response"
	"github.com/fleetdesk/dispatch/internal/audit"
	"github.com/fleetdesk/dispatch/internal/auth"
	"github.com/fleetdesk/dispatch/internal/models"
)

type AuthRequest struct {
	LoginID string `json:"login_id" validate:"required"`
	PIN     string `json:"pin" validate:"required"`
}

type TokenLoginRequest struct {
	AccessToken string `json:"access_token" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type TransitionRequest struct {
	Target string `json:"target" validate:"required,oneof=accepted started declined completed"`
}

type SessionResponse struct {
	Driver struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"driver"`
	Tokens *jwt.TokenPair `json:"tokens"`
}

// Authenticate establishes a driver session from a login identifier and PIN.
func (app *Config) Authenticate(w http.ResponseWriter, r *http.Request) {
	var requestPayload AuthRequest

	err := request.ReadAndValidate(w, r, &requestPayload)
	if request.HandleError(w, err) {
		return
	}

	reqLogger := commonMiddleware.GetRequestLogger(r.Context())

	identity, err := app.Auth.Login(r.Context(), requestPayload.LoginID, requestPayload.PIN)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrValidation):
			response.BadRequest(w, "Login identifier and PIN are required")
		case errors.Is(err, models.ErrInvalidCredentials):
			reqLogger.Warn("Failed authentication attempt",
				"login_id", auth.NormalizeLoginID(requestPayload.LoginID),
			)
			app.Audit.Publish(r.Context(), audit.EventDriverLogin, auth.NormalizeLoginID(requestPayload.LoginID), "failure", audit.Metadata{
				IP:        getClientIP(r),
				UserAgent: r.UserAgent(),
				Action:    "Login attempt",
				Reason:    "Invalid credentials",
			})
			response.Unauthorized(w, "Invalid credentials")
		default:
			reqLogger.Error("Authentication failed", "error", err.Error())
			response.InternalServerError(w, "Authentication failed")
		}
		return
	}

	app.issueSession(w, r, identity, audit.EventDriverLogin)
}

// TokenLogin establishes a driver session from a stored access token.
func (app *Config) TokenLogin(w http.ResponseWriter, r *http.Request) {
	var requestPayload TokenLoginRequest

	err := request.ReadAndValidate(w, r, &requestPayload)
	if request.HandleError(w, err) {
		return
	}

	reqLogger := commonMiddleware.GetRequestLogger(r.Context())

	identity, err := app.Auth.LoginWithToken(r.Context(), requestPayload.AccessToken)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrValidation):
			response.BadRequest(w, "Access token is required")
		case errors.Is(err, models.ErrInvalidToken):
			reqLogger.Warn("Rejected token login")
			response.Unauthorized(w, "Invalid access token")
		default:
			reqLogger.Error("Token login failed", "error", err.Error())
			response.InternalServerError(w, "Authentication failed")
		}
		return
	}

	app.issueSession(w, r, identity, audit.EventDriverTokenLogin)
}

// RefreshSession exchanges a valid refresh token for a fresh token pair.
func (app *Config) RefreshSession(w http.ResponseWriter, r *http.Request) {
	var requestPayload RefreshRequest

	err := request.ReadAndValidate(w, r, &requestPayload)
	if request.HandleError(w, err) {
		return
	}

	claims, err := jwt.ValidateToken(requestPayload.RefreshToken, app.JWTSecret)
	if err != nil {
		if errors.Is(err, jwt.ErrExpiredToken) {
			response.Unauthorized(w, "Refresh token has expired")
			return
		}
		response.Unauthorized(w, "Invalid refresh token")
		return
	}

	tokens, err := jwt.GenerateTokenPair(claims.DriverID, claims.DriverName, app.JWTSecret, app.JWTExpiry, app.RefreshExpiry)
	if err != nil {
		commonMiddleware.GetRequestLogger(r.Context()).Error("Failed to generate session tokens",
			"driver_id", claims.DriverID,
			"error", err.Error(),
		)
		response.InternalServerError(w, "Failed to generate session tokens")
		return
	}

	response.Success(w, "Session refreshed successfully", tokens)
}

// issueSession fences out any prior session's in-flight fetches, mints a
// token pair and writes the session response.
func (app *Config) issueSession(w http.ResponseWriter, r *http.Request, identity auth.Identity, eventName string) {
	reqLogger := commonMiddleware.GetRequestLogger(r.Context())

	app.Fetch.Invalidate(identity.DriverID)

	tokens, err := jwt.GenerateTokenPair(identity.DriverID, identity.Name, app.JWTSecret, app.JWTExpiry, app.RefreshExpiry)
	if err != nil {
		reqLogger.Error("Failed to generate session tokens",
			"driver_id", identity.DriverID,
			"error", err.Error(),
		)
		response.InternalServerError(w, "Failed to generate session tokens")
		return
	}

	reqLogger.Info("Driver authenticated successfully", "driver_id", identity.DriverID)

	app.Audit.Publish(r.Context(), eventName, identity.DriverID, "success", audit.Metadata{
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Action:    "Driver session established",
	})

	sessionResponse := SessionResponse{Tokens: tokens}
	sessionResponse.Driver.ID = identity.DriverID
	sessionResponse.Driver.Name = identity.Name

	response.Success(w, "Authentication successful", sessionResponse)
}

// ListProjects loads the authenticated driver's working set: projects plus
// reference data, fetched with bounded retry.
func (app *Config) ListProjects(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "No driver session")
		return
	}

	reqLogger := commonMiddleware.GetRequestLogger(r.Context())

	view, err := app.Fetch.Load(r.Context(), identity.DriverID)
	if err != nil {
		if errors.Is(err, models.ErrPersistentFetch) {
			reqLogger.Error("Project fetch exhausted its retry budget",
				"driver_id", identity.DriverID,
				"error", err.Error(),
			)
			response.BadGateway(w, "Projects are temporarily unavailable, please retry")
			return
		}
		reqLogger.Error("Project fetch failed",
			"driver_id", identity.DriverID,
			"error", err.Error(),
		)
		response.InternalServerError(w, "Failed to load projects")
		return
	}

	response.Success(w, "Projects loaded", view)
}

// TransitionStatus moves one of the driver's projects through its status
// machine.
func (app *Config) TransitionStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "No driver session")
		return
	}

	var requestPayload TransitionRequest
	err := request.ReadAndValidate(w, r, &requestPayload)
	if request.HandleError(w, err) {
		return
	}

	projectID := chi.URLParam(r, "projectID")
	target := models.TransitionTarget(requestPayload.Target)

	err = app.Projects.Transition(r.Context(), projectID, identity.DriverID, target)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrValidation):
			response.BadRequest(w, "Invalid status transition request")
		case errors.Is(err, models.ErrNotOwned):
			response.NotFound(w, "Project not found")
		case errors.Is(err, models.ErrTransitionRejected):
			app.Audit.Publish(r.Context(), audit.EventProjectStatus, identity.DriverID, "failure", audit.Metadata{
				IP:        getClientIP(r),
				UserAgent: r.UserAgent(),
				Action:    "Status transition to " + requestPayload.Target,
				Reason:    "Transition rejected",
				Extra:     map[string]any{"project_id": projectID},
			})
			response.Conflict(w, "Project is not in a state that allows this transition")
		default:
			commonMiddleware.GetRequestLogger(r.Context()).Error("Status transition failed",
				"project_id", projectID,
				"driver_id", identity.DriverID,
				"error", err.Error(),
			)
			response.InternalServerError(w, "Failed to update project status")
		}
		return
	}

	app.Audit.Publish(r.Context(), audit.EventProjectStatus, identity.DriverID, "success", audit.Metadata{
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Action:    "Status transition to " + requestPayload.Target,
		Extra:     map[string]any{"project_id": projectID},
	})

	response.Success(w, "Project status updated", map[string]string{
		"project_id": projectID,
		"target":     requestPayload.Target,
	})
}

// ListReferences returns companies and car types for display.
func (app *Config) ListReferences(w http.ResponseWriter, r *http.Request) {
	companies, err := app.Repo.ListCompanies(r.Context())
	if err != nil {
		response.InternalServerError(w, "Failed to load reference data")
		return
	}

	carTypes, err := app.Repo.ListCarTypes(r.Context())
	if err != nil {
		response.InternalServerError(w, "Failed to load reference data")
		return
	}

	response.Success(w, "Reference data loaded", map[string]interface{}{
		"companies": companies,
		"car_types": carTypes,
	})
}

// getClientIP extracts the real client IP from request headers, preferring
// X-Forwarded-For, then X-Real-IP, then RemoteAddr.
func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.Index(forwarded, ","); idx != -1 {
			return strings.TrimSpace(forwarded[:idx])
		}
		return strings.TrimSpace(forwarded)
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	if idx := strings.LastIndex(r.RemoteAddr, ":"); idx != -1 {
		return r.RemoteAddr[:idx]
	}
	return r.RemoteAddr
}
