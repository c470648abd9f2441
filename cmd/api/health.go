package main

import (
	"context"
	"net/http"
	"time"

	"github.com/fleetdesk/dispatch/common/response"
)

// Liveness reports that the process is up.
func (app *Config) Liveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// Readiness reports whether the service can serve driver traffic. The broker
// is optional, so only the database gates readiness.
func (app *Config) Readiness(w http.ResponseWriter, r *http.Request) {
	checks := map[string]bool{
		"database": app.checkDatabase(),
		"rabbitmq": app.checkRabbitMQ(),
	}

	if !checks["database"] {
		response.WriteJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not ready",
			"checks": checks,
		})
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ready",
		"checks": checks,
	})
}

func (app *Config) checkDatabase() bool {
	if app.Repo == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return app.Repo.PingContext(ctx) == nil
}

func (app *Config) checkRabbitMQ() bool {
	return app.RabbitConn != nil && !app.RabbitConn.IsClosed()
}
