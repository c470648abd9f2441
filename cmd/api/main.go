package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgconn"
	_ "github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/fleetdesk/dispatch/common/env"
	"github.com/fleetdesk/dispatch/common/logger"
	"github.com/fleetdesk/dispatch/common/rabbitmq"
	"github.com/fleetdesk/dispatch/common/telemetry"
	"github.com/fleetdesk/dispatch/internal/audit"
	"github.com/fleetdesk/dispatch/internal/auth"
	"github.com/fleetdesk/dispatch/internal/clock"
	"github.com/fleetdesk/dispatch/internal/fetch"
	"github.com/fleetdesk/dispatch/internal/projects"
	"github.com/fleetdesk/dispatch/internal/repository"
)

const serviceName = "dispatch-service"

type Config struct {
	DB            *sql.DB
	Repo          repository.Repository
	Auth          *auth.Service
	Projects      *projects.Service
	Fetch         *fetch.Controller
	Audit         *audit.Publisher
	JWTSecret     string
	JWTExpiry     time.Duration
	RefreshExpiry time.Duration
	RabbitConn    *amqp.Connection
}

func main() {
	logShutdown, err := telemetry.InitLogger(serviceName)
	if err != nil {
		logShutdown = func(context.Context) error { return nil }
	}
	logger.InitDefault(serviceName)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logShutdown(ctx)
	}()

	logger.Info("Starting dispatch service")

	shutdown, err := telemetry.InitTracer(serviceName, "1.0.0")
	if err != nil {
		logger.Error("Failed to initialize tracer", "error", err)
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				logger.Error("Failed to shutdown tracer", "error", err)
			}
		}()
	}

	conn := connectToDB()
	if conn == nil {
		logger.Fatal("Cannot connect to database")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "default-secret-change-in-production"
		logger.Warn("Using default JWT secret. Set JWT_SECRET environment variable in production!")
	}
	jwtExpiry := env.GetDuration("JWT_EXPIRY", 24*time.Hour)
	refreshExpiry := env.GetDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour)

	var rabbitConn *amqp.Connection
	if amqpURL := os.Getenv("AMQP_URL"); amqpURL != "" {
		rabbitConn, err = rabbitmq.Connect(amqpURL)
		if err != nil {
			logger.Error("Failed to connect to RabbitMQ, continuing without audit events", "error", err)
		} else {
			logger.Info("Connected to RabbitMQ")
			defer func() {
				if err := rabbitConn.Close(); err != nil {
					logger.Error("Error closing RabbitMQ connection", "error", err)
				}
			}()
		}
	}

	repo := &repository.PostgresRepo{DB: conn}
	clk := clock.New()

	authCfg := auth.DefaultConfig()
	authCfg.AllowOfflineLogin = env.GetBool("ALLOW_OFFLINE_LOGIN", authCfg.AllowOfflineLogin)

	app := Config{
		DB:            conn,
		Repo:          repo,
		Auth:          auth.New(repo, authCfg),
		Projects:      projects.New(repo, clk),
		Fetch:         fetch.New(repo, repo, clk, fetch.DefaultConfig()),
		Audit:         audit.New(rabbitConn),
		JWTSecret:     jwtSecret,
		JWTExpiry:     jwtExpiry,
		RefreshExpiry: refreshExpiry,
		RabbitConn:    rabbitConn,
	}

	webPort := env.Get("WEB_PORT", "80")

	logger.Info("Starting HTTP server",
		"port", webPort,
		"jwt_expiry", jwtExpiry.String(),
		"refresh_expiry", refreshExpiry.String(),
	)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", webPort),
		Handler: app.routes(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}

func openDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err = db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}

func connectToDB() *sql.DB {
	dsn := os.Getenv("DSN")

	var counts int64
	for {
		connection, err := openDB(dsn)
		if err != nil {
			logger.Warn("Postgres not yet ready, retrying...",
				"attempt", counts+1,
				"error", err,
			)
			counts++
		} else {
			logger.Info("Connected to Postgres successfully")
			return connection
		}

		if counts > 10 {
			logger.Error("Failed to connect to Postgres after 10 attempts", "error", err)
			return nil
		}

		logger.Debug("Backing off for two seconds")
		time.Sleep(2 * time.Second)
	}
}
