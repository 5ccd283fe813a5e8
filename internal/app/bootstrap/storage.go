package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/myclarix/lumina/internal/appointments"
	appconfig "github.com/myclarix/lumina/internal/config"
	"github.com/myclarix/lumina/pkg/logging"
)

// BuildPostgresPool connects to DATABASE_URL, or returns nil when it is unset.
func BuildPostgresPool(ctx context.Context, cfg *appconfig.Config) (*pgxpool.Pool, error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	return pool, nil
}

// BuildSQLDB opens a database/sql handle over the pgx driver for the admin
// reporting queries, or returns nil when DATABASE_URL is unset.
func BuildSQLDB(cfg *appconfig.Config) (*sql.DB, error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open sql db: %w", err)
	}
	db.SetMaxOpenConns(4)
	return db, nil
}

// BuildAppointmentRepository selects the appointment backend from
// APPOINTMENT_BACKEND. pool and dynamo are only consulted by their backend.
func BuildAppointmentRepository(cfg *appconfig.Config, pool *pgxpool.Pool, dynamo *dynamodb.Client, logger *logging.Logger) (appointments.Repository, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	switch cfg.AppointmentBackend {
	case "", "memory":
		logger.Warn("appointments are kept in memory and lost on restart")
		return appointments.NewInMemoryRepository(), nil
	case "postgres":
		if pool == nil {
			return nil, fmt.Errorf("bootstrap: APPOINTMENT_BACKEND=postgres requires DATABASE_URL")
		}
		logger.Info("appointment backend", "backend", "postgres")
		return appointments.NewPostgresRepository(pool), nil
	case "dynamodb":
		if dynamo == nil {
			return nil, fmt.Errorf("bootstrap: APPOINTMENT_BACKEND=dynamodb requires an AWS client")
		}
		logger.Info("appointment backend", "backend", "dynamodb", "table", cfg.AppointmentsTable)
		return appointments.NewDynamoRepository(dynamo, cfg.AppointmentsTable, logger), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown APPOINTMENT_BACKEND %q", cfg.AppointmentBackend)
	}
}
