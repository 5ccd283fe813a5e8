package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"

	"github.com/myclarix/lumina/cmd/mainconfig"
	"github.com/myclarix/lumina/internal/app/bootstrap"
	appconfig "github.com/myclarix/lumina/internal/config"
	"github.com/myclarix/lumina/internal/http/handlers"
	"github.com/myclarix/lumina/pkg/logging"
)

// clearappointments deletes stored appointments from the configured backend.
//
//	clearappointments -yes               delete every appointment
//	clearappointments -client c1 -yes    delete one client's appointments
func main() {
	_ = godotenv.Load()

	clientID := flag.String("client", "", "only delete this client's appointments")
	confirm := flag.Bool("yes", false, "confirm the deletion")
	flag.Parse()

	cfg := appconfig.Load()
	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	if !*confirm {
		fmt.Fprintln(os.Stderr, "refusing to delete without -yes")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	clearer, closeFn, err := openRepository(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open appointment store", "error", err)
		os.Exit(1)
	}
	defer closeFn()

	removed, err := clearAppointments(ctx, clearer, *clientID)
	if err != nil {
		logger.Error("clear failed", "error", err)
		os.Exit(1)
	}
	logger.Info("appointments cleared", "backend", cfg.AppointmentBackend, "client_id", *clientID, "removed", removed)
	fmt.Printf("deleted %d appointments\n", removed)
}

func openRepository(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (handlers.AppointmentClearer, func(), error) {
	noop := func() {}
	switch cfg.AppointmentBackend {
	case "", "memory":
		return nil, noop, errors.New("APPOINTMENT_BACKEND=memory has nothing persistent to clear")
	}

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg)
	if err != nil {
		return nil, noop, err
	}
	closeFn := noop
	if pool != nil {
		closeFn = pool.Close
	}

	var dynamoClient *dynamodb.Client
	if cfg.AppointmentBackend == "dynamodb" {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			closeFn()
			return nil, noop, fmt.Errorf("load aws config: %w", err)
		}
		dynamoClient = dynamodb.NewFromConfig(awsCfg)
	}

	repo, err := bootstrap.BuildAppointmentRepository(cfg, pool, dynamoClient, logger)
	if err != nil {
		closeFn()
		return nil, noop, err
	}
	return repo, closeFn, nil
}

func clearAppointments(ctx context.Context, clearer handlers.AppointmentClearer, clientID string) (int64, error) {
	if clearer == nil {
		return 0, errors.New("no appointment store")
	}
	return clearer.Clear(ctx, strings.TrimSpace(clientID))
}
