package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"anypay-escrow-go/internal/database"
	"anypay-escrow-go/internal/escrow"
	"anypay-escrow-go/internal/metrics"
	"anypay-escrow-go/internal/models"
	"anypay-escrow-go/internal/settlement"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads a .env file from the working directory when one exists
func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded (%v), using the process environment\n", err)
	} else {
		log.Println("Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService  *database.Service
	Engine     *escrow.Engine
	Dispatcher *settlement.Dispatcher
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices opens the database and wires the escrow engine to the
// settlement dispatcher and the process metrics. The dispatcher is created but
// not started.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	dispatcher, err := settlement.NewDispatcher(settlement.LogSigner{}, cfg.Settlement)
	if err != nil {
		dbService.Close()
		return nil, fmt.Errorf("unable to create settlement dispatcher: %w", err)
	}
	escrowMetrics := metrics.Escrow()
	dispatcher.SetMetrics(escrowMetrics)

	engine := escrow.NewEngine(dbService)
	engine.SetSettler(dispatcher)
	engine.SetMetrics(escrowMetrics)

	zap.L().Info("Escrow services initialized",
		zap.String("database", cfg.Database.Path),
		zap.Int("settlement_queue_size", cfg.Settlement.QueueSize))

	return &Services{
		DbService:  dbService,
		Engine:     engine,
		Dispatcher: dispatcher,
	}, nil
}

// InitializeDatabaseOnly initializes the engine without a settlement channel.
// Useful for read-only reports and one-shot admin tools.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, *escrow.Engine, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return dbService, escrow.NewEngine(dbService), nil
}

func (cs *Services) Close() {
	if cs.Dispatcher != nil {
		cs.Dispatcher.Stop()
	}
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
