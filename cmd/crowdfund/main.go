package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Aidin1998/crowdfund/internal/config"
	"github.com/Aidin1998/crowdfund/internal/database"
	"github.com/Aidin1998/crowdfund/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:           "crowdfund",
	Short:         "Crowdfund API server and maintenance commands",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(adminCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.New(os.Stderr, "[crowdfund] ", log.LstdFlags).Fatalln(err.Error())
	}
}

// env is what every command needs before doing its own work.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
}

func setup() (*env, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	zapLogger, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := database.Open(cfg.Database, zapLogger)
	if err != nil {
		_ = zapLogger.Sync()
		return nil, err
	}
	return &env{cfg: cfg, logger: zapLogger, db: db}, nil
}

func (e *env) close() {
	if err := database.Close(e.db); err != nil {
		e.logger.Warn("Failed to close database", zap.Error(err))
	}
	_ = e.logger.Sync()
}
