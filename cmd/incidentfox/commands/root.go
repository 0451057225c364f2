package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/incidentfox/incidentfox/internal/catalog"
	"github.com/incidentfox/incidentfox/internal/config"
	"github.com/incidentfox/incidentfox/internal/database"
	"github.com/incidentfox/incidentfox/internal/logging"
	"github.com/incidentfox/incidentfox/internal/notify"
	"github.com/incidentfox/incidentfox/internal/services"
)

// Version is stamped at build time with -ldflags
var Version = "0.1.0"

const slowQueryThreshold = 200 * time.Millisecond

var (
	configPath  string
	logLevel    string
	logFormat   string
	catalogPath string
)

var rootCmd = &cobra.Command{
	Use:   "incidentfox",
	Short: "incidentfox - investigation memory for incident response agents",
	Long: `incidentfox keeps a local history of incident investigations, the
patterns learned from them, and services discovered along the way. It serves
this memory to AI agents over the Model Context Protocol and helps keep the
.incidentfox.yaml service catalog up to date.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default <data dir>/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: json, console or auto")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "Path to the service catalog (default: search for .incidentfox.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(syncCatalogCmd)
}

// app holds what every command needs: configuration, the store and the
// catalog loader
type app struct {
	cfg            *config.Config
	db             *gorm.DB
	investigations *services.InvestigationService
	discoveries    *services.DiscoveryService
	catalog        *catalog.Loader
	notifications  *notify.Dispatcher
}

// loadConfig reads configuration and applies command line overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if catalogPath != "" {
		cfg.Catalog.Path = catalogPath
	}
	return cfg, nil
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.DatabaseURL, logging.GormLogger(slowQueryThreshold))
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, err
	}

	ttl := time.Duration(cfg.Catalog.CacheTTLSeconds) * time.Second
	return &app{
		cfg:            cfg,
		db:             db,
		investigations: services.NewInvestigationService(db),
		discoveries:    services.NewDiscoveryService(db),
		catalog:        catalog.NewLoader(cfg.Catalog.Path, ttl),
	}, nil
}

func (a *app) Close() {
	if a.notifications != nil {
		a.notifications.Wait()
	}
	a.catalog.Close()
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}
