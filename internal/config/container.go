package config

import (
	"fmt"

	"epub-reader/internal/domain"
	"epub-reader/internal/infra/supabase"
	"epub-reader/internal/repository"
	"epub-reader/internal/service"
	"epub-reader/pkg/logger"

	"gorm.io/gorm"
)

const (
	StoreBackendGorm     = "gorm"
	StoreBackendSupabase = "supabase"
)

// Container holds all application dependencies
type Container struct {
	Config         domain.Config
	Logger         domain.Logger
	DB             *gorm.DB
	SupabaseClient domain.SupabaseClient

	HighlightRepository domain.HighlightRepository
	DocumentRepository  domain.DocumentRepository
	PositionRepository  domain.PositionRepository
	FlagRepository      domain.FlagRepository

	HighlightService domain.HighlightService
	DocumentService  domain.DocumentService
	PositionService  domain.PositionService
	Preloader        *service.Preloader
}

// NewContainer creates a new dependency injection container from the environment
func NewContainer() (*Container, error) {
	cfg := NewConfig()
	return NewContainerWithConfig(cfg, logger.NewLogger(cfg.GetLogLevel()))
}

// NewContainerWithConfig wires every dependency for the given configuration.
// Documents and flags always live in the gorm database; highlights and
// reading positions follow STORE_BACKEND.
func NewContainerWithConfig(cfg domain.Config, appLogger domain.Logger) (*Container, error) {
	db, err := repository.OpenDatabase(cfg, appLogger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repository.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	c := &Container{
		Config:             cfg,
		Logger:             appLogger,
		DB:                 db,
		DocumentRepository: repository.NewGormDocumentRepository(db),
		FlagRepository:     repository.NewGormFlagRepository(db),
	}

	switch cfg.GetStoreBackend() {
	case StoreBackendGorm, "":
		c.HighlightRepository = repository.NewGormHighlightRepository(db, appLogger)
		c.PositionRepository = repository.NewGormPositionRepository(db)
	case StoreBackendSupabase:
		client := supabase.NewSupabaseClient(cfg, appLogger)
		if err := client.Initialize(); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("initialize supabase: %w", err)
		}
		c.SupabaseClient = client
		c.HighlightRepository = repository.NewSupabaseHighlightRepository(client, appLogger)
		c.PositionRepository = repository.NewSupabasePositionRepository(client, appLogger)
	default:
		_ = c.Close()
		return nil, fmt.Errorf("unsupported store backend %q", cfg.GetStoreBackend())
	}

	c.HighlightService = service.NewHighlightService(c.HighlightRepository, appLogger)
	c.PositionService = service.NewPositionService(c.PositionRepository, appLogger)
	c.DocumentService = service.NewDocumentService(c.DocumentRepository, c.HighlightService, c.PositionRepository, appLogger)
	c.Preloader = service.NewPreloader(c.FlagRepository, c.DocumentService, cfg.GetPreloadDocuments(), appLogger)

	appLogger.Info("Container initialized", "store_backend", cfg.GetStoreBackend(), "db_driver", cfg.GetDatabaseDriver())
	return c, nil
}

// Close releases the database connection pool
func (c *Container) Close() error {
	if c.DB == nil {
		return nil
	}
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
