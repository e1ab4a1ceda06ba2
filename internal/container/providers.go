// Package container provides dependency injection and lifecycle management
// for the timesheet service.
package container

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/timesheet-ocr/internal/application/port"
	"github.com/garyjia/timesheet-ocr/internal/config"
	"github.com/garyjia/timesheet-ocr/internal/infrastructure/document"
	"github.com/garyjia/timesheet-ocr/internal/infrastructure/external/openai"
	"github.com/garyjia/timesheet-ocr/internal/infrastructure/messaging"
	"github.com/garyjia/timesheet-ocr/internal/infrastructure/persistence/repository"
	"github.com/garyjia/timesheet-ocr/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/timesheet-ocr/internal/infrastructure/storage"
	"github.com/garyjia/timesheet-ocr/internal/reference"
	"github.com/garyjia/timesheet-ocr/migrations"
	"github.com/garyjia/timesheet-ocr/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.TxManager
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Entries port.EntryRepository
	Runs    port.RunRepository
}

// ExternalBundle holds the adapters that reach outside the process.
type ExternalBundle struct {
	Extractor  port.Extractor
	Converter  port.DocumentConverter
	Images     port.ImageStore
	References port.ReferenceProvider
}

// ProvideDatabase opens the database and applies pending migrations. The
// embedded migrations are used unless a directory is configured.
func ProvideDatabase(cfg *config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(db, logger)
	if cfg.MigrationsDir != "" {
		err = migrator.RunMigrations(cfg.MigrationsDir)
	} else {
		err = migrator.RunMigrationsFS(migrations.FS)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewTxManager(db.DB, logger.Named("tx")),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &RepositoryBundle{
		Entries: repository.NewEntryRepository(db.DB, logger),
		Runs:    repository.NewRunRepository(db.DB, logger),
	}, nil
}

// ProvideExternal creates the reference loader, image store, converter and,
// when an API key is configured, the extractor.
func ProvideExternal(cfg *config.Config, logger *zap.Logger) (*ExternalBundle, error) {
	references := reference.NewLoader(cfg.LoaderConfig(), logger.Named("reference"))

	bundle := &ExternalBundle{
		Converter:  document.NewConverter(cfg.Document.DPI, cfg.Document.JPEGQuality, logger.Named("document")),
		Images:     storage.NewLocalImageStore(cfg.Storage.BaseDir, logger.Named("storage")),
		References: references,
	}

	if !cfg.HasExtractor() {
		logger.Warn("OPENAI_API_KEY not set, image uploads are disabled")
		return bundle, nil
	}

	prompts := openai.DefaultPrompts()
	if cfg.OpenAI.PromptsPath != "" {
		loaded, err := openai.LoadPrompts(cfg.OpenAI.PromptsPath)
		if err != nil {
			return nil, err
		}
		prompts = loaded
	}

	bundle.Extractor = openai.NewExtractor(openai.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.Model,
		Timeout: cfg.OpenAI.Timeout,
	}, prompts, references, logger.Named("openai"))
	return bundle, nil
}

// ProvideKafkaPublisher returns nil when the audit topic is disabled
func ProvideKafkaPublisher(cfg *config.KafkaConfig, logger *zap.Logger) (*messaging.KafkaPublisher, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	return messaging.NewKafkaPublisher(messaging.KafkaConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Acks:         cfg.Acks,
		WriteTimeout: cfg.WriteTimeout,
	}, logger.Named("kafka"))
}
