package container

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/garyjia/timesheet-ocr/internal/application/port"
	"github.com/garyjia/timesheet-ocr/internal/application/service"
	"github.com/garyjia/timesheet-ocr/internal/config"
	"github.com/garyjia/timesheet-ocr/internal/infrastructure/messaging"
	"github.com/garyjia/timesheet-ocr/internal/infrastructure/worker"
	"github.com/garyjia/timesheet-ocr/internal/pipeline"
	"github.com/garyjia/timesheet-ocr/pkg/database"
	"github.com/garyjia/timesheet-ocr/pkg/utils"
)

type state int

const (
	stateNew state = iota
	stateRunning
	stateClosed
)

// closer is one teardown step registered while starting
type closer struct {
	name string
	fn   func() error
}

// Container wires the timesheet service from configuration and owns the
// lifecycle of everything it opens. Teardown runs in reverse start order,
// including after a Start that failed half way.
type Container struct {
	config *config.Config
	logger *zap.Logger

	db        *database.DB
	txManager port.TransactionManager
	repos     *RepositoryBundle
	external  *ExternalBundle
	publisher *messaging.KafkaPublisher
	workers   *worker.WorkerManager

	timesheetService service.TimesheetService

	mu      sync.RWMutex
	state   state
	closers []closer
}

// HealthStatus is the health of every component
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth is the health of one component
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer validates cfg. Nothing is opened until Start.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Container{config: cfg, logger: logger}, nil
}

// Start opens the database, builds the adapters and the service, then
// starts background workers. On error everything opened so far is closed.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case stateRunning:
		return fmt.Errorf("container already started")
	case stateClosed:
		return fmt.Errorf("container has been closed")
	}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"database", c.startDatabase},
		{"external adapters", c.startExternal},
		{"audit publisher", c.startPublisher},
		{"service", c.startService},
		{"workers", c.startWorkers},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			c.logger.Error("Container start failed", zap.String("step", step.name), zap.Error(err))
			if cerr := c.runClosers(); cerr != nil {
				c.logger.Error("Cleanup after failed start", zap.Error(cerr))
			}
			c.state = stateClosed
			return fmt.Errorf("failed to start %s: %w", step.name, err)
		}
	}

	c.state = stateRunning
	c.logger.Info("Container started",
		zap.Bool("extraction_enabled", c.external.Extractor != nil),
		zap.Bool("kafka_enabled", c.publisher != nil),
		zap.Bool("inbox_enabled", c.config.Inbox.Enabled))
	return nil
}

func (c *Container) onClose(name string, fn func() error) {
	c.closers = append(c.closers, closer{name: name, fn: fn})
}

func (c *Container) startDatabase(context.Context) error {
	bundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.db = bundle.DB
	c.txManager = bundle.TransactionMgr
	c.onClose("database", c.db.Close)

	c.repos, err = ProvideRepositories(c.db, c.logger)
	return err
}

func (c *Container) startExternal(context.Context) error {
	external, err := ProvideExternal(c.config, c.logger)
	if err != nil {
		return err
	}
	c.external = external
	return nil
}

func (c *Container) startPublisher(context.Context) error {
	publisher, err := ProvideKafkaPublisher(&c.config.Kafka, c.logger)
	if err != nil {
		return err
	}
	if publisher != nil {
		c.publisher = publisher
		c.onClose("kafka publisher", publisher.Close)
	}
	return nil
}

func (c *Container) startService(context.Context) error {
	var audit port.AuditSink = c.repos.Runs
	if c.publisher != nil {
		audit = messaging.NewFanout(c.repos.Runs, c.publisher)
	}

	deps := service.Dependencies{
		Converter:  c.external.Converter,
		Images:     c.external.Images,
		References: c.external.References,
		Entries:    c.repos.Entries,
		Runs:       c.repos.Runs,
		Audit:      audit,
		TxManager:  c.txManager,
		Normalizer: pipeline.NewNormalizer(c.config.Pipeline, c.logger.Named("pipeline")),
	}
	// Leave the interface nil when extraction is disabled
	if c.external.Extractor != nil {
		deps.Extractor = c.external.Extractor
	}

	c.timesheetService = service.NewTimesheetService(deps, utils.NewKeyValueLogger(c.logger.Named("service")))
	return nil
}

func (c *Container) startWorkers(ctx context.Context) error {
	c.workers = worker.NewWorkerManager(c.logger.Named("worker"))
	if c.config.Inbox.Enabled {
		c.workers.Register(worker.NewInboxWorker(worker.InboxConfig{
			Dir:          c.config.Inbox.Dir,
			PollInterval: c.config.Inbox.PollInterval,
			Batch: worker.BatchConfig{
				Workers:        c.config.Inbox.Workers,
				ProcessTimeout: c.config.Inbox.ProcessTimeout,
				MaxFileBytes:   c.config.Server.MaxUploadBytes,
			},
		}, c.timesheetService, c.logger.Named("inbox")))
	}
	if err := c.workers.StartAll(ctx); err != nil {
		return err
	}
	c.onClose("workers", c.workers.StopAll)
	return nil
}

// Close stops workers first and closes the database last
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == stateClosed {
		return fmt.Errorf("container already closed")
	}
	c.state = stateClosed

	if err := c.runClosers(); err != nil {
		return err
	}
	c.logger.Info("Container closed")
	return nil
}

func (c *Container) runClosers() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		cl := c.closers[i]
		if err := cl.fn(); err != nil {
			c.logger.Error("Failed to close component", zap.String("component", cl.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", cl.name, err))
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// Ready reports whether Start completed and Close has not been called
func (c *Container) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == stateRunning
}

// Health pings the database and reports which optional components are on
func (c *Container) Health() *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{Overall: true, Components: make(map[string]ComponentHealth)}
	set := func(name string, h ComponentHealth) {
		status.Components[name] = h
		if !h.Healthy {
			status.Overall = false
		}
	}

	switch {
	case c.state != stateRunning || c.db == nil:
		set("database", ComponentHealth{Message: "not running"})
	default:
		if err := c.db.Health(context.Background()); err != nil {
			set("database", ComponentHealth{Message: err.Error()})
		} else {
			set("database", ComponentHealth{Healthy: true})
		}
	}

	if c.external != nil && c.external.Extractor != nil {
		set("extraction", ComponentHealth{Healthy: true})
	} else {
		set("extraction", ComponentHealth{Healthy: true, Message: "disabled"})
	}
	if c.publisher != nil {
		set("kafka", ComponentHealth{Healthy: true})
	}
	if c.config.Inbox.Enabled {
		set("inbox", ComponentHealth{Healthy: c.workers != nil && c.workers.IsRunning()})
	}
	return status
}

// TimesheetService returns the application service
func (c *Container) TimesheetService() service.TimesheetService {
	return c.timesheetService
}

// Logger returns the root logger
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the loaded configuration
func (c *Container) Config() *config.Config {
	return c.config
}
