// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/posflow/posflow/internal/audit"
	"github.com/posflow/posflow/internal/config"
	"github.com/posflow/posflow/internal/database"
	"github.com/posflow/posflow/internal/eventbus"
	eventstoreDomain "github.com/posflow/posflow/internal/eventstore/domain"
	eventstoreRepository "github.com/posflow/posflow/internal/eventstore/repository"
	eventstoreUsecase "github.com/posflow/posflow/internal/eventstore/usecase"
	"github.com/posflow/posflow/internal/metrics"
	ordersUsecase "github.com/posflow/posflow/internal/orders/usecase"
	sagaUsecase "github.com/posflow/posflow/internal/saga/usecase"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger *slog.Logger
	db     *sql.DB

	// Managers
	txManager database.TxManager

	// Repositories
	eventRepo    eventstoreUsecase.EventRepository
	snapshotRepo eventstoreUsecase.SnapshotRepository

	// Use Cases
	eventStore   eventstoreUsecase.EventStore
	orchestrator sagaUsecase.Orchestrator

	// Event bus and reactors
	eventBus       *eventbus.Bus
	auditProjector *audit.Projector

	// Observability
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	// Initialization flags and mutex for thread-safety
	mu                 sync.Mutex
	loggerInit         sync.Once
	dbInit             sync.Once
	txManagerInit      sync.Once
	eventRepoInit      sync.Once
	snapshotRepoInit   sync.Once
	eventStoreInit     sync.Once
	orchestratorInit   sync.Once
	eventBusInit       sync.Once
	projectorInit      sync.Once
	metricsInit        sync.Once
	businessMetricInit sync.Once
	initErrors         map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	c.dbInit.Do(func() {
		db, err := c.initDB()
		if err != nil {
			c.initErrors["db"] = err
			return
		}
		c.db = db
	})
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// TxManager returns the transaction manager.
// It requires a database connection to be initialized first.
func (c *Container) TxManager() (database.TxManager, error) {
	c.txManagerInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["txManager"] = fmt.Errorf("failed to get database for tx manager: %w", err)
			return
		}
		c.txManager = database.NewTxManager(db)
	})
	if storedErr, exists := c.initErrors["txManager"]; exists {
		return nil, storedErr
	}
	return c.txManager, nil
}

// EventRepository returns the stored event repository instance.
func (c *Container) EventRepository() (eventstoreUsecase.EventRepository, error) {
	c.eventRepoInit.Do(func() {
		repo, err := c.initEventRepository()
		if err != nil {
			c.initErrors["eventRepo"] = err
			return
		}
		c.eventRepo = repo
	})
	if storedErr, exists := c.initErrors["eventRepo"]; exists {
		return nil, storedErr
	}
	return c.eventRepo, nil
}

// SnapshotRepository returns the snapshot repository instance.
func (c *Container) SnapshotRepository() (eventstoreUsecase.SnapshotRepository, error) {
	c.snapshotRepoInit.Do(func() {
		repo, err := c.initSnapshotRepository()
		if err != nil {
			c.initErrors["snapshotRepo"] = err
			return
		}
		c.snapshotRepo = repo
	})
	if storedErr, exists := c.initErrors["snapshotRepo"]; exists {
		return nil, storedErr
	}
	return c.snapshotRepo, nil
}

// EventStore returns the event store use case, instrumented when metrics are
// enabled.
func (c *Container) EventStore() (eventstoreUsecase.EventStore, error) {
	c.eventStoreInit.Do(func() {
		store, err := c.initEventStore()
		if err != nil {
			c.initErrors["eventStore"] = err
			return
		}
		c.eventStore = store
	})
	if storedErr, exists := c.initErrors["eventStore"]; exists {
		return nil, storedErr
	}
	return c.eventStore, nil
}

// Orchestrator returns the saga orchestrator, instrumented when metrics are
// enabled.
func (c *Container) Orchestrator() (sagaUsecase.Orchestrator, error) {
	c.orchestratorInit.Do(func() {
		orchestrator, err := c.initOrchestrator()
		if err != nil {
			c.initErrors["orchestrator"] = err
			return
		}
		c.orchestrator = orchestrator
	})
	if storedErr, exists := c.initErrors["orchestrator"]; exists {
		return nil, storedErr
	}
	return c.orchestrator, nil
}

// EventBus returns the domain event bus with the audit reactors attached.
func (c *Container) EventBus() (*eventbus.Bus, error) {
	c.eventBusInit.Do(func() {
		bus, err := c.initEventBus()
		if err != nil {
			c.initErrors["eventBus"] = err
			return
		}
		c.eventBus = bus
	})
	if storedErr, exists := c.initErrors["eventBus"]; exists {
		return nil, storedErr
	}
	return c.eventBus, nil
}

// AuditProjector returns the audit projector worker.
func (c *Container) AuditProjector() (*audit.Projector, error) {
	c.projectorInit.Do(func() {
		projector, err := c.initAuditProjector()
		if err != nil {
			c.initErrors["auditProjector"] = err
			return
		}
		c.auditProjector = projector
	})
	if storedErr, exists := c.initErrors["auditProjector"]; exists {
		return nil, storedErr
	}
	return c.auditProjector, nil
}

// OrderUseCase builds the create-order workflow around externally provided
// collaborators. The collaborators are thin request/response services owned
// by other subsystems, so they arrive as arguments instead of living in the
// container.
func (c *Container) OrderUseCase(
	stock ordersUsecase.StockService,
	orders ordersUsecase.OrderRepository,
	kds ordersUsecase.KitchenDisplay,
) (ordersUsecase.OrderUseCase, error) {
	orchestrator, err := c.Orchestrator()
	if err != nil {
		return nil, fmt.Errorf("failed to get orchestrator for order use case: %w", err)
	}
	bus, err := c.EventBus()
	if err != nil {
		return nil, fmt.Errorf("failed to get event bus for order use case: %w", err)
	}
	return ordersUsecase.NewOrderUseCase(orchestrator, stock, orders, kds, bus, c.Logger()), nil
}

// MetricsProvider returns the OpenTelemetry metrics provider.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	c.metricsInit.Do(func() {
		provider, err := metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["metricsProvider"] = fmt.Errorf("failed to create metrics provider: %w", err)
			return
		}
		c.metricsProvider = provider
	})
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	c.businessMetricInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["businessMetrics"] = err
			return
		}
		recorder, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["businessMetrics"] = fmt.Errorf("failed to create business metrics: %w", err)
			return
		}
		c.businessMetrics = recorder
	})
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	// Close the bus first so reactors stop before their backends do.
	if c.eventBus != nil {
		c.eventBus.Close()
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	// Close database connection if initialized
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	// Return combined errors if any occurred
	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initEventRepository creates the stored event repository instance.
func (c *Container) initEventRepository() (eventstoreUsecase.EventRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for event repository: %w", err)
	}

	// Select the appropriate repository based on the database driver
	switch c.config.DBDriver {
	case database.DriverMySQL:
		return eventstoreRepository.NewMySQLEventRepository(db), nil
	case database.DriverPostgres:
		return eventstoreRepository.NewPostgreSQLEventRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initSnapshotRepository creates the snapshot repository instance.
func (c *Container) initSnapshotRepository() (eventstoreUsecase.SnapshotRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for snapshot repository: %w", err)
	}

	// Select the appropriate repository based on the database driver
	switch c.config.DBDriver {
	case database.DriverMySQL:
		return eventstoreRepository.NewMySQLSnapshotRepository(db), nil
	case database.DriverPostgres:
		return eventstoreRepository.NewPostgreSQLSnapshotRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initEventStore creates the event store with all its dependencies.
func (c *Container) initEventStore() (eventstoreUsecase.EventStore, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for event store: %w", err)
	}
	eventRepo, err := c.EventRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get event repository for event store: %w", err)
	}
	snapshotRepo, err := c.SnapshotRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot repository for event store: %w", err)
	}

	store := eventstoreUsecase.NewEventStoreUseCase(txManager, eventRepo, snapshotRepo, c.Logger())

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for event store: %w", err)
		}
		store = eventstoreUsecase.NewEventStoreWithMetrics(store, businessMetrics)
	}
	return store, nil
}

// initOrchestrator creates the saga orchestrator.
func (c *Container) initOrchestrator() (sagaUsecase.Orchestrator, error) {
	orchestrator := sagaUsecase.NewOrchestrator(c.config.SagaLedgerCapacity, c.Logger())

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for orchestrator: %w", err)
		}
		orchestrator = sagaUsecase.NewOrchestratorWithMetrics(orchestrator, businessMetrics)
	}
	return orchestrator, nil
}

// initEventBus creates the event bus and attaches the audit reactors.
func (c *Container) initEventBus() (*eventbus.Bus, error) {
	logger := c.Logger()
	bus := eventbus.New(c.config.EventBusBufferSize, logger)

	store, err := c.EventStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get event store for event bus: %w", err)
	}

	audit.NewLogger(logger).Attach(bus)
	audit.NewRecorder(store, logger).Attach(bus)
	return bus, nil
}

// initAuditProjector creates the audit projector over the event store.
func (c *Container) initAuditProjector() (*audit.Projector, error) {
	store, err := c.EventStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get event store for audit projector: %w", err)
	}

	logger := c.Logger()
	projectorConfig := audit.ProjectorConfig{
		EventType:     c.config.AuditProjectorEventType,
		Interval:      c.config.AuditProjectorInterval,
		RatePerSecond: c.config.AuditProjectorRatePerSec,
		Burst:         c.config.AuditProjectorBurst,
	}
	handler := func(_ context.Context, event eventstoreDomain.StoredEvent) error {
		logger.Debug("projected event",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.Uint64("version", uint64(event.Version)),
		)
		return nil
	}

	return audit.NewProjector(projectorConfig, store, handler, logger), nil
}
