package bootstrap

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/target/hotelease-portal/config"
	"github.com/target/hotelease-portal/internal/adapters/authroles"
	"github.com/target/hotelease-portal/internal/adapters/reaper"
	redisadapter "github.com/target/hotelease-portal/internal/adapters/redis"
	"github.com/target/hotelease-portal/internal/data"
	"github.com/target/hotelease-portal/internal/eventbus"
	"github.com/target/hotelease-portal/internal/observability/metrics"
	"github.com/target/hotelease-portal/internal/ports"
	"github.com/target/hotelease-portal/internal/service"
)

const domainBusName = "domain"

// ServiceContainer holds the long-lived broker services.
type ServiceContainer struct {
	Registry  *service.PortalRegistry
	DomainBus *eventbus.Bus
	Reaper    *reaper.Runner
	// Relay is nil unless EVENTBUS_RELAY_ENABLED is set.
	Relay   *redisadapter.EventRelay
	Metrics *metrics.Metrics
	// MetricsHandler serves /metrics; nil when metrics are disabled.
	MetricsHandler http.Handler

	detachRelay func()
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB // Optional: required only by the postgres directory
	RedisClient redis.UniversalClient
	Provider    ports.AuthProvider
	Logger      *slog.Logger
}

// CreateServices wires the portal registry, the domain bus and their supporting runners.
func CreateServices(deps ServiceDeps) (*ServiceContainer, error) {
	if deps.Config == nil {
		return nil, errors.New("config is required")
	}
	if deps.RedisClient == nil {
		return nil, errors.New("redis client is required")
	}
	if deps.Provider == nil {
		return nil, errors.New("auth provider is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	m, metricsHandler := buildMetrics(cfg.Observability.Metrics)

	directory, err := BuildDirectory(cfg.Directory, deps.DB)
	if err != nil {
		return nil, err
	}

	domainBus := eventbus.New(eventbus.Options{
		Name:        domainBusName,
		Capacity:    cfg.EventBus.LogCapacity,
		ReplayLimit: cfg.EventBus.ReplayLimit,
		Logger:      logger,
		Observer:    m,
	})

	prefix := cfg.Redis.KeyPrefix
	registry, err := service.NewPortalRegistry(service.PortalRegistryOptions{
		Provider:    deps.Provider,
		Sessions:    redisadapter.NewSessionStoreWithPrefix(deps.RedisClient, prefix+"session:"),
		KV:          data.NewRedisKVRepo(deps.RedisClient, prefix),
		Directory:   directory,
		DomainBus:   domainBus,
		Arbitration: cfg.Arbitration,
		EventBus:    cfg.EventBus,
		Strict:      cfg.IsDev,
		Logger:      logger,
		Metrics:     m,
	})
	if err != nil {
		domainBus.Close()
		return nil, fmt.Errorf("portal registry: %w", err)
	}

	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		Sweeper:  registry,
		Interval: cfg.Arbitration.ReapInterval,
		Logger:   logger,
	})
	if err != nil {
		registry.Close()
		domainBus.Close()
		return nil, fmt.Errorf("portal reaper: %w", err)
	}

	c := &ServiceContainer{
		Registry:       registry,
		DomainBus:      domainBus,
		Reaper:         runner,
		Metrics:        m,
		MetricsHandler: metricsHandler,
	}

	if cfg.EventBus.RelayEnabled {
		relay, relayErr := redisadapter.NewEventRelay(redisadapter.EventRelayOptions{
			Client:     deps.RedisClient,
			Channel:    cfg.EventBus.RelayChannel,
			InstanceID: uuid.NewString(),
			Sink:       domainBus,
			Logger:     logger,
			Observer:   m,
		})
		if relayErr != nil {
			c.Close()
			return nil, fmt.Errorf("event relay: %w", relayErr)
		}
		c.Relay = relay
		c.detachRelay = relay.Attach(domainBus)
		logger.Info("domain event relay enabled", "channel", cfg.EventBus.RelayChannel)
	}

	return c, nil
}

// Close stops every portal and the domain bus. It is safe to call more than once.
func (c *ServiceContainer) Close() {
	if c == nil {
		return
	}
	if c.detachRelay != nil {
		c.detachRelay()
		c.detachRelay = nil
	}
	c.Registry.Close()
	c.DomainBus.Close()
}

// BuildDirectory selects the role directory backend.
//
//nolint:ireturn // the backend is chosen at runtime.
func BuildDirectory(cfg config.DirectoryConfig, db *sql.DB) (ports.Directory, error) {
	switch cfg.Backend {
	case config.DirectoryBackendStatic:
		dir, err := authroles.NewStaticDirectory(cfg.StaticEntries)
		if err != nil {
			return nil, fmt.Errorf("static directory: %w", err)
		}
		return dir, nil
	case config.DirectoryBackendPostgres, "":
		if db == nil {
			return nil, errors.New("postgres directory requires a database connection")
		}
		return data.NewDirectoryRepo(db), nil
	default:
		return nil, fmt.Errorf("unsupported directory backend %q", cfg.Backend)
	}
}

func buildMetrics(cfg config.ObservabilityMetricsConfig) (*metrics.Metrics, http.Handler) {
	if !cfg.Enabled {
		// Unregistered collectors keep the call sites uniform.
		return metrics.New(nil), nil
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return metrics.New(reg), promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
