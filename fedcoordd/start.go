package fedcoordd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/absmach/supermq/pkg/jaeger"
	"github.com/absmach/supermq/pkg/prometheus"
	"github.com/absmach/supermq/pkg/server"
	httpserver "github.com/absmach/supermq/pkg/server/http"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	fedcoord "github.com/openfed/fedcoord"
	"github.com/openfed/fedcoord/coordinator"
	"github.com/openfed/fedcoord/coordinator/api"
	"github.com/openfed/fedcoord/coordinator/middleware"
	"github.com/openfed/fedcoord/pkg/aggregate"
	"github.com/openfed/fedcoord/pkg/artifact"
	pkgerrors "github.com/openfed/fedcoord/pkg/errors"
	"github.com/openfed/fedcoord/pkg/evaluate"
	"github.com/openfed/fedcoord/pkg/ledger"
	"github.com/openfed/fedcoord/pkg/mqtt"
	"github.com/openfed/fedcoord/pkg/reward"
	"github.com/openfed/fedcoord/pkg/storage"
	"github.com/openfed/fedcoord/version"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

const (
	svcName       = "coordinator"
	defHTTPPort   = "7171"
	envPrefixHTTP = "COORDINATOR_HTTP_"
	pathEnv       = ".env"
)

type Config struct {
	LogLevel      string        `env:"COORDINATOR_LOG_LEVEL"      envDefault:"info"`
	InstanceID    string        `env:"COORDINATOR_INSTANCE_ID"`
	MQTTAddress   string        `env:"COORDINATOR_MQTT_ADDRESS"   envDefault:"tcp://localhost:1883"`
	MQTTQoS       uint8         `env:"COORDINATOR_MQTT_QOS"       envDefault:"2"`
	MQTTTimeout   time.Duration `env:"COORDINATOR_MQTT_TIMEOUT"   envDefault:"30s"`
	MQTTUsername  string        `env:"COORDINATOR_MQTT_USERNAME"`
	MQTTPassword  string        `env:"COORDINATOR_MQTT_PASSWORD"`
	BaseTopic     string        `env:"COORDINATOR_BASE_TOPIC"     envDefault:"coordinator"`
	ArtifactDir   string        `env:"COORDINATOR_ARTIFACT_DIR"   envDefault:"./artifacts"`
	BaseModelRef  string        `env:"COORDINATOR_BASE_MODEL_REF" envDefault:"models/model_v1.cbor"`
	RegistryPath  string        `env:"COORDINATOR_REGISTRY_PATH"  envDefault:"config.toml"`
	LedgerURL     string        `env:"COORDINATOR_LEDGER_URL"     envDefault:"http://localhost:8545"`
	RoundInterval time.Duration `env:"COORDINATOR_ROUND_INTERVAL" envDefault:"0s"`
	OTELURL       url.URL       `env:"COORDINATOR_OTEL_URL"`
	TraceRatio    float64       `env:"COORDINATOR_TRACE_RATIO"    envDefault:"0"`
}

// StartCoordinator assembles the full service from the environment and runs
// it until the context is canceled or a component fails.
func StartCoordinator(ctx context.Context, cancel context.CancelFunc) error {
	g, ctx := errgroup.WithContext(ctx)

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	var tp trace.TracerProvider
	switch {
	case cfg.OTELURL == (url.URL{}):
		tp = noop.NewTracerProvider()
	default:
		sdktp, err := jaeger.NewProvider(ctx, svcName, cfg.OTELURL, "", cfg.TraceRatio)
		if err != nil {
			return fmt.Errorf("failed to initialize opentelemetry: %w", err)
		}
		defer func() {
			if err := sdktp.Shutdown(ctx); err != nil {
				logger.Error("error shutting down tracer provider", slog.Any("error", err))
			}
		}()
		tp = sdktp
	}
	tracer := tp.Tracer(svcName)

	storageCfg := storage.Config{}
	if err := env.Parse(&storageCfg); err != nil {
		return fmt.Errorf("failed to load storage configuration: %w", err)
	}
	repos, closer, err := storage.NewRepositories(storageCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	artifacts, err := artifact.NewStore(cfg.ArtifactDir)
	if err != nil {
		return fmt.Errorf("failed to initialize artifact store: %w", err)
	}

	versions, err := version.NewManager(ctx, repos.Versions, cfg.BaseModelRef)
	if err != nil {
		return fmt.Errorf("failed to initialize version manager: %w", err)
	}

	aggCfg := aggregate.Config{}
	if err := env.Parse(&aggCfg); err != nil {
		return fmt.Errorf("failed to load aggregation configuration: %w", err)
	}
	strategy, err := aggregate.New(aggCfg, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize aggregation strategy: %w", err)
	}

	rewardParams := reward.Params{}
	if err := env.Parse(&rewardParams); err != nil {
		return fmt.Errorf("failed to load reward configuration: %w", err)
	}

	evalCfg := evaluate.Config{}
	if err := env.Parse(&evalCfg); err != nil {
		return fmt.Errorf("failed to load evaluator configuration: %w", err)
	}
	evaluator := evaluate.NewHTTPEvaluator(evalCfg)

	registry := &fedcoord.ClientRegistry{}
	if _, err := os.Stat(cfg.RegistryPath); err == nil {
		registry, err = fedcoord.LoadClientRegistry(cfg.RegistryPath)
		if err != nil {
			return fmt.Errorf("failed to load client registry: %w", err)
		}
	}

	reporterCfg := ledger.ReporterConfig{}
	if err := env.Parse(&reporterCfg); err != nil {
		return fmt.Errorf("failed to load ledger configuration: %w", err)
	}
	chain := ledger.NewHTTPLedger(cfg.LedgerURL, nil)
	reporter := ledger.NewReporter(chain, registry, reporterCfg, logger)

	mqttPubSub, err := mqtt.NewPubSub(cfg.MQTTAddress, cfg.MQTTQoS, svcName, cfg.MQTTUsername, cfg.MQTTPassword, cfg.MQTTTimeout, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize mqtt pubsub: %w", err)
	}

	svc := coordinator.NewService(
		repos,
		versions,
		artifacts,
		strategy,
		evaluator,
		rewardParams,
		reporter,
		chain,
		registry,
		mqttPubSub,
		cfg.BaseTopic,
		logger,
	)
	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(tracer, svc)
	counter, latency := prometheus.MakeMetrics(svcName, "api")
	svc = middleware.Metrics(counter, latency, svc)

	if err := svc.Subscribe(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to client topics: %w", err)
	}

	httpServerConfig := server.Config{Port: defHTTPPort}
	if err := env.ParseWithOptions(&httpServerConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		return fmt.Errorf("failed to load %s HTTP server configuration: %w", svcName, err)
	}

	hs := httpserver.NewServer(ctx, cancel, svcName, httpServerConfig, api.MakeHandler(svc, logger, cfg.InstanceID), logger)

	g.Go(func() error {
		return hs.Start()
	})

	if cfg.RoundInterval > 0 {
		g.Go(func() error {
			return runRounds(ctx, svc, cfg.RoundInterval, logger)
		})
	}

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName, hs)
	})

	err = g.Wait()

	if serr := svc.Shutdown(context.Background()); serr != nil {
		logger.Error("failed to shut down cleanly", slog.String("error", serr.Error()))
	}

	return err
}

// runRounds triggers aggregation on a fixed interval. Rounds with no new
// uploads are skipped quietly.
func runRounds(ctx context.Context, svc coordinator.Service, interval time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			res, err := svc.RunRound(ctx, true)
			switch {
			case errors.Is(err, pkgerrors.ErrNoNewUploads):
				logger.Info("Skipping round, no new uploads")
			case errors.Is(err, pkgerrors.ErrPublishConflict):
				logger.Info("Skipping round, lost publish race")
			case err != nil:
				logger.Warn("Scheduled round failed", slog.Any("error", err))
			default:
				logger.Info("Scheduled round completed",
					slog.Uint64("version_id", res.VersionID),
					slog.Int("contributors", len(res.Contributors)))
			}
		}
	}
}
