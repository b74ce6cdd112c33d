package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/Mindburn-Labs/plangate/pkg/admission"
	"github.com/Mindburn-Labs/plangate/pkg/artifacts"
	"github.com/Mindburn-Labs/plangate/pkg/audit"
	"github.com/Mindburn-Labs/plangate/pkg/config"
	"github.com/Mindburn-Labs/plangate/pkg/escalation"
	"github.com/Mindburn-Labs/plangate/pkg/observability"
	"github.com/Mindburn-Labs/plangate/pkg/store"
	"github.com/Mindburn-Labs/plangate/pkg/unknowns"
)

// gateEnv is what the stateless commands need: configuration, the policy
// and the components built from it.
type gateEnv struct {
	Config *config.Config
	Policy *config.Policy
	Gate   *config.Gate
	Logger *slog.Logger
}

func loadGate(stderr io.Writer) (*gateEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	policy, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, err
	}
	gate, err := policy.Build()
	if err != nil {
		return nil, fmt.Errorf("build gate: %w", err)
	}
	return &gateEnv{Config: cfg, Policy: policy, Gate: gate, Logger: logger}, nil
}

// Services are the stateful components shared by the review and audit
// commands.
type Services struct {
	*gateEnv

	DB          *store.DB
	Chain       *audit.Chain
	Escalations *escalation.Manager
	Queue       *store.RedisQueue
	Unknowns    *unknowns.Tracker
	Snapshots   *artifacts.Snapshots
	Telemetry   *observability.Provider
	Admission   *admission.Controller

	closers []func(context.Context) error
}

// liteDatabaseURL is the SQLite database used when DATABASE_URL is unset,
// so state survives between CLI invocations.
func liteDatabaseURL(dataDir string) (string, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create data dir: %w", err)
	}
	return "sqlite://" + filepath.Join(dataDir, "plangate.db"), nil
}

func openServices(ctx context.Context, stderr io.Writer) (*Services, error) {
	env, err := loadGate(stderr)
	if err != nil {
		return nil, err
	}
	cfg := env.Config
	svc := &Services{gateEnv: env}

	url := cfg.DatabaseURL
	if url == "" {
		if url, err = liteDatabaseURL(cfg.Snapshots.DataDir); err != nil {
			return nil, err
		}
		env.Logger.Debug("lite mode: using sqlite", "url", url)
	}
	svc.DB, err = store.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	svc.closers = append(svc.closers, func(context.Context) error { return svc.DB.Close() })

	svc.Chain = audit.NewChain(store.NewAuditStore(svc.DB)).WithLogger(env.Logger)

	var escStore escalation.Store = store.NewEscalationStore(svc.DB)
	if cfg.RedisAddr != "" {
		client := store.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		svc.closers = append(svc.closers, func(context.Context) error { return client.Close() })
		svc.Queue = store.NewRedisQueue(escStore, client, "")
		escStore = svc.Queue
	}
	svc.Escalations = escalation.NewManager(escStore).WithAudit(svc.Chain).WithLogger(env.Logger)
	svc.Unknowns = unknowns.NewTracker(store.NewUnknownStore(svc.DB)).WithAudit(svc.Chain).WithLogger(env.Logger)

	blobs, err := artifacts.New(ctx, cfg.Snapshots)
	if err != nil {
		_ = svc.Close(ctx)
		return nil, err
	}
	svc.Snapshots = artifacts.NewSnapshots(blobs)

	otelCfg := observability.DefaultConfig()
	otelCfg.Enabled = cfg.TelemetryEnabled
	otelCfg.OTLPEndpoint = cfg.OTLPEndpoint
	otelCfg.ServiceVersion = version
	svc.Telemetry, err = observability.New(ctx, otelCfg)
	if err != nil {
		_ = svc.Close(ctx)
		return nil, err
	}
	svc.closers = append(svc.closers, svc.Telemetry.Shutdown)
	metrics, err := observability.NewGateMetrics(svc.Telemetry.Meter())
	if err != nil {
		_ = svc.Close(ctx)
		return nil, err
	}

	svc.Admission = admission.NewController(env.Gate.Evaluator).
		WithEscalations(svc.Escalations).
		WithUnknowns(svc.Unknowns).
		WithAudit(svc.Chain).
		WithSnapshots(svc.Snapshots).
		WithTracer(svc.Telemetry.Tracer()).
		WithMetrics(metrics).
		WithEscalateOptional(env.Policy.EscalateOptional).
		WithLogger(env.Logger)
	return svc, nil
}

// Close releases resources in reverse order of acquisition.
func (s *Services) Close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil && !errors.Is(err, redis.ErrClosed) {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
