// Package app wires the benchmark's components together with fx.
package app

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fxnlabs/vkmatmul/internal/bench"
	"github.com/fxnlabs/vkmatmul/internal/compute"
	"github.com/fxnlabs/vkmatmul/internal/config"
	"github.com/fxnlabs/vkmatmul/internal/gpu"
	"github.com/fxnlabs/vkmatmul/internal/metrics"
	"github.com/fxnlabs/vkmatmul/shaders"
)

// Module provides the metrics server, the backend manager and the bench
// runner. A *config.Config and a *zap.Logger must be supplied.
var Module = fx.Module("vkmatmul",
	fx.Provide(
		NewMetricsServer,
		NewManager,
		NewRunner,
	),
	fx.Invoke(func(*metrics.Server) {}),
)

// New builds the application around a loaded config and logger. fx's own
// events are logged at debug level.
func New(cfg *config.Config, log *zap.Logger, opts ...fx.Option) *fx.App {
	return fx.New(
		fx.Supply(cfg, log),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			l := &fxevent.ZapLogger{Logger: log.Named("fx")}
			l.UseLogLevel(zapcore.DebugLevel)
			return l
		}),
		Module,
		fx.Options(opts...),
	)
}

// NewMetricsServer returns the metrics server, started and stopped with the
// application. It is nil when no listen address is configured.
func NewMetricsServer(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) *metrics.Server {
	if cfg.Metrics.ListenAddress == "" {
		return nil
	}
	srv := metrics.NewServer(cfg.Metrics.ListenAddress, log.Named("metrics"))
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { return srv.Start() },
		OnStop:  srv.Stop,
	})
	return srv
}

// EngineOptions converts the engine section into compute options. When no
// shader path is configured the embedded SPIR-V is used if present,
// otherwise the default artifact location.
func EngineOptions(cfg config.EngineConfig) (compute.Options, error) {
	sync, err := compute.ParseSyncMode(cfg.Sync)
	if err != nil {
		return compute.Options{}, err
	}
	opts := compute.Options{
		MatrixSize:         cfg.MatrixSize,
		TileSize:           cfg.TileSize,
		ShaderPath:         cfg.ShaderPath,
		InstanceExtensions: cfg.InstanceExtensions,
		DeviceExtensions:   cfg.DeviceExtensions,
		ValidationLayers:   cfg.ValidationLayers,
		DebugNames:         cfg.DebugNames,
		Sync:               sync,
	}
	if opts.ShaderPath == "" {
		if embedded := shaders.Embedded(); len(embedded) > 0 {
			code, err := compute.ParseSPIRV(embedded)
			if err != nil {
				return compute.Options{}, fmt.Errorf("embedded shader: %w", err)
			}
			opts.ShaderCode = code
		} else {
			opts.ShaderPath = shaders.DefaultPath()
		}
	}
	return opts, nil
}

// NewManager selects the backend; it is cleaned up when the application
// stops.
func NewManager(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*gpu.Manager, error) {
	vkOpts, err := EngineOptions(cfg.Engine)
	if err != nil {
		return nil, err
	}
	manager, err := gpu.NewManager(gpu.ManagerOptions{
		Prefer: cfg.Engine.Backend,
		Vulkan: vkOpts,
	}, log.Named("gpu"))
	if err != nil {
		return nil, err
	}

	info := manager.GetDeviceInfo()
	log.Info("Backend selected",
		zap.String("backend", manager.GetBackendType()),
		zap.String("device", info.Name))

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			log.Debug("Releasing backend")
			return manager.Cleanup()
		},
	})
	return manager, nil
}

// NewRunner builds the bench runner on the selected backend.
func NewRunner(cfg *config.Config, manager *gpu.Manager, log *zap.Logger) (*bench.Runner, error) {
	return bench.NewRunner(manager, bench.OptionsFromConfig(cfg), log.Named("bench"))
}
