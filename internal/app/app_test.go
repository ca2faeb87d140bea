package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap/zaptest"

	"github.com/fxnlabs/vkmatmul/internal/bench"
	"github.com/fxnlabs/vkmatmul/internal/compute"
	"github.com/fxnlabs/vkmatmul/internal/config"
	"github.com/fxnlabs/vkmatmul/internal/gpu"
	"github.com/fxnlabs/vkmatmul/internal/metrics"
	"github.com/fxnlabs/vkmatmul/shaders"
)

func cpuConfig() *config.Config {
	cfg := config.Default()
	cfg.Logger.Verbosity = "debug"
	cfg.Engine.Backend = gpu.PreferCPU
	cfg.Engine.MatrixSize = 32
	cfg.Bench.Iterations = 2
	return cfg
}

func TestEngineOptions(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(c *config.EngineConfig)
		check  func(t *testing.T, o compute.Options)
		errMsg string
	}{
		{
			name:   "explicit shader path",
			modify: func(c *config.EngineConfig) { c.ShaderPath = "/tmp/x.spv"; c.Sync = "fence" },
			check: func(t *testing.T, o compute.Options) {
				assert.Equal(t, "/tmp/x.spv", o.ShaderPath)
				assert.Empty(t, o.ShaderCode)
				assert.Equal(t, compute.SyncFence, o.Sync)
			},
		},
		{
			name:   "default shader",
			modify: func(c *config.EngineConfig) {},
			check: func(t *testing.T, o compute.Options) {
				if len(shaders.Embedded()) > 0 {
					assert.NotEmpty(t, o.ShaderCode)
				} else {
					assert.Equal(t, shaders.DefaultPath(), o.ShaderPath)
				}
				assert.Equal(t, compute.SyncIdle, o.Sync)
				assert.Equal(t, 1024, o.MatrixSize)
				assert.Equal(t, 16, o.TileSize)
			},
		},
		{
			name:   "bad sync mode",
			modify: func(c *config.EngineConfig) { c.Sync = "spin" },
			errMsg: "spin",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ec := config.Default().Engine
			tc.modify(&ec)
			opts, err := EngineOptions(ec)
			if tc.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errMsg)
				return
			}
			require.NoError(t, err)
			tc.check(t, opts)
		})
	}
}

func TestModuleCPU(t *testing.T) {
	var (
		manager *gpu.Manager
		runner  *bench.Runner
	)
	app := fxtest.New(t,
		fx.Supply(cpuConfig(), zaptest.NewLogger(t)),
		Module,
		fx.Populate(&manager, &runner),
	)
	app.RequireStart()

	assert.Equal(t, gpu.BackendCPU, manager.GetBackendType())

	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, bench.ResultPass, report.Result)
	assert.Len(t, report.Iterations, 2)

	app.RequireStop()
	assert.Equal(t, gpu.BackendNone, manager.GetBackendType())
}

func TestModuleInvalidBackend(t *testing.T) {
	cfg := cpuConfig()
	cfg.Engine.Backend = "quantum"

	app := New(cfg, zaptest.NewLogger(t), fx.Invoke(func(*gpu.Manager) {}))
	err := app.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quantum")
}

func TestModuleMetricsServer(t *testing.T) {
	cfg := cpuConfig()
	cfg.Metrics.ListenAddress = "127.0.0.1:0"

	var srv *metrics.Server
	app := fxtest.New(t,
		fx.Supply(cfg, zaptest.NewLogger(t)),
		Module,
		fx.Populate(&srv),
	)
	app.RequireStart()
	assert.NotNil(t, srv)
	app.RequireStop()
}

func TestModuleMetricsDisabled(t *testing.T) {
	var srv *metrics.Server
	app := fxtest.New(t,
		fx.Supply(cpuConfig(), zaptest.NewLogger(t)),
		Module,
		fx.Populate(&srv),
	)
	app.RequireStart()
	assert.Nil(t, srv)
	app.RequireStop()
}
