package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fxnlabs/vkmatmul/internal/app"
	"github.com/fxnlabs/vkmatmul/internal/bench"
	"github.com/fxnlabs/vkmatmul/internal/gpu"
)

func scenarioCommand() *cli.Command {
	return &cli.Command{
		Name:  "scenario",
		Usage: "Multiply a 4x4 matrix of ones by a 4x4 matrix of twos",
		Action: func(c *cli.Context) error {
			cfg := *configFrom(c)
			log := loggerFrom(c)
			cfg.Engine.MatrixSize = bench.ScenarioSize
			cfg.Engine.TileSize = bench.ScenarioSize

			var manager *gpu.Manager
			fxApp := app.New(&cfg, log.Named("app"), fx.Populate(&manager))
			if err := fxApp.Start(c.Context); err != nil {
				return err
			}

			product, runErr := bench.Scenario(manager)
			if product != nil {
				printMatrix(product, bench.ScenarioSize)
			}
			if runErr == nil {
				log.Info("Scenario passed",
					zap.String("backend", manager.GetBackendType()),
					zap.Duration("gpu_time", manager.LastGPUTime()))
			}

			stopErr := fxApp.Stop(c.Context)
			return errors.Join(runErr, stopErr)
		},
	}
}

func printMatrix(m []float32, n int) {
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			fmt.Printf("%8.3f", m[i*n+j])
		}
		fmt.Println()
	}
}
