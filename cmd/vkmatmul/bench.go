package main

import (
	"errors"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fxnlabs/vkmatmul/internal/app"
	"github.com/fxnlabs/vkmatmul/internal/bench"
)

func benchCommand() *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "Multiply random matrices on the configured backend and verify the result",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "size", Aliases: []string{"n"}, Usage: "Override engine.matrixSize"},
			&cli.IntFlag{Name: "iterations", Aliases: []string{"i"}, Usage: "Override bench.iterations"},
			&cli.StringFlag{Name: "backend", Usage: "Override engine.backend (auto, vulkan or cpu)"},
		},
		Action: func(c *cli.Context) error {
			cfg := *configFrom(c)
			log := loggerFrom(c)
			if c.IsSet("size") {
				cfg.Engine.MatrixSize = c.Int("size")
			}
			if c.IsSet("iterations") {
				cfg.Bench.Iterations = c.Int("iterations")
			}
			if c.IsSet("backend") {
				cfg.Engine.Backend = c.String("backend")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			var runner *bench.Runner
			fxApp := app.New(&cfg, log.Named("app"), fx.Populate(&runner))
			if err := fxApp.Start(c.Context); err != nil {
				return err
			}

			report, runErr := runner.Run(c.Context)
			if report != nil && len(report.Iterations) > 0 {
				if err := report.Print(os.Stdout); err != nil {
					log.Warn("Failed to print report", zap.Error(err))
				}
			}

			stopErr := fxApp.Stop(c.Context)
			return errors.Join(runErr, stopErr)
		},
	}
}
