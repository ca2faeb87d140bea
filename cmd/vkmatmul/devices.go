package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/fxnlabs/vkmatmul/internal/compute"
)

func devicesCommand() *cli.Command {
	return &cli.Command{
		Name:  "devices",
		Usage: "List Vulkan devices and whether each can run the engine",
		Action: func(c *cli.Context) error {
			cfg := configFrom(c)
			log := loggerFrom(c)

			if !compute.LoaderAvailable() {
				return fmt.Errorf("no Vulkan loader found")
			}
			statuses, err := compute.ProbeDevices(compute.DeviceOptions{
				AppName:            "vkmatmul",
				InstanceExtensions: cfg.Engine.InstanceExtensions,
				DeviceExtensions:   cfg.Engine.DeviceExtensions,
				ValidationLayers:   cfg.Engine.ValidationLayers,
			}, log.Named("compute"))
			if err != nil {
				return err
			}
			log.Debug("Probed devices", zap.Int("count", len(statuses)))
			return printDevices(statuses)
		},
	}
}

func printDevices(statuses []compute.DeviceStatus) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tname\ttype\tapi\tmax groups\ttimestamp (ns)\tstatus")
	for i, st := range statuses {
		r := st.Report
		status := "suitable"
		if !st.Suitable {
			status = "rejected: " + st.Reason
		}
		g := r.Limits.MaxComputeWorkGroupCount
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%dx%dx%d\t%g\t%s\n",
			i, r.Name, r.Type, compute.FormatVersion(r.APIVersion),
			g[0], g[1], g[2], r.Limits.TimestampPeriod, status)
	}
	if len(statuses) == 0 {
		fmt.Fprintln(tw, "no devices")
	}
	return tw.Flush()
}
