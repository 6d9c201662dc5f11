package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/born-ml/born-train/internal/device"
)

func newDevicesCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Show the host CPU and the devices training would use",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			info := device.Info()
			fmt.Fprintf(out, "CPU:      %s\n", info.Brand)
			fmt.Fprintf(out, "Cores:    %d physical, %d logical\n", info.PhysicalCores, info.LogicalCores)
			fmt.Fprintf(out, "Features: %s\n", strings.Join(info.Features, " "))
			for _, d := range device.Discover(count) {
				fmt.Fprintf(out, "  %s\n", d)
			}
		},
	}
	cmd.Flags().IntVar(&count, "devices", 0, "number of devices to list (0 = one per logical CPU)")
	return cmd
}
