package main

import (
	"fmt"
	"os"
	"runtime"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cuemby/keyforge/pkg/compute"
	"github.com/cuemby/keyforge/pkg/compute/cpu"
	"github.com/cuemby/keyforge/pkg/compute/opencl"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List compute devices",
	Long: `List the OpenCL platforms and devices visible to this host, with the
platform/device numbers accepted by 'run --platform --device'. The CPU
backend is always listed with its registered kernels.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "BACKEND\tPLATFORM\tDEVICE\tNAME\tVENDOR\tMEMORY")

		devices, err := opencl.Devices()
		if err != nil {
			fmt.Fprintf(os.Stderr, "OpenCL unavailable: %v\n", err)
		}
		for _, d := range devices {
			fmt.Fprintf(tw, "opencl\t%d\t%d\t%s\t%s\t%d MiB\n", d.Platform, d.Index, d.Name, d.Vendor, d.MemoryBytes>>20)
		}
		fmt.Fprintf(tw, "cpu\t-\t-\t%d threads\t%v\t-\n", runtime.GOMAXPROCS(0), cpu.Registered())
		if err := tw.Flush(); err != nil {
			return err
		}

		fmt.Printf("\nDefault sub-batch capacity: %d\n", compute.DimsCapacity(compute.DefaultDims))
		return nil
	},
}
