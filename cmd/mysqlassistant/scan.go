package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mysqlassistant/internal/prober"
)

var scanNetwork string

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Look for MySQL servers on the local network",
	Args:  cobra.NoArgs,
	RunE:  runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringVar(&scanNetwork, "network", "", "IPv4 range to sweep, /24 or smaller (default is the local /24)")
}

func runScan(cmd *cobra.Command, _ []string) error {
	opts := cfg.ProbeOptions()
	if scanNetwork != "" {
		opts.Network = scanNetwork
	}
	if opts.Network == "" {
		network, err := prober.LocalNetwork()
		if err != nil {
			return err
		}
		opts.Network = network
	}
	s, err := newSession()
	if err != nil {
		return err
	}
	p := prober.New(logger)
	p.Progress = func(checked, total int) {
		fmt.Fprintf(cmd.ErrOrStderr(), "\rchecked %d/%d", checked, total)
		if checked == total {
			fmt.Fprintln(cmd.ErrOrStderr())
		}
	}
	s.WithProber(p)

	fmt.Fprintf(cmd.OutOrStdout(), "sweeping %s on ports %v\n", opts.Network, opts.Ports)
	found, err := s.Scan(cmd.Context(), opts, false)
	for _, c := range found {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", c.HostPort(), c.Latency)
	}
	if err != nil {
		return err
	}
	if len(found) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no servers found")
	}
	return nil
}
