// discover.go — one-shot discovery pass against the configured probe matrix.
package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/beacon-devtools/beacon/internal/config"
	"github.com/beacon-devtools/beacon/internal/discovery"
	"github.com/beacon-devtools/beacon/internal/logging"
)

func newDiscoverCmd() *cobra.Command {
	var (
		hosts   []string
		ports   []int
		timeout time.Duration
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Probe for debuggable browser endpoints and rank candidates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logging.SetLevel(cfg.Log.Level)

			if len(hosts) == 0 {
				hosts = cfg.Discovery.Hosts
			}
			if len(ports) == 0 {
				ports = cfg.Discovery.Ports
			}
			if timeout <= 0 {
				timeout = cfg.Discovery.Timeout.Std()
			}

			svc := discovery.NewService(logging.Named("discovery"))
			result := svc.Discover(cmd.Context(), hosts, ports, timeout)

			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
			}
			printResult(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&hosts, "host", nil, "Hosts to probe (default from config)")
	cmd.Flags().IntSliceVar(&ports, "port", nil, "Ports to probe (default from config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-probe timeout (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the raw result as JSON")
	return cmd
}

func printResult(cmd *cobra.Command, result discovery.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Found %d debuggable page target(s).\n", result.TotalFound)
	for _, rec := range result.Recommendations {
		fmt.Fprintln(out, rec)
	}
	if len(result.Troubleshooting) > 0 {
		fmt.Fprintln(out, "\nTroubleshooting:")
		for _, step := range result.Troubleshooting {
			fmt.Fprintln(out, step)
		}
	}
}
