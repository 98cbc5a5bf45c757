package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newReplayCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Rebuild checklist scores and system statistics from the event store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer rt.Close()

			start := time.Now()
			n, err := rt.backend.Projection.Rebuild(cmd.Context())
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"events":   n,
					"duration": time.Since(start).String(),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "replayed %d events in %s\n", n, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}
