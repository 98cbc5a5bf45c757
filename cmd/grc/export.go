package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export CHECKLIST_ID",
		Short: "Write the stored raw file of a checklist byte for byte",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("checklist", args[0])
			if err != nil {
				return err
			}
			rt, err := bootstrap(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer rt.Close()

			raw, format, err := rt.backend.Checklists.ExportRaw(cmd.Context(), id)
			if err != nil {
				return err
			}
			if out == "" {
				_, err = cmd.OutOrStdout().Write(raw)
				return err
			}
			if err := os.WriteFile(out, raw, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d bytes of %s to %s\n", len(raw), format, out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "file to write (stdout when empty)")
	return cmd
}
