package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/heartmarshall/grc-backend/internal/domain"
	"github.com/heartmarshall/grc-backend/internal/service/system"
)

func newSystemCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "system",
		Short: "Manage system groups and their checklists, assets and scans",
	}
	cmd.AddCommand(
		newSystemCreateCmd(opts),
		newSystemListCmd(opts),
		newSystemShowCmd(opts),
		newSystemLifecycleCmd(opts, "activate", "Activate a draft system group"),
		newSystemLifecycleCmd(opts, "archive", "Archive an active system group"),
		newSystemAssignCmd(opts),
		newSystemUnassignCmd(),
		newSystemAssetCmd(opts),
		newSystemAttachScanCmd(opts),
		newSystemScansCmd(opts),
		newSystemRankCmd(opts),
	)
	return cmd
}

func printSystems(cmd *cobra.Command, opts *rootOptions, groups []*domain.SystemGroup) error {
	views := make([]systemView, 0, len(groups))
	for _, g := range groups {
		views = append(views, newSystemView(g))
	}
	if opts.json {
		return writeJSON(cmd.OutOrStdout(), views)
	}
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{
			v.ID.String(), v.Name, v.Acronym, v.State,
			strconv.Itoa(v.Stats.TotalChecklists), strconv.Itoa(v.Stats.TotalOpen),
			strconv.Itoa(v.Stats.Cat1Open), strconv.Itoa(v.Stats.Cat2Open), strconv.Itoa(v.Stats.Cat3Open),
			strconv.Itoa(v.RiskScore),
		})
	}
	return table(cmd.OutOrStdout(), "ID\tNAME\tACRONYM\tSTATE\tCHECKLISTS\tOPEN\tCAT I\tCAT II\tCAT III\tRISK", rows)
}

func newSystemCreateCmd(opts *rootOptions) *cobra.Command {
	var acronym, description string
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a system group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer rt.Close()

			g, err := rt.backend.Systems.Create(cmd.Context(), system.CreateInput{Name: args[0], Acronym: acronym, Description: description})
			if err != nil {
				return err
			}
			return printSystems(cmd, opts, []*domain.SystemGroup{g})
		},
	}
	cmd.Flags().StringVar(&acronym, "acronym", "", "short system acronym")
	cmd.Flags().StringVar(&description, "description", "", "free text description")
	return cmd
}

func newSystemListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List system groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer rt.Close()

			groups, err := rt.backend.Systems.List(cmd.Context())
			if err != nil {
				return err
			}
			return printSystems(cmd, opts, groups)
		},
	}
}

func newSystemShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show SYSTEM_ID",
		Short: "Show one system group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("system", args[0])
			if err != nil {
				return err
			}
			rt, err := bootstrap(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer rt.Close()

			g, err := rt.backend.Systems.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), newSystemView(g))
			}
			return printSystems(cmd, opts, []*domain.SystemGroup{g})
		},
	}
}

func newSystemLifecycleCmd(opts *rootOptions, verb, short string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " SYSTEM_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("system", args[0])
			if err != nil {
				return err
			}
			rt, err := bootstrap(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer rt.Close()

			var g *domain.SystemGroup
			if verb == "activate" {
				g, err = rt.backend.Systems.Activate(cmd.Context(), id)
			} else {
				g, err = rt.backend.Systems.Archive(cmd.Context(), id)
			}
			if err != nil {
				return err
			}
			return printSystems(cmd, opts, []*domain.SystemGroup{g})
		},
	}
}

func newSystemAssignCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "assign SYSTEM_ID CHECKLIST_ID",
		Short: "Move a checklist into a system group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			systemID, err := parseID("system", args[0])
			if err != nil {
				return err
			}
			checklistID, err := parseID("checklist", args[1])
			if err != nil {
				return err
			}
			rt, err := bootstrap(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer rt.Close()

			g, err := rt.backend.Systems.AssignChecklist(cmd.Context(), systemID, checklistID)
			if err != nil {
				return err
			}
			return printSystems(cmd, opts, []*domain.SystemGroup{g})
		},
	}
}

func newSystemUnassignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unassign CHECKLIST_ID",
		Short: "Remove a checklist from its system group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			checklistID, err := parseID("checklist", args[0])
			if err != nil {
				return err
			}
			rt, err := bootstrap(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.backend.Systems.UnassignChecklist(cmd.Context(), checklistID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "checklist %s unassigned\n", checklistID)
			return nil
		},
	}
}

func newSystemAssetCmd(opts *rootOptions) *cobra.Command {
	var remove bool
	cmd := &cobra.Command{
		Use:   "asset SYSTEM_ID ASSET_ID",
		Short: "Add an asset to a system group, or remove it with --remove",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			systemID, err := parseID("system", args[0])
			if err != nil {
				return err
			}
			assetID, err := parseID("asset", args[1])
			if err != nil {
				return err
			}
			rt, err := bootstrap(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer rt.Close()

			var g *domain.SystemGroup
			if remove {
				g, err = rt.backend.Systems.RemoveAsset(cmd.Context(), systemID, assetID)
			} else {
				g, err = rt.backend.Systems.AddAsset(cmd.Context(), systemID, assetID)
			}
			if err != nil {
				return err
			}
			return printSystems(cmd, opts, []*domain.SystemGroup{g})
		},
	}
	cmd.Flags().BoolVar(&remove, "remove", false, "remove the asset instead of adding it")
	return cmd
}

func newSystemAttachScanCmd(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "attach-scan SYSTEM_ID (SCAN_ID | FILE)",
		Short: "Attach a stored scan record, or import a Nessus/SCAP file into the group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			systemID, err := parseID("system", args[0])
			if err != nil {
				return err
			}
			rt, err := bootstrap(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer rt.Close()

			if scanID, perr := parseID("scan", args[1]); perr == nil {
				g, err := rt.backend.Systems.AttachScan(cmd.Context(), systemID, scanID)
				if err != nil {
					return err
				}
				return printSystems(cmd, opts, []*domain.SystemGroup{g})
			}

			raw, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[1], err)
			}
			rec, err := rt.backend.Systems.ImportScan(cmd.Context(), system.ScanInput{
				Format:   domain.SourceFormat(format),
				Raw:      raw,
				SystemID: &systemID,
			})
			if err != nil {
				return err
			}
			return printScans(cmd, opts, []*domain.ScanRecord{rec})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "force the file format (nessus, scap); detected when empty")
	return cmd
}

func printScans(cmd *cobra.Command, opts *rootOptions, records []*domain.ScanRecord) error {
	views := make([]scanView, 0, len(records))
	for _, r := range records {
		views = append(views, newScanView(r))
	}
	if opts.json {
		return writeJSON(cmd.OutOrStdout(), views)
	}
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{
			v.ID.String(), v.Format, v.Name, v.ImportedAt.Format("2006-01-02 15:04"),
			strconv.Itoa(v.Hosts), strconv.Itoa(v.Vulnerabilities), strconv.Itoa(v.UniqueCVEs),
		})
	}
	return table(cmd.OutOrStdout(), "ID\tFORMAT\tNAME\tIMPORTED\tHOSTS\tVULNS\tCVES", rows)
}

func newSystemScansCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scans SYSTEM_ID",
		Short: "List the scan records of a system group, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("system", args[0])
			if err != nil {
				return err
			}
			rt, err := bootstrap(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer rt.Close()

			records, err := rt.backend.Systems.ListScans(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printScans(cmd, opts, records)
		},
	}
}

func newSystemRankCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rank",
		Short: "Rank system groups by risk score",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer rt.Close()

			entries, err := rt.backend.Systems.RankByRisk(cmd.Context())
			if err != nil {
				return err
			}
			groups := make([]*domain.SystemGroup, 0, len(entries))
			for _, e := range entries {
				groups = append(groups, e.System)
			}
			return printSystems(cmd, opts, groups)
		},
	}
}
