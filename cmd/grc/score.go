package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/heartmarshall/grc-backend/internal/domain"
)

func newScoreCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "score CHECKLIST_ID",
		Short: "Show the CAT I/II/III score grid of a checklist",
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

			score, err := rt.backend.Checklists.GetScore(cmd.Context(), id)
			if err != nil {
				return err
			}
			v := newScoreView(score)
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), v)
			}

			rows := make([][]string, 0, len(domain.SeverityCategories))
			for _, sev := range domain.SeverityCategories {
				c := score.Category(sev)
				rows = append(rows, []string{
					sev.Label(),
					strconv.Itoa(c.Open), strconv.Itoa(c.NotAFinding), strconv.Itoa(c.NotApplicable), strconv.Itoa(c.NotReviewed),
				})
			}
			if err := table(cmd.OutOrStdout(), "CATEGORY\tOPEN\tNOT A FINDING\tNOT APPLICABLE\tNOT REVIEWED", rows); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\ncompliance %.1f%%  risk %d  findings %d  open %d\n",
				v.CompliancePercentage, v.RiskScore, v.TotalFindings, v.TotalOpen)
			return nil
		},
	}
}

func newOpenFindingsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "open-findings CHECKLIST_ID",
		Short: "List the open findings of a checklist, CAT I first",
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

			findings, err := rt.backend.Checklists.ListOpenFindings(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printFindings(cmd, opts, findings)
		},
	}
}

func printFindings(cmd *cobra.Command, opts *rootOptions, findings []*domain.VulnerabilityFinding) error {
	views := make([]findingView, 0, len(findings))
	for _, f := range findings {
		views = append(views, newFindingView(f))
	}
	if opts.json {
		return writeJSON(cmd.OutOrStdout(), views)
	}
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{v.ID.String(), v.VulnID, v.RuleID, v.EffectiveSeverity, v.Status, v.Title})
	}
	return table(cmd.OutOrStdout(), "ID\tVULN\tRULE\tSEVERITY\tSTATUS\tTITLE", rows)
}
