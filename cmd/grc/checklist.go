package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/heartmarshall/grc-backend/internal/domain"
	"github.com/heartmarshall/grc-backend/internal/service/checklist"
)

func newChecklistCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checklist",
		Short: "Inspect checklists and review their findings",
	}
	cmd.AddCommand(
		newChecklistListCmd(opts),
		newChecklistShowCmd(opts),
		newChecklistFindingsCmd(opts),
		newChecklistLifecycleCmd(opts, "activate", "Move a draft checklist with imported data to active"),
		newChecklistLifecycleCmd(opts, "archive", "Archive an active checklist"),
		newFindingStatusCmd(opts),
		newBulkStatusCmd(),
		newOverrideCmd(opts),
		newCCICmd(opts),
		newHistoryCmd(opts),
	)
	return cmd
}

func printChecklists(cmd *cobra.Command, opts *rootOptions, list []*domain.StigChecklist) error {
	views := make([]checklistView, 0, len(list))
	for _, c := range list {
		views = append(views, newChecklistView(c))
	}
	if opts.json {
		return writeJSON(cmd.OutOrStdout(), views)
	}
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{v.ID.String(), v.Name, v.State, v.HostName, v.STIGID, strconv.Itoa(v.Findings), optionalID(v.SystemID)})
	}
	return table(cmd.OutOrStdout(), "ID\tNAME\tSTATE\tHOST\tSTIG\tFINDINGS\tSYSTEM", rows)
}

func newChecklistListCmd(opts *rootOptions) *cobra.Command {
	var (
		systemID   string
		unassigned bool
		state      string
		host       string
		stigID     string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List checklists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sysID, err := parseOptionalID("system", systemID)
			if err != nil {
				return err
			}
			if state != "" && !domain.LifecycleState(state).IsValid() {
				return fmt.Errorf("unknown state %q", state)
			}
			rt, err := bootstrap(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer rt.Close()

			list, err := rt.backend.Checklists.List(cmd.Context(), domain.ChecklistFilter{
				SystemID:   sysID,
				Unassigned: unassigned,
				State:      domain.LifecycleState(state),
				HostName:   host,
				STIGID:     stigID,
				Limit:      limit,
			})
			if err != nil {
				return err
			}
			return printChecklists(cmd, opts, list)
		},
	}
	cmd.Flags().StringVar(&systemID, "system", "", "only checklists of this system group")
	cmd.Flags().BoolVar(&unassigned, "unassigned", false, "only checklists without a system group")
	cmd.Flags().StringVar(&state, "state", "", "draft, active or archived")
	cmd.Flags().StringVar(&host, "host", "", "host name")
	cmd.Flags().StringVar(&stigID, "stig", "", "benchmark id")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows (0 for all)")
	return cmd
}

func newChecklistShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show CHECKLIST_ID",
		Short: "Show one checklist",
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

			c, err := rt.backend.Checklists.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printChecklists(cmd, opts, []*domain.StigChecklist{c})
		},
	}
}

func newChecklistFindingsCmd(opts *rootOptions) *cobra.Command {
	var statuses, severities []string
	cmd := &cobra.Command{
		Use:   "findings CHECKLIST_ID",
		Short: "List the findings of a checklist in file order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("checklist", args[0])
			if err != nil {
				return err
			}
			filter, err := findingFilter(statuses, severities)
			if err != nil {
				return err
			}
			rt, err := bootstrap(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer rt.Close()

			findings, err := rt.backend.Checklists.ListFindings(cmd.Context(), id, filter)
			if err != nil {
				return err
			}
			return printFindings(cmd, opts, findings)
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "filter by status (open, not_a_finding, not_applicable, not_reviewed)")
	cmd.Flags().StringSliceVar(&severities, "severity", nil, "filter by effective severity (cat1, cat2, cat3)")
	return cmd
}

func findingFilter(statuses, severities []string) (domain.FindingFilter, error) {
	var f domain.FindingFilter
	for _, s := range statuses {
		st := domain.Status(strings.TrimSpace(s))
		if !st.IsValid() {
			return f, fmt.Errorf("unknown status %q", s)
		}
		f.Statuses = append(f.Statuses, st)
	}
	for _, s := range severities {
		sev := domain.SeverityCategory(strings.TrimSpace(s))
		if !sev.IsValid() {
			return f, fmt.Errorf("unknown severity %q", s)
		}
		f.Severities = append(f.Severities, sev)
	}
	return f, nil
}

func newChecklistLifecycleCmd(opts *rootOptions, verb, short string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " CHECKLIST_ID",
		Short: short,
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

			var c *domain.StigChecklist
			if verb == "activate" {
				c, err = rt.backend.Checklists.Activate(cmd.Context(), id)
			} else {
				c, err = rt.backend.Checklists.Archive(cmd.Context(), id)
			}
			if err != nil {
				return err
			}
			return printChecklists(cmd, opts, []*domain.StigChecklist{c})
		},
	}
}

func newFindingStatusCmd(opts *rootOptions) *cobra.Command {
	var details, comments string
	cmd := &cobra.Command{
		Use:   "set-status FINDING_ID STATUS",
		Short: "Record the review outcome of a finding",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("finding", args[0])
			if err != nil {
				return err
			}
			rt, err := bootstrap(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer rt.Close()

			f, err := rt.backend.Checklists.UpdateFindingStatus(cmd.Context(), checklist.UpdateStatusInput{
				FindingID:      id,
				Status:         domain.Status(args[1]),
				FindingDetails: details,
				Comments:       comments,
			})
			if err != nil {
				return err
			}
			return printFindings(cmd, opts, []*domain.VulnerabilityFinding{f})
		},
	}
	cmd.Flags().StringVar(&details, "details", "", "finding details")
	cmd.Flags().StringVar(&comments, "comments", "", "reviewer comments")
	return cmd
}

func newBulkStatusCmd() *cobra.Command {
	var (
		ids        []string
		statuses   []string
		severities []string
		comments   string
	)
	cmd := &cobra.Command{
		Use:   "bulk-status CHECKLIST_ID STATUS",
		Short: "Apply one status to several findings of a checklist",
		Long:  "Without --finding every finding matching --status-filter and --severity is updated.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			checklistID, err := parseID("checklist", args[0])
			if err != nil {
				return err
			}
			filter, err := findingFilter(statuses, severities)
			if err != nil {
				return err
			}
			findingIDs := make([]uuid.UUID, 0, len(ids))
			for _, s := range ids {
				id, err := parseID("finding", s)
				if err != nil {
					return err
				}
				findingIDs = append(findingIDs, id)
			}
			rt, err := bootstrap(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer rt.Close()

			n, err := rt.backend.Checklists.BulkUpdateStatus(cmd.Context(), checklist.BulkUpdateInput{
				ChecklistID: checklistID,
				FindingIDs:  findingIDs,
				Filter:      filter,
				Status:      domain.Status(args[1]),
				Comments:    comments,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %d findings\n", n)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&ids, "finding", nil, "finding ids to update")
	cmd.Flags().StringSliceVar(&statuses, "status-filter", nil, "only findings with these statuses")
	cmd.Flags().StringSliceVar(&severities, "severity", nil, "only findings with these effective severities")
	cmd.Flags().StringVar(&comments, "comments", "", "reviewer comments")
	return cmd
}

func newOverrideCmd(opts *rootOptions) *cobra.Command {
	var justification string
	cmd := &cobra.Command{
		Use:   "override FINDING_ID [SEVERITY]",
		Short: "Override the severity of a finding, or clear the override when SEVERITY is omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("finding", args[0])
			if err != nil {
				return err
			}
			var sev domain.SeverityCategory
			if len(args) == 2 {
				sev = domain.SeverityCategory(args[1])
			}
			rt, err := bootstrap(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer rt.Close()

			f, err := rt.backend.Checklists.SetSeverityOverride(cmd.Context(), checklist.SeverityOverrideInput{
				FindingID:     id,
				Severity:      sev,
				Justification: justification,
			})
			if err != nil {
				return err
			}
			return printFindings(cmd, opts, []*domain.VulnerabilityFinding{f})
		},
	}
	cmd.Flags().StringVar(&justification, "justification", "", "why the severity differs (required when setting)")
	return cmd
}

func newCCICmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add-cci FINDING_ID CCI",
		Short: "Add a CCI reference to a finding",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("finding", args[0])
			if err != nil {
				return err
			}
			rt, err := bootstrap(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer rt.Close()

			f, err := rt.backend.Checklists.AddCCIReference(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			return printFindings(cmd, opts, []*domain.VulnerabilityFinding{f})
		},
	}
}

type auditView struct {
	Actor     string         `json:"actor"`
	Action    string         `json:"action"`
	Old       map[string]any `json:"old,omitempty"`
	New       map[string]any `json:"new,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		entity string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "history ID",
		Short: "Show the audit trail of a checklist, finding, system group or scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			rt, err := bootstrap(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer rt.Close()

			records, err := rt.backend.Checklists.History(cmd.Context(), domain.EntityType(strings.ToUpper(entity)), id, limit)
			if err != nil {
				return err
			}
			views := make([]auditView, 0, len(records))
			for _, r := range records {
				views = append(views, auditView{Actor: r.Actor, Action: r.Action.String(), Old: r.Old, New: r.New, CreatedAt: r.CreatedAt})
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), views)
			}
			rows := make([][]string, 0, len(views))
			for _, v := range views {
				rows = append(rows, []string{v.CreatedAt.Format(time.RFC3339), v.Actor, v.Action, fmt.Sprint(v.New)})
			}
			return table(cmd.OutOrStdout(), "AT\tACTOR\tACTION\tCHANGES", rows)
		},
	}
	cmd.Flags().StringVar(&entity, "entity", string(domain.EntityTypeChecklist), "CHECKLIST, FINDING, SYSTEM_GROUP or SCAN")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows (0 for all)")
	return cmd
}
