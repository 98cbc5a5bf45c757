package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/heartmarshall/grc-backend/internal/domain"
	"github.com/heartmarshall/grc-backend/internal/parser"
	"github.com/heartmarshall/grc-backend/internal/service/checklist"
	"github.com/heartmarshall/grc-backend/internal/service/system"
)

type importView struct {
	Path      string     `json:"path"`
	Format    string     `json:"format"`
	Kind      string     `json:"kind"`
	ID        uuid.UUID  `json:"id"`
	Reimport  bool       `json:"reimport,omitempty"`
	Created   int        `json:"created"`
	Updated   int        `json:"updated"`
	Unchanged int        `json:"unchanged"`
	Score     *scoreView `json:"score,omitempty"`
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	var (
		format      string
		systemID    string
		checklistID string
		name        string
		forceNew    bool
		asScan      bool
	)

	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import CKL/SCAP files as checklists and Nessus files as scan records",
		Long: "Files are parsed concurrently first so a broken file aborts the run before anything is stored; " +
			"they are then imported one after another.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sysID, err := parseOptionalID("system", systemID)
			if err != nil {
				return err
			}
			clID, err := parseOptionalID("checklist", checklistID)
			if err != nil {
				return err
			}
			if clID != nil && len(args) > 1 {
				return fmt.Errorf("--checklist takes exactly one file")
			}

			rt, err := bootstrap(ctx, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			files, err := readFiles(args, domain.SourceFormat(format))
			if err != nil {
				return err
			}
			parsed, err := parser.ParseAll(ctx, files, rt.cfg.Import.Workers, nil)
			if err != nil {
				return err
			}
			for _, r := range parsed {
				if r.Err != nil {
					return fmt.Errorf("%s: %w", r.File.Path, r.Err)
				}
			}

			views := make([]importView, 0, len(parsed))
			for _, r := range parsed {
				f := r.File
				if f.Format == domain.FormatNessus || (asScan && f.Format == domain.FormatSCAP) {
					rec, err := rt.backend.Systems.ImportScan(ctx, system.ScanInput{Format: f.Format, Raw: f.Raw, SystemID: sysID})
					if err != nil {
						return fmt.Errorf("import %s: %w", f.Path, err)
					}
					views = append(views, importView{Path: f.Path, Format: f.Format.String(), Kind: "scan", ID: rec.ID})
					continue
				}

				res, err := rt.backend.Checklists.Import(ctx, checklist.ImportInput{
					Format:      f.Format,
					Raw:         f.Raw,
					Name:        name,
					ChecklistID: clID,
					SystemID:    sysID,
					ForceNew:    forceNew,
				})
				if err != nil {
					return fmt.Errorf("import %s: %w", f.Path, err)
				}
				v := importView{
					Path:      f.Path,
					Format:    f.Format.String(),
					Kind:      "checklist",
					ID:        res.Checklist.ID(),
					Reimport:  res.Reimport,
					Created:   res.Created,
					Updated:   res.Updated,
					Unchanged: res.Unchanged,
				}
				if score, err := rt.backend.Checklists.GetScore(ctx, res.Checklist.ID()); err == nil {
					sv := newScoreView(score)
					v.Score = &sv
				} else {
					rt.log.WarnContext(ctx, "score unavailable after import",
						slog.String("checklist_id", res.Checklist.ID().String()),
						slog.String("error", err.Error()))
				}
				views = append(views, v)
			}

			if opts.json {
				return writeJSON(cmd.OutOrStdout(), views)
			}
			rows := make([][]string, 0, len(views))
			for _, v := range views {
				compliance, open := "-", "-"
				if v.Score != nil {
					compliance = strconv.FormatFloat(v.Score.CompliancePercentage, 'f', 1, 64) + "%"
					open = strconv.Itoa(v.Score.TotalOpen)
				}
				rows = append(rows, []string{
					v.Path, v.Kind, v.ID.String(),
					strconv.Itoa(v.Created), strconv.Itoa(v.Updated), strconv.Itoa(v.Unchanged),
					open, compliance,
				})
			}
			return table(cmd.OutOrStdout(), "FILE\tKIND\tID\tCREATED\tUPDATED\tUNCHANGED\tOPEN\tCOMPLIANCE", rows)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "force the input format (ckl, nessus, scap); detected when empty")
	cmd.Flags().StringVar(&systemID, "system", "", "system group that receives the imported checklists and scans")
	cmd.Flags().StringVar(&checklistID, "checklist", "", "re-import into this checklist")
	cmd.Flags().StringVar(&name, "name", "", "checklist name (defaults to host and benchmark)")
	cmd.Flags().BoolVar(&forceNew, "new", false, "always create a new checklist instead of matching host and benchmark")
	cmd.Flags().BoolVar(&asScan, "as-scan", false, "store SCAP results as scan records instead of checklists")
	return cmd
}
