package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/heartmarshall/grc-backend/internal/domain"
	"github.com/heartmarshall/grc-backend/internal/parser"
)

type parsedFileView struct {
	Path            string  `json:"path"`
	Format          string  `json:"format,omitempty"`
	HostName        string  `json:"host_name,omitempty"`
	Benchmark       string  `json:"benchmark,omitempty"`
	Findings        int     `json:"findings"`
	Hosts           int     `json:"hosts,omitempty"`
	Vulnerabilities int     `json:"vulnerabilities,omitempty"`
	Score           float64 `json:"score,omitempty"`
	Error           string  `json:"error,omitempty"`
}

func newParseCmd(opts *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "parse FILE...",
		Short: "Parse scan files and print what they contain without storing anything",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			files, err := readFiles(args, domain.SourceFormat(format))
			if err != nil {
				return err
			}

			results, err := parser.ParseAll(cmd.Context(), files, cfg.Import.Workers, nil)
			if err != nil {
				return err
			}

			views := make([]parsedFileView, 0, len(results))
			failed := 0
			for _, r := range results {
				v := parsedFileView{Path: r.File.Path, Format: r.File.Format.String()}
				if r.Err != nil {
					v.Error = r.Err.Error()
					failed++
				} else {
					v.HostName = r.Scan.Asset.HostName
					v.Benchmark = r.Scan.PrimaryBenchmark().STIGID
					v.Findings = len(r.Scan.Findings)
					v.Hosts = r.Scan.Summary.HostCount
					v.Vulnerabilities = r.Scan.Summary.VulnerabilityCount
					v.Score = r.Scan.Summary.Score
				}
				views = append(views, v)
			}

			if opts.json {
				err = writeJSON(cmd.OutOrStdout(), views)
			} else {
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					status := "ok"
					if v.Error != "" {
						status = v.Error
					}
					rows = append(rows, []string{v.Path, v.Format, v.HostName, v.Benchmark, strconv.Itoa(v.Findings), status})
				}
				err = table(cmd.OutOrStdout(), "FILE\tFORMAT\tHOST\tBENCHMARK\tFINDINGS\tRESULT", rows)
			}
			if err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed to parse", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "force the input format (ckl, nessus, scap); detected when empty")
	return cmd
}

func readFiles(paths []string, format domain.SourceFormat) ([]parser.File, error) {
	if format != "" && !format.IsValid() {
		return nil, fmt.Errorf("unknown format %q", format)
	}
	files := make([]parser.File, 0, len(paths))
	for _, p := range paths {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		files = append(files, parser.File{Path: p, Format: format, Raw: raw})
	}
	return files, nil
}
