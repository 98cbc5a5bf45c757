package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/grc-backend/internal/domain"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table writes tab-separated rows aligned in columns.
func table(w io.Writer, header string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}

type checklistView struct {
	ID         uuid.UUID  `json:"id"`
	Version    int        `json:"version"`
	Name       string     `json:"name"`
	State      string     `json:"state"`
	Format     string     `json:"format,omitempty"`
	HostName   string     `json:"host_name,omitempty"`
	STIGID     string     `json:"stig_id,omitempty"`
	Release    string     `json:"release,omitempty"`
	SystemID   *uuid.UUID `json:"system_id,omitempty"`
	Findings   int        `json:"findings"`
	ImportedAt *time.Time `json:"imported_at,omitempty"`
}

func newChecklistView(c *domain.StigChecklist) checklistView {
	return checklistView{
		ID:         c.ID(),
		Version:    c.Version(),
		Name:       c.Name(),
		State:      c.State().String(),
		Format:     c.Format().String(),
		HostName:   c.Asset().HostName,
		STIGID:     c.Benchmark().STIGID,
		Release:    c.Benchmark().Release,
		SystemID:   c.SystemID(),
		Findings:   len(c.FindingIDs()),
		ImportedAt: c.ImportedAt(),
	}
}

type findingView struct {
	ID                uuid.UUID `json:"id"`
	VulnID            string    `json:"vuln_id,omitempty"`
	RuleID            string    `json:"rule_id,omitempty"`
	Title             string    `json:"title,omitempty"`
	Severity          string    `json:"severity"`
	EffectiveSeverity string    `json:"effective_severity"`
	Status            string    `json:"status"`
	FindingDetails    string    `json:"finding_details,omitempty"`
	Comments          string    `json:"comments,omitempty"`
	CCIRefs           []string  `json:"cci_refs,omitempty"`
}

func newFindingView(f *domain.VulnerabilityFinding) findingView {
	return findingView{
		ID:                f.ID(),
		VulnID:            f.Rule().VulnID,
		RuleID:            f.Rule().RuleID,
		Title:             f.Rule().Title,
		Severity:          f.Severity().String(),
		EffectiveSeverity: f.EffectiveSeverity().String(),
		Status:            f.Status().String(),
		FindingDetails:    f.FindingDetails(),
		Comments:          f.Comments(),
		CCIRefs:           f.CCIRefs(),
	}
}

type countsView struct {
	Open          int `json:"open"`
	NotAFinding   int `json:"not_a_finding"`
	NotApplicable int `json:"not_applicable"`
	NotReviewed   int `json:"not_reviewed"`
}

type scoreView struct {
	ChecklistID          uuid.UUID  `json:"checklist_id"`
	Cat1                 countsView `json:"cat1"`
	Cat2                 countsView `json:"cat2"`
	Cat3                 countsView `json:"cat3"`
	TotalFindings        int        `json:"total_findings"`
	TotalOpen            int        `json:"total_open"`
	CompliancePercentage float64    `json:"compliance_percentage"`
	RiskScore            int        `json:"risk_score"`
	HasCritical          bool       `json:"has_critical_findings"`
	LastCalculatedAt     time.Time  `json:"last_calculated_at"`
}

func newCountsView(c domain.StatusCounts) countsView {
	return countsView{Open: c.Open, NotAFinding: c.NotAFinding, NotApplicable: c.NotApplicable, NotReviewed: c.NotReviewed}
}

func newScoreView(s *domain.ChecklistScore) scoreView {
	return scoreView{
		ChecklistID:          s.ChecklistID,
		Cat1:                 newCountsView(s.Cat1),
		Cat2:                 newCountsView(s.Cat2),
		Cat3:                 newCountsView(s.Cat3),
		TotalFindings:        s.TotalFindings(),
		TotalOpen:            s.TotalOpen(),
		CompliancePercentage: s.CompliancePercentage(),
		RiskScore:            s.RiskScore(),
		HasCritical:          s.HasCriticalFindings(),
		LastCalculatedAt:     s.LastCalculatedAt,
	}
}

type systemView struct {
	ID         uuid.UUID              `json:"id"`
	Version    int                    `json:"version"`
	Name       string                 `json:"name"`
	Acronym    string                 `json:"acronym,omitempty"`
	State      string                 `json:"state"`
	Checklists []uuid.UUID            `json:"checklists"`
	Assets     []uuid.UUID            `json:"assets"`
	Scans      []uuid.UUID            `json:"scans"`
	Stats      domain.ComplianceStats `json:"stats"`
	RiskScore  int                    `json:"risk_score"`
}

func newSystemView(g *domain.SystemGroup) systemView {
	return systemView{
		ID:         g.ID(),
		Version:    g.Version(),
		Name:       g.Name(),
		Acronym:    g.Acronym(),
		State:      g.State().String(),
		Checklists: g.ChecklistIDs(),
		Assets:     g.AssetIDs(),
		Scans:      g.ScanIDs(),
		Stats:      g.Stats(),
		RiskScore:  g.RiskScore(),
	}
}

type scanView struct {
	ID              uuid.UUID      `json:"id"`
	Format          string         `json:"format"`
	Name            string         `json:"name,omitempty"`
	PolicyName      string         `json:"policy_name,omitempty"`
	SystemID        *uuid.UUID     `json:"system_id,omitempty"`
	ImportedAt      time.Time      `json:"imported_at"`
	Hosts           int            `json:"hosts"`
	Vulnerabilities int            `json:"vulnerabilities"`
	Severities      map[string]int `json:"severities,omitempty"`
	UniqueCVEs      int            `json:"unique_cves"`
	Score           float64        `json:"score,omitempty"`
}

func newScanView(r *domain.ScanRecord) scanView {
	return scanView{
		ID:              r.ID,
		Format:          r.Format.String(),
		Name:            r.Name,
		PolicyName:      r.PolicyName,
		SystemID:        r.SystemID,
		ImportedAt:      r.ImportedAt,
		Hosts:           r.Summary.HostCount,
		Vulnerabilities: r.Summary.VulnerabilityCount,
		Severities:      r.Summary.SeverityBreakdown,
		UniqueCVEs:      r.Summary.UniqueCVEs,
		Score:           r.Summary.Score,
	}
}

func optionalID(id *uuid.UUID) string {
	if id == nil {
		return "-"
	}
	return id.String()
}

func parseID(name, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", name, err)
	}
	return id, nil
}

func parseOptionalID(name, s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := parseID(name, s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
