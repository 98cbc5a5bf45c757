package checklist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/heartmarshall/grc-backend/internal/domain"
	"github.com/heartmarshall/grc-backend/internal/eventsource"
	"github.com/heartmarshall/grc-backend/internal/parser"
)

// Import parses a CKL or SCAP file and stores it as a checklist with one
// finding per rule. Re-importing into an existing checklist updates the
// findings matched by vulnerability or rule id and creates the new ones;
// findings missing from the file are kept.
func (s *Service) Import(ctx context.Context, input ImportInput) (*ImportResult, error) {
	if err := input.Validate(s.cfg.MaxFileBytes); err != nil {
		return nil, err
	}

	format := input.Format
	if format == "" {
		detected, err := parser.Detect(input.Raw)
		if err != nil {
			return nil, err
		}
		if detected == domain.FormatNessus {
			return nil, domain.NewValidationError("format", "nessus scans are attached to a system group")
		}
		format = detected
	}

	scan, err := parser.Parse(format, input.Raw)
	if s.metrics != nil {
		s.metrics.FileParsed(format, err == nil)
	}
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	var sources []eventsource.Source

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		checklist, err := s.resolveTarget(txCtx, input, scan)
		if err != nil {
			return err
		}
		result.Reimport = checklist != nil

		if checklist == nil {
			checklist, err = domain.NewChecklist(checklistName(input.Name, scan))
			if err != nil {
				return err
			}
		}
		if err := checklist.ImportFrom(scan); err != nil {
			return err
		}

		var groups []*domain.SystemGroup
		if input.SystemID != nil {
			groups, err = s.moveToSystem(txCtx, checklist, *input.SystemID)
			if err != nil {
				return err
			}
		}

		if err := s.checklists.Save(txCtx, checklist); err != nil {
			return fmt.Errorf("save checklist: %w", err)
		}
		sources = append(sources, checklist)
		for _, g := range groups {
			if err := s.systems.Save(txCtx, g); err != nil {
				return fmt.Errorf("save system: %w", err)
			}
			sources = append(sources, g)
		}

		findings, err := s.mergeFindings(txCtx, checklist, scan.Findings, result)
		if err != nil {
			return err
		}
		for _, f := range findings {
			sources = append(sources, f)
		}

		result.Checklist = checklist
		return nil
	})
	if err != nil {
		return nil, err
	}

	action := domain.AuditActionCreate
	if result.Reimport {
		action = domain.AuditActionImport
	}
	s.logAudit(ctx, action, domain.EntityTypeChecklist, result.Checklist.ID(), nil, map[string]any{
		"format":    format.String(),
		"host_name": scan.Asset.HostName,
		"stig_id":   result.Checklist.Benchmark().STIGID,
		"created":   result.Created,
		"updated":   result.Updated,
	})

	s.events.Commit(ctx, sources...)

	s.log.InfoContext(ctx, "checklist imported",
		slog.String("checklist_id", result.Checklist.ID().String()),
		slog.String("format", format.String()),
		slog.Bool("reimport", result.Reimport),
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
		slog.Int("unchanged", result.Unchanged),
	)
	return result, nil
}

// resolveTarget returns the checklist to re-import into, or nil when a new
// checklist must be created.
func (s *Service) resolveTarget(ctx context.Context, input ImportInput, scan *domain.NormalizedScan) (*domain.StigChecklist, error) {
	if input.ChecklistID != nil {
		c, err := s.checklists.GetByID(ctx, *input.ChecklistID)
		if err != nil {
			return nil, fmt.Errorf("load checklist: %w", err)
		}
		return c, nil
	}
	if input.ForceNew {
		return nil, nil
	}

	host := scan.Asset.HostName
	stigID := scan.PrimaryBenchmark().STIGID
	if host == "" || stigID == "" {
		return nil, nil
	}

	candidates, err := s.checklists.List(ctx, domain.ChecklistFilter{HostName: host, STIGID: stigID})
	if err != nil {
		return nil, fmt.Errorf("find checklist: %w", err)
	}
	for _, c := range candidates {
		if c.State() != domain.StateArchived {
			return c, nil
		}
	}
	return nil, nil
}

// mergeFindings applies every scanned finding to the checklist and saves the
// findings that changed. Findings are matched by their STIG-scoped key; a
// stored finding without a STIG reference still matches on the bare key.
func (s *Service) mergeFindings(ctx context.Context, checklist *domain.StigChecklist, scanned []domain.ScannedFinding, result *ImportResult) ([]*domain.VulnerabilityFinding, error) {
	existing, err := s.findings.ListByChecklist(ctx, checklist.ID())
	if err != nil {
		return nil, fmt.Errorf("list findings: %w", err)
	}
	byKey := make(map[string]*domain.VulnerabilityFinding, len(existing))
	unscoped := make(map[string]*domain.VulnerabilityFinding)
	for _, f := range existing {
		byKey[f.ScopedKey()] = f
		if f.Rule().STIGTitle() == "" {
			unscoped[f.Key()] = f
		}
		checklist.AddFinding(f.ID())
	}

	next := len(existing)
	var changed []*domain.VulnerabilityFinding
	for _, sf := range scanned {
		f, ok := byKey[sf.ScopedKey()]
		if !ok {
			f, ok = unscoped[sf.Key()]
		}
		if ok {
			delete(unscoped, f.Key())
			before := len(f.PendingEvents())
			if err := f.ApplyScanResult(sf); err != nil {
				return nil, fmt.Errorf("apply %s: %w", sf.Key(), err)
			}
			byKey[f.ScopedKey()] = f
			if len(f.PendingEvents()) == before {
				result.Unchanged++
				continue
			}
			result.Updated++
		} else {
			f, err = domain.NewFinding(checklist.ID(), s.findingInput(ctx, sf, next))
			if err != nil {
				return nil, fmt.Errorf("create %s: %w", sf.Key(), err)
			}
			byKey[f.ScopedKey()] = f
			checklist.AddFinding(f.ID())
			next++
			result.Created++
		}

		if err := s.findings.Save(ctx, f); err != nil {
			return nil, fmt.Errorf("save finding %s: %w", sf.Key(), err)
		}
		if !slices.Contains(changed, f) {
			changed = append(changed, f)
		}
	}
	return changed, nil
}

func (s *Service) findingInput(ctx context.Context, sf domain.ScannedFinding, position int) domain.FindingInput {
	in := domain.FindingInput{
		Rule:                  sf.Rule,
		Severity:              sf.Severity,
		SourceSeverity:        sf.SourceSeverity,
		Status:                sf.Status,
		FindingDetails:        sf.FindingDetails,
		Comments:              sf.Comments,
		CCIRefs:               sf.CCIRefs,
		SeverityOverride:      sf.SeverityOverride,
		SeverityJustification: sf.SeverityJustification,
		Position:              position,
	}
	if in.SeverityOverride != "" && strings.TrimSpace(in.SeverityJustification) == "" {
		s.log.WarnContext(ctx, "ignoring unjustified severity override",
			slog.String("rule", sf.Key()),
			slog.String("override", string(in.SeverityOverride)),
		)
		in.SeverityOverride = ""
	}
	return in
}

// moveToSystem assigns the checklist to a system group and removes it from
// the group that owned it before. It returns the groups that changed; the
// caller saves them after the checklist.
func (s *Service) moveToSystem(ctx context.Context, c *domain.StigChecklist, systemID uuid.UUID) ([]*domain.SystemGroup, error) {
	target, err := s.systems.GetByID(ctx, systemID)
	if err != nil {
		return nil, fmt.Errorf("load system: %w", err)
	}
	if target.State() == domain.StateArchived {
		return nil, domain.NewValidationError("system_id", "system group is archived")
	}

	var changed []*domain.SystemGroup
	if prev := c.SystemID(); prev != nil && *prev != systemID {
		old, err := s.systems.GetByID(ctx, *prev)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			return nil, fmt.Errorf("load previous system: %w", err)
		default:
			if old.RemoveChecklist(c.ID()) {
				changed = append(changed, old)
			}
		}
	}

	c.AssignToSystem(systemID)
	if target.AddChecklist(c.ID()) {
		changed = append(changed, target)
	}
	return changed, nil
}

func checklistName(name string, scan *domain.NormalizedScan) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	host := scan.Asset.HostName
	stig := scan.PrimaryBenchmark().STIGID
	switch {
	case host != "" && stig != "":
		return host + " " + stig
	case host != "":
		return host
	case stig != "":
		return stig
	case scan.Name != "":
		return scan.Name
	}
	return "Imported checklist"
}
