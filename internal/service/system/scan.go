package system

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/grc-backend/internal/domain"
	"github.com/heartmarshall/grc-backend/internal/eventsource"
	"github.com/heartmarshall/grc-backend/internal/parser"
)

// ImportScan parses a Nessus or SCAP file into a scan record, attaching it
// to a system group when SystemID is set.
func (s *Service) ImportScan(ctx context.Context, input ScanInput) (*domain.ScanRecord, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	format := input.Format
	if format == "" {
		detected, err := parser.Detect(input.Raw)
		if err != nil {
			return nil, err
		}
		if detected == domain.FormatCKL {
			return nil, domain.NewValidationError("format", "checklists are imported as checklists")
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

	record := domain.NewScanRecord(scan, time.Now().UTC())
	var sources []eventsource.Source
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.scans.Create(txCtx, record); err != nil {
			return fmt.Errorf("save scan: %w", err)
		}
		if input.SystemID == nil {
			return nil
		}
		groups, err := s.attach(txCtx, *input.SystemID, record)
		if err != nil {
			return err
		}
		for _, g := range groups {
			sources = append(sources, g)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Commit(ctx, sources...)
	s.log.InfoContext(ctx, "scan imported",
		slog.String("scan_id", record.ID.String()),
		slog.String("format", format.String()),
		slog.Int("hosts", record.Summary.HostCount),
		slog.Int("vulnerabilities", record.Summary.VulnerabilityCount),
	)
	return record, nil
}

// AttachScan attaches a stored scan record to a system group. A scan owned
// by another group is moved: that group drops the scan id.
func (s *Service) AttachScan(ctx context.Context, systemID, scanID uuid.UUID) (*domain.SystemGroup, error) {
	var groups []*domain.SystemGroup
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		record, err := s.scans.GetByID(txCtx, scanID)
		if err != nil {
			return fmt.Errorf("load scan: %w", err)
		}
		groups, err = s.attach(txCtx, systemID, record)
		return err
	})
	if err != nil {
		return nil, err
	}
	sources := make([]eventsource.Source, len(groups))
	for i, g := range groups {
		sources[i] = g
	}
	s.events.Commit(ctx, sources...)
	s.logAudit(ctx, domain.AuditActionUpdate, domain.EntityTypeSystem, systemID, map[string]any{
		"scan_added": scanID.String(),
	})
	return groups[len(groups)-1], nil
}

// attach points the scan at systemID and records it in the group's scan set,
// removing it from the group that held it before. The target group is the
// last element of the returned slice.
func (s *Service) attach(ctx context.Context, systemID uuid.UUID, record *domain.ScanRecord) ([]*domain.SystemGroup, error) {
	g, err := s.systems.GetByID(ctx, systemID)
	if err != nil {
		return nil, fmt.Errorf("load system: %w", err)
	}
	if g.State() == domain.StateArchived {
		return nil, domain.NewValidationError("state", "system group is archived")
	}

	var groups []*domain.SystemGroup
	if prev := record.SystemID; prev != nil && *prev != systemID {
		old, err := s.systems.GetByID(ctx, *prev)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			return nil, fmt.Errorf("load previous system: %w", err)
		default:
			if old.RemoveScan(record.ID) {
				if err := s.systems.Save(ctx, old); err != nil {
					return nil, fmt.Errorf("save previous system: %w", err)
				}
				groups = append(groups, old)
			}
		}
	}

	if err := s.scans.SetSystem(ctx, record.ID, systemID); err != nil {
		return nil, fmt.Errorf("attach scan: %w", err)
	}
	record.SystemID = &systemID
	if g.AddScan(record.ID) {
		if err := s.systems.Save(ctx, g); err != nil {
			return nil, fmt.Errorf("save system: %w", err)
		}
	}
	return append(groups, g), nil
}

// ListScans returns the scans attached to a group, newest first.
func (s *Service) ListScans(ctx context.Context, systemID uuid.UUID) ([]*domain.ScanRecord, error) {
	if _, err := s.systems.GetByID(ctx, systemID); err != nil {
		return nil, err
	}
	return s.scans.ListBySystem(ctx, systemID)
}
