package domain

import (
	"slices"

	"github.com/google/uuid"
)

// ChecklistFilter selects checklists. Zero values mean "no constraint".
type ChecklistFilter struct {
	SystemID   *uuid.UUID
	Unassigned bool
	State      LifecycleState
	HostName   string
	STIGID     string
	Limit      int
}

// Match reports whether c satisfies every constraint except Limit.
func (f ChecklistFilter) Match(c *StigChecklist) bool {
	if f.SystemID != nil && (c.systemID == nil || *c.systemID != *f.SystemID) {
		return false
	}
	if f.Unassigned && c.systemID != nil {
		return false
	}
	if f.State != "" && c.state != f.State {
		return false
	}
	if f.HostName != "" && c.asset.HostName != f.HostName {
		return false
	}
	if f.STIGID != "" && c.benchmark.STIGID != f.STIGID {
		return false
	}
	return true
}

// FindingFilter selects findings of one checklist.
type FindingFilter struct {
	Statuses   []Status
	Severities []SeverityCategory
}

// Match reports whether f has one of the requested statuses and effective
// severities.
func (ff FindingFilter) Match(f *VulnerabilityFinding) bool {
	if len(ff.Statuses) > 0 && !slices.Contains(ff.Statuses, f.Status()) {
		return false
	}
	if len(ff.Severities) > 0 && !slices.Contains(ff.Severities, f.EffectiveSeverity()) {
		return false
	}
	return true
}
