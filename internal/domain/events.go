package domain

import (
	"github.com/google/uuid"

	"github.com/heartmarshall/grc-backend/internal/eventsource"
)

// Aggregate type names stamped on events.
const (
	AggregateFinding        = "finding"
	AggregateChecklist      = "checklist"
	AggregateSystemGroup    = "system_group"
	AggregateChecklistScore = "checklist_score"
)

// Event type names.
const (
	EventFindingCreated            = "finding.created"
	EventFindingStatusChanged      = "finding.status_changed"
	EventFindingSeverityOverridden = "finding.severity_overridden"
	EventFindingSeverityChanged    = "finding.severity_changed"
	EventFindingCCIReferenceAdded  = "finding.cci_reference_added"

	EventChecklistCreated      = "checklist.created"
	EventChecklistImported     = "checklist.imported"
	EventChecklistActivated    = "checklist.activated"
	EventChecklistArchived     = "checklist.archived"
	EventChecklistAssigned     = "checklist.assigned_to_system"
	EventChecklistUnassigned   = "checklist.unassigned_from_system"
	EventChecklistScoreUpdated = "checklist.score_updated"

	EventSystemGroupCreated      = "system_group.created"
	EventSystemChecklistAdded    = "system_group.checklist_added"
	EventSystemChecklistRemoved  = "system_group.checklist_removed"
	EventSystemAssetAdded        = "system_group.asset_added"
	EventSystemAssetRemoved      = "system_group.asset_removed"
	EventSystemScanAdded         = "system_group.scan_added"
	EventSystemScanRemoved       = "system_group.scan_removed"
	EventSystemGroupActivated    = "system_group.activated"
	EventSystemGroupArchived     = "system_group.archived"
	EventSystemComplianceUpdated = "system_group.compliance_updated"
)

// ---------------------------------------------------------------------------
// Finding events
// ---------------------------------------------------------------------------

type FindingCreated struct {
	ChecklistID uuid.UUID        `json:"checklist_id"`
	VulnID      string           `json:"vuln_id"`
	RuleID      string           `json:"rule_id"`
	Severity    SeverityCategory `json:"severity"`
	Status      Status           `json:"status"`
}

func (FindingCreated) EventType() string { return EventFindingCreated }

type FindingStatusChanged struct {
	ChecklistID    uuid.UUID `json:"checklist_id"`
	OldStatus      Status    `json:"old_status"`
	NewStatus      Status    `json:"new_status"`
	FindingDetails string    `json:"finding_details,omitempty"`
	Comments       string    `json:"comments,omitempty"`
}

func (FindingStatusChanged) EventType() string { return EventFindingStatusChanged }

// FindingSeverityOverridden is raised both when an override is set and when
// it is cleared; a cleared override has an empty Override.
type FindingSeverityOverridden struct {
	ChecklistID   uuid.UUID        `json:"checklist_id"`
	Previous      SeverityCategory `json:"previous,omitempty"`
	Override      SeverityCategory `json:"override,omitempty"`
	Justification string           `json:"justification,omitempty"`
}

func (FindingSeverityOverridden) EventType() string { return EventFindingSeverityOverridden }

type FindingSeverityChanged struct {
	ChecklistID uuid.UUID        `json:"checklist_id"`
	OldSeverity SeverityCategory `json:"old_severity"`
	NewSeverity SeverityCategory `json:"new_severity"`
}

func (FindingSeverityChanged) EventType() string { return EventFindingSeverityChanged }

type FindingCCIReferenceAdded struct {
	ChecklistID uuid.UUID `json:"checklist_id"`
	CCI         string    `json:"cci"`
}

func (FindingCCIReferenceAdded) EventType() string { return EventFindingCCIReferenceAdded }

// ---------------------------------------------------------------------------
// Checklist events
// ---------------------------------------------------------------------------

type ChecklistCreated struct {
	Name string `json:"name"`
}

func (ChecklistCreated) EventType() string { return EventChecklistCreated }

type ChecklistImported struct {
	Format   SourceFormat `json:"format"`
	HostName string       `json:"host_name"`
	STIGID   string       `json:"stig_id,omitempty"`
	Version  string       `json:"version,omitempty"`
	Release  string       `json:"release,omitempty"`
	RawBytes int          `json:"raw_bytes"`
}

func (ChecklistImported) EventType() string { return EventChecklistImported }

type ChecklistActivated struct{}

func (ChecklistActivated) EventType() string { return EventChecklistActivated }

type ChecklistArchived struct{}

func (ChecklistArchived) EventType() string { return EventChecklistArchived }

type ChecklistAssignedToSystem struct {
	SystemID         uuid.UUID  `json:"system_id"`
	PreviousSystemID *uuid.UUID `json:"previous_system_id,omitempty"`
}

func (ChecklistAssignedToSystem) EventType() string { return EventChecklistAssigned }

type ChecklistUnassignedFromSystem struct {
	SystemID uuid.UUID `json:"system_id"`
}

func (ChecklistUnassignedFromSystem) EventType() string { return EventChecklistUnassigned }

// ChecklistScoreUpdated is published by the score projection after a
// recompute. It is derived and never stored.
type ChecklistScoreUpdated struct {
	ChecklistID          uuid.UUID  `json:"checklist_id"`
	SystemID             *uuid.UUID `json:"system_id,omitempty"`
	TotalFindings        int        `json:"total_findings"`
	TotalOpen            int        `json:"total_open"`
	CompliancePercentage float64    `json:"compliance_percentage"`
	RiskScore            int        `json:"risk_score"`
}

func (ChecklistScoreUpdated) EventType() string { return EventChecklistScoreUpdated }

// ---------------------------------------------------------------------------
// System group events
// ---------------------------------------------------------------------------

type SystemGroupCreated struct {
	Name    string `json:"name"`
	Acronym string `json:"acronym,omitempty"`
}

func (SystemGroupCreated) EventType() string { return EventSystemGroupCreated }

type SystemChecklistAdded struct {
	ChecklistID uuid.UUID `json:"checklist_id"`
}

func (SystemChecklistAdded) EventType() string { return EventSystemChecklistAdded }

type SystemChecklistRemoved struct {
	ChecklistID uuid.UUID `json:"checklist_id"`
}

func (SystemChecklistRemoved) EventType() string { return EventSystemChecklistRemoved }

type SystemAssetAdded struct {
	AssetID uuid.UUID `json:"asset_id"`
}

func (SystemAssetAdded) EventType() string { return EventSystemAssetAdded }

type SystemAssetRemoved struct {
	AssetID uuid.UUID `json:"asset_id"`
}

func (SystemAssetRemoved) EventType() string { return EventSystemAssetRemoved }

type SystemScanAdded struct {
	ScanID uuid.UUID `json:"scan_id"`
}

func (SystemScanAdded) EventType() string { return EventSystemScanAdded }

type SystemScanRemoved struct {
	ScanID uuid.UUID `json:"scan_id"`
}

func (SystemScanRemoved) EventType() string { return EventSystemScanRemoved }

type SystemGroupActivated struct{}

func (SystemGroupActivated) EventType() string { return EventSystemGroupActivated }

type SystemGroupArchived struct{}

func (SystemGroupArchived) EventType() string { return EventSystemGroupArchived }

type SystemComplianceUpdated struct {
	Stats ComplianceStats `json:"stats"`
}

func (SystemComplianceUpdated) EventType() string { return EventSystemComplianceUpdated }

// RegisterEvents adds every domain payload type to r.
func RegisterEvents(r *eventsource.Registry) {
	eventsource.Register[FindingCreated](r)
	eventsource.Register[FindingStatusChanged](r)
	eventsource.Register[FindingSeverityOverridden](r)
	eventsource.Register[FindingSeverityChanged](r)
	eventsource.Register[FindingCCIReferenceAdded](r)

	eventsource.Register[ChecklistCreated](r)
	eventsource.Register[ChecklistImported](r)
	eventsource.Register[ChecklistActivated](r)
	eventsource.Register[ChecklistArchived](r)
	eventsource.Register[ChecklistAssignedToSystem](r)
	eventsource.Register[ChecklistUnassignedFromSystem](r)
	eventsource.Register[ChecklistScoreUpdated](r)

	eventsource.Register[SystemGroupCreated](r)
	eventsource.Register[SystemChecklistAdded](r)
	eventsource.Register[SystemChecklistRemoved](r)
	eventsource.Register[SystemAssetAdded](r)
	eventsource.Register[SystemAssetRemoved](r)
	eventsource.Register[SystemScanAdded](r)
	eventsource.Register[SystemScanRemoved](r)
	eventsource.Register[SystemGroupActivated](r)
	eventsource.Register[SystemGroupArchived](r)
	eventsource.Register[SystemComplianceUpdated](r)
}

// NewEventRegistry returns a registry holding every domain payload type.
func NewEventRegistry() *eventsource.Registry {
	r := eventsource.NewRegistry()
	RegisterEvents(r)
	return r
}
