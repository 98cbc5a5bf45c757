package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/grc-backend/internal/eventsource"
)

// VulnerabilityStatus is the review state of a finding: the canonical status
// and an optional severity override, which always carries a justification.
type VulnerabilityStatus struct {
	Status                Status
	SeverityOverride      SeverityCategory
	SeverityJustification string
}

// HasOverride reports whether a severity override is set.
func (v VulnerabilityStatus) HasOverride() bool { return v.SeverityOverride != "" }

// DisplaySeverityOverride returns the human-readable override label, or an
// empty string when no override is set.
func (v VulnerabilityStatus) DisplaySeverityOverride() string {
	return v.SeverityOverride.Label()
}

// FindingInput holds the data a finding is created from.
type FindingInput struct {
	Rule                  RuleDetails
	Severity              SeverityCategory
	SourceSeverity        string
	Status                Status
	FindingDetails        string
	Comments              string
	CCIRefs               []string
	SeverityOverride      SeverityCategory
	SeverityJustification string
	Position              int
}

// VulnerabilityFinding is one rule result of a checklist. Findings are never
// deleted; they are closed through a status transition.
type VulnerabilityFinding struct {
	eventsource.AggregateRoot

	checklistID    uuid.UUID
	rule           RuleDetails
	severity       SeverityCategory
	sourceSeverity string
	status         VulnerabilityStatus
	findingDetails string
	comments       string
	cciRefs        []string
	position       int
}

// NewFinding creates a finding owned by checklistID and raises FindingCreated.
func NewFinding(checklistID uuid.UUID, in FindingInput) (*VulnerabilityFinding, error) {
	var errs []FieldError
	if in.Rule.Key() == "" {
		errs = append(errs, FieldError{Field: "rule", Message: "vuln id or rule id is required"})
	}
	if !in.Status.IsValid() {
		errs = append(errs, FieldError{Field: "status", Message: "invalid status " + quote(string(in.Status))})
	}
	if !in.Severity.IsValid() {
		errs = append(errs, FieldError{Field: "severity", Message: "invalid severity " + quote(string(in.Severity))})
	}
	if in.SeverityOverride != "" {
		if !in.SeverityOverride.IsValid() {
			errs = append(errs, FieldError{Field: "severity_override", Message: "invalid severity " + quote(string(in.SeverityOverride))})
		}
		if strings.TrimSpace(in.SeverityJustification) == "" {
			errs = append(errs, FieldError{Field: "severity_justification", Message: "required when severity is overridden"})
		}
	}
	if len(errs) > 0 {
		return nil, NewValidationErrors(errs)
	}

	f := &VulnerabilityFinding{
		AggregateRoot:  eventsource.NewAggregateRoot(uuid.New(), time.Now().UTC()),
		checklistID:    checklistID,
		rule:           in.Rule,
		severity:       in.Severity,
		sourceSeverity: in.SourceSeverity,
		status: VulnerabilityStatus{
			Status:                in.Status,
			SeverityOverride:      in.SeverityOverride,
			SeverityJustification: strings.TrimSpace(in.SeverityJustification),
		},
		findingDetails: in.FindingDetails,
		comments:       in.Comments,
		position:       in.Position,
	}
	for _, cci := range in.CCIRefs {
		f.addCCI(cci)
	}

	f.Raise(AggregateFinding, FindingCreated{
		ChecklistID: checklistID,
		VulnID:      in.Rule.VulnID,
		RuleID:      in.Rule.RuleID,
		Severity:    f.EffectiveSeverity(),
		Status:      in.Status,
	})
	return f, nil
}

func (f *VulnerabilityFinding) ChecklistID() uuid.UUID                   { return f.checklistID }
func (f *VulnerabilityFinding) Rule() RuleDetails                        { return f.rule }
func (f *VulnerabilityFinding) Key() string                              { return f.rule.Key() }
func (f *VulnerabilityFinding) ScopedKey() string                        { return f.rule.ScopedKey() }
func (f *VulnerabilityFinding) Severity() SeverityCategory               { return f.severity }
func (f *VulnerabilityFinding) SourceSeverity() string                   { return f.sourceSeverity }
func (f *VulnerabilityFinding) Status() Status                           { return f.status.Status }
func (f *VulnerabilityFinding) VulnerabilityStatus() VulnerabilityStatus { return f.status }
func (f *VulnerabilityFinding) FindingDetails() string                   { return f.findingDetails }
func (f *VulnerabilityFinding) Comments() string                         { return f.comments }
func (f *VulnerabilityFinding) Position() int                            { return f.position }

// CCIRefs returns the control references in insertion order.
func (f *VulnerabilityFinding) CCIRefs() []string { return slices.Clone(f.cciRefs) }

// EffectiveSeverity is the override when one is set, the base severity otherwise.
func (f *VulnerabilityFinding) EffectiveSeverity() SeverityCategory {
	if f.status.HasOverride() {
		return f.status.SeverityOverride
	}
	return f.severity
}

// UpdateStatus records a review result. An event is raised only when
// something changed.
func (f *VulnerabilityFinding) UpdateStatus(status Status, details, comments string) error {
	if !status.IsValid() {
		return NewValidationError("status", "invalid status "+quote(string(status)))
	}
	if status == f.status.Status && details == f.findingDetails && comments == f.comments {
		return nil
	}

	old := f.status.Status
	f.status.Status = status
	f.findingDetails = details
	f.comments = comments

	f.Raise(AggregateFinding, FindingStatusChanged{
		ChecklistID:    f.checklistID,
		OldStatus:      old,
		NewStatus:      status,
		FindingDetails: details,
		Comments:       comments,
	})
	return nil
}

// SetSeverityOverride overrides the severity used for scoring. An empty
// value clears the override; a non-empty value requires a justification.
func (f *VulnerabilityFinding) SetSeverityOverride(value SeverityCategory, justification string) error {
	justification = strings.TrimSpace(justification)

	if value == "" {
		if !f.status.HasOverride() {
			return nil
		}
		prev := f.status.SeverityOverride
		f.status.SeverityOverride = ""
		f.status.SeverityJustification = ""
		f.Raise(AggregateFinding, FindingSeverityOverridden{
			ChecklistID: f.checklistID,
			Previous:    prev,
		})
		return nil
	}

	if !value.IsValid() {
		return NewValidationError("severity_override", "invalid severity "+quote(string(value)))
	}
	if justification == "" {
		return NewValidationError("severity_justification", "required when severity is overridden")
	}
	if value == f.status.SeverityOverride && justification == f.status.SeverityJustification {
		return nil
	}

	prev := f.status.SeverityOverride
	f.status.SeverityOverride = value
	f.status.SeverityJustification = justification
	f.Raise(AggregateFinding, FindingSeverityOverridden{
		ChecklistID:   f.checklistID,
		Previous:      prev,
		Override:      value,
		Justification: justification,
	})
	return nil
}

// AddCCIReference adds a control reference. Adding a reference that is
// already present does nothing.
func (f *VulnerabilityFinding) AddCCIReference(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return NewValidationError("cci", "must not be empty")
	}
	if !f.addCCI(id) {
		return nil
	}
	f.Raise(AggregateFinding, FindingCCIReferenceAdded{ChecklistID: f.checklistID, CCI: id})
	return nil
}

func (f *VulnerabilityFinding) addCCI(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" || slices.Contains(f.cciRefs, id) {
		return false
	}
	f.cciRefs = append(f.cciRefs, id)
	return true
}

// ApplyScanResult merges a re-imported result into the finding: rule text is
// refreshed, the review status follows the new file and new CCI references
// are added. A change of the base severity raises FindingSeverityChanged.
// Overrides without a justification are ignored.
func (f *VulnerabilityFinding) ApplyScanResult(sf ScannedFinding) error {
	f.rule = mergeRule(f.rule, sf.Rule)
	if sf.SourceSeverity != "" {
		f.sourceSeverity = sf.SourceSeverity
	}

	if sf.Severity.IsValid() && sf.Severity != f.severity {
		old := f.EffectiveSeverity()
		f.severity = sf.Severity
		f.Raise(AggregateFinding, FindingSeverityChanged{
			ChecklistID: f.checklistID,
			OldSeverity: old,
			NewSeverity: f.EffectiveSeverity(),
		})
	}

	if err := f.UpdateStatus(sf.Status, sf.FindingDetails, sf.Comments); err != nil {
		return err
	}

	if sf.SeverityOverride != "" && strings.TrimSpace(sf.SeverityJustification) != "" {
		if err := f.SetSeverityOverride(sf.SeverityOverride, sf.SeverityJustification); err != nil {
			return err
		}
	}

	for _, cci := range sf.CCIRefs {
		if err := f.AddCCIReference(cci); err != nil {
			return err
		}
	}
	f.Touch(time.Now().UTC())
	return nil
}

func mergeRule(cur, next RuleDetails) RuleDetails {
	pick := func(a, b string) string {
		if b != "" {
			return b
		}
		return a
	}
	cur.VulnID = pick(cur.VulnID, next.VulnID)
	cur.StigID = pick(cur.StigID, next.StigID)
	cur.RuleID = pick(cur.RuleID, next.RuleID)
	cur.GroupTitle = pick(cur.GroupTitle, next.GroupTitle)
	cur.Title = pick(cur.Title, next.Title)
	cur.Discussion = pick(cur.Discussion, next.Discussion)
	cur.CheckContent = pick(cur.CheckContent, next.CheckContent)
	cur.FixText = pick(cur.FixText, next.FixText)
	cur.STIGRef = pick(cur.STIGRef, next.STIGRef)
	if len(next.LegacyIDs) > 0 {
		cur.LegacyIDs = slices.Clone(next.LegacyIDs)
	}
	return cur
}

// ---------------------------------------------------------------------------
// Persistence
// ---------------------------------------------------------------------------

// FindingSnapshot is the persisted state of a finding.
type FindingSnapshot struct {
	ID             uuid.UUID
	Version        int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ChecklistID    uuid.UUID
	Rule           RuleDetails
	Severity       SeverityCategory
	SourceSeverity string
	Status         VulnerabilityStatus
	FindingDetails string
	Comments       string
	CCIRefs        []string
	Position       int
}

// Snapshot returns the state repositories persist.
func (f *VulnerabilityFinding) Snapshot() FindingSnapshot {
	return FindingSnapshot{
		ID:             f.ID(),
		Version:        f.Version(),
		CreatedAt:      f.CreatedAt(),
		UpdatedAt:      f.UpdatedAt(),
		ChecklistID:    f.checklistID,
		Rule:           f.rule,
		Severity:       f.severity,
		SourceSeverity: f.sourceSeverity,
		Status:         f.status,
		FindingDetails: f.findingDetails,
		Comments:       f.comments,
		CCIRefs:        slices.Clone(f.cciRefs),
		Position:       f.position,
	}
}

// RehydrateFinding rebuilds a finding loaded from storage. No events are raised.
func RehydrateFinding(s FindingSnapshot) *VulnerabilityFinding {
	return &VulnerabilityFinding{
		AggregateRoot:  eventsource.RestoreAggregateRoot(s.ID, s.Version, s.CreatedAt, s.UpdatedAt),
		checklistID:    s.ChecklistID,
		rule:           s.Rule,
		severity:       s.Severity,
		sourceSeverity: s.SourceSeverity,
		status:         s.Status,
		findingDetails: s.FindingDetails,
		comments:       s.Comments,
		cciRefs:        slices.Clone(s.CCIRefs),
		position:       s.Position,
	}
}

func quote(s string) string { return "\"" + s + "\"" }
