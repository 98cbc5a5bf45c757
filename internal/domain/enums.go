package domain

// Status is the canonical review status of a finding.
type Status string

const (
	StatusOpen          Status = "open"
	StatusNotAFinding   Status = "not_a_finding"
	StatusNotApplicable Status = "not_applicable"
	StatusNotReviewed   Status = "not_reviewed"
)

// Statuses lists the canonical statuses in score-grid order.
var Statuses = []Status{StatusOpen, StatusNotAFinding, StatusNotApplicable, StatusNotReviewed}

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusNotAFinding, StatusNotApplicable, StatusNotReviewed:
		return true
	}
	return false
}

// IsClosed reports whether the status counts as closed for compliance.
func (s Status) IsClosed() bool {
	return s == StatusNotAFinding || s == StatusNotApplicable
}

// Label returns the CKL spelling of the status.
func (s Status) Label() string {
	switch s {
	case StatusOpen:
		return "Open"
	case StatusNotAFinding:
		return "NotAFinding"
	case StatusNotApplicable:
		return "Not_Applicable"
	case StatusNotReviewed:
		return "Not_Reviewed"
	}
	return string(s)
}

// SeverityCategory is the DoD CAT I/II/III scale.
type SeverityCategory string

const (
	SeverityCat1 SeverityCategory = "cat1"
	SeverityCat2 SeverityCategory = "cat2"
	SeverityCat3 SeverityCategory = "cat3"
)

// SeverityCategories lists the categories from most to least severe.
var SeverityCategories = []SeverityCategory{SeverityCat1, SeverityCat2, SeverityCat3}

func (c SeverityCategory) String() string { return string(c) }

func (c SeverityCategory) IsValid() bool {
	switch c {
	case SeverityCat1, SeverityCat2, SeverityCat3:
		return true
	}
	return false
}

// Weight is the risk weight of the category: 3, 2, 1.
func (c SeverityCategory) Weight() int {
	switch c {
	case SeverityCat1:
		return 3
	case SeverityCat2:
		return 2
	case SeverityCat3:
		return 1
	}
	return 0
}

// Label returns the human-readable category name.
func (c SeverityCategory) Label() string {
	switch c {
	case SeverityCat1:
		return "CAT I - High"
	case SeverityCat2:
		return "CAT II - Medium"
	case SeverityCat3:
		return "CAT III - Low"
	}
	return ""
}

// LifecycleState is shared by checklists and system groups.
type LifecycleState string

const (
	StateDraft    LifecycleState = "draft"
	StateActive   LifecycleState = "active"
	StateArchived LifecycleState = "archived"
)

func (s LifecycleState) String() string { return string(s) }

func (s LifecycleState) IsValid() bool {
	switch s {
	case StateDraft, StateActive, StateArchived:
		return true
	}
	return false
}

// SourceFormat identifies the scan file format a record came from.
type SourceFormat string

const (
	FormatCKL    SourceFormat = "ckl"
	FormatNessus SourceFormat = "nessus"
	FormatSCAP   SourceFormat = "scap"
)

func (f SourceFormat) String() string { return string(f) }

func (f SourceFormat) IsValid() bool {
	switch f {
	case FormatCKL, FormatNessus, FormatSCAP:
		return true
	}
	return false
}

// EntityType identifies the kind of domain entity (used in audit logs).
type EntityType string

const (
	EntityTypeFinding   EntityType = "FINDING"
	EntityTypeChecklist EntityType = "CHECKLIST"
	EntityTypeSystem    EntityType = "SYSTEM_GROUP"
	EntityTypeScan      EntityType = "SCAN"
)

func (e EntityType) String() string { return string(e) }

func (e EntityType) IsValid() bool {
	switch e {
	case EntityTypeFinding, EntityTypeChecklist, EntityTypeSystem, EntityTypeScan:
		return true
	}
	return false
}

// AuditAction represents the kind of mutation recorded in the audit log.
type AuditAction string

const (
	AuditActionCreate  AuditAction = "CREATE"
	AuditActionUpdate  AuditAction = "UPDATE"
	AuditActionImport  AuditAction = "IMPORT"
	AuditActionArchive AuditAction = "ARCHIVE"
)

func (a AuditAction) String() string { return string(a) }

func (a AuditAction) IsValid() bool {
	switch a {
	case AuditActionCreate, AuditActionUpdate, AuditActionImport, AuditActionArchive:
		return true
	}
	return false
}
