package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/grc-backend/internal/eventsource"
)

// StigChecklist is one host and STIG combination. It owns an ordered set of
// finding ids and references at most one SystemGroup by id.
type StigChecklist struct {
	eventsource.AggregateRoot

	name       string
	state      LifecycleState
	format     SourceFormat
	asset      AssetInfo
	benchmark  BenchmarkInfo
	raw        []byte
	systemID   *uuid.UUID
	findingIDs []uuid.UUID
	importedAt *time.Time
}

// NewChecklist creates a draft checklist and raises ChecklistCreated.
func NewChecklist(name string) (*StigChecklist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewValidationError("name", "required")
	}
	c := &StigChecklist{
		AggregateRoot: eventsource.NewAggregateRoot(uuid.New(), time.Now().UTC()),
		name:          name,
		state:         StateDraft,
	}
	c.Raise(AggregateChecklist, ChecklistCreated{Name: name})
	return c, nil
}

func (c *StigChecklist) Name() string             { return c.name }
func (c *StigChecklist) State() LifecycleState    { return c.state }
func (c *StigChecklist) Format() SourceFormat     { return c.format }
func (c *StigChecklist) Asset() AssetInfo         { return c.asset }
func (c *StigChecklist) Benchmark() BenchmarkInfo { return c.benchmark }
func (c *StigChecklist) ImportedAt() *time.Time   { return c.importedAt }

// SystemID returns the owning system group, or nil.
func (c *StigChecklist) SystemID() *uuid.UUID {
	if c.systemID == nil {
		return nil
	}
	id := *c.systemID
	return &id
}

// Raw returns the payload exactly as imported.
func (c *StigChecklist) Raw() []byte { return slices.Clone(c.raw) }

// HasRawData reports whether a file has been imported.
func (c *StigChecklist) HasRawData() bool { return len(c.raw) > 0 }

// FindingIDs returns the owned finding ids in import order.
func (c *StigChecklist) FindingIDs() []uuid.UUID { return slices.Clone(c.findingIDs) }

// ImportFrom replaces asset metadata and the raw payload with the content of
// scan. Benchmark fields are only replaced when the scan carries them.
func (c *StigChecklist) ImportFrom(scan *NormalizedScan) error {
	if scan == nil || len(scan.Raw) == 0 {
		return NewValidationError("raw", "import requires raw scan data")
	}
	if c.state == StateArchived {
		return NewValidationError("state", "cannot import into an archived checklist")
	}

	c.format = scan.Format
	c.asset = scan.Asset
	c.raw = slices.Clone(scan.Raw)

	b := scan.PrimaryBenchmark()
	if b.STIGID != "" {
		c.benchmark.STIGID = b.STIGID
	}
	if b.Title != "" {
		c.benchmark.Title = b.Title
	}
	if b.Version != "" {
		c.benchmark.Version = b.Version
	}
	if b.Release != "" {
		c.benchmark.Release = b.Release
	}
	if b.ReleaseInfo != "" {
		c.benchmark.ReleaseInfo = b.ReleaseInfo
	}
	if b.XCCDFVersion != "" {
		c.benchmark.XCCDFVersion = b.XCCDFVersion
	}

	now := time.Now().UTC()
	c.importedAt = &now
	c.Raise(AggregateChecklist, ChecklistImported{
		Format:   scan.Format,
		HostName: scan.Asset.HostName,
		STIGID:   c.benchmark.STIGID,
		Version:  c.benchmark.Version,
		Release:  c.benchmark.Release,
		RawBytes: len(scan.Raw),
	})
	return nil
}

// Activate moves a draft checklist with imported data to active.
func (c *StigChecklist) Activate() error {
	if c.state != StateDraft {
		return NewValidationError("state", "only a draft checklist can be activated, current state is "+string(c.state))
	}
	if !c.HasRawData() {
		return NewValidationError("raw", "checklist has no imported data")
	}
	c.state = StateActive
	c.Raise(AggregateChecklist, ChecklistActivated{})
	return nil
}

// Archive moves an active checklist to archived. In any other state it does
// nothing and returns false.
func (c *StigChecklist) Archive() bool {
	if c.state != StateActive {
		return false
	}
	c.state = StateArchived
	c.Raise(AggregateChecklist, ChecklistArchived{})
	return true
}

// AssignToSystem sets the system reference. The group's own checklist set is
// updated separately by the caller.
func (c *StigChecklist) AssignToSystem(systemID uuid.UUID) bool {
	if c.systemID != nil && *c.systemID == systemID {
		return false
	}
	prev := c.SystemID()
	c.systemID = &systemID
	c.Raise(AggregateChecklist, ChecklistAssignedToSystem{SystemID: systemID, PreviousSystemID: prev})
	return true
}

// Unassign clears the system reference.
func (c *StigChecklist) Unassign() bool {
	if c.systemID == nil {
		return false
	}
	prev := *c.systemID
	c.systemID = nil
	c.Raise(AggregateChecklist, ChecklistUnassignedFromSystem{SystemID: prev})
	return true
}

// AddFinding appends a finding id unless it is already owned.
func (c *StigChecklist) AddFinding(id uuid.UUID) bool {
	if slices.Contains(c.findingIDs, id) {
		return false
	}
	c.findingIDs = append(c.findingIDs, id)
	c.Touch(time.Now().UTC())
	return true
}

// ChecklistSnapshot is the persisted state of a checklist.
type ChecklistSnapshot struct {
	ID         uuid.UUID
	Version    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Name       string
	State      LifecycleState
	Format     SourceFormat
	Asset      AssetInfo
	Benchmark  BenchmarkInfo
	Raw        []byte
	SystemID   *uuid.UUID
	FindingIDs []uuid.UUID
	ImportedAt *time.Time
}

func (c *StigChecklist) Snapshot() ChecklistSnapshot {
	return ChecklistSnapshot{
		ID:         c.ID(),
		Version:    c.Version(),
		CreatedAt:  c.CreatedAt(),
		UpdatedAt:  c.UpdatedAt(),
		Name:       c.name,
		State:      c.state,
		Format:     c.format,
		Asset:      c.asset,
		Benchmark:  c.benchmark,
		Raw:        slices.Clone(c.raw),
		SystemID:   c.SystemID(),
		FindingIDs: slices.Clone(c.findingIDs),
		ImportedAt: c.importedAt,
	}
}

// RehydrateChecklist rebuilds a checklist loaded from storage.
func RehydrateChecklist(s ChecklistSnapshot) *StigChecklist {
	c := &StigChecklist{
		AggregateRoot: eventsource.RestoreAggregateRoot(s.ID, s.Version, s.CreatedAt, s.UpdatedAt),
		name:          s.Name,
		state:         s.State,
		format:        s.Format,
		asset:         s.Asset,
		benchmark:     s.Benchmark,
		raw:           slices.Clone(s.Raw),
		findingIDs:    slices.Clone(s.FindingIDs),
		importedAt:    s.ImportedAt,
	}
	if s.SystemID != nil {
		id := *s.SystemID
		c.systemID = &id
	}
	return c
}
