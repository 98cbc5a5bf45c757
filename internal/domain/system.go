package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/grc-backend/internal/eventsource"
)

// ComplianceStats are the five rollup counters of a system group. They are
// derived from the scores of the group's checklists.
type ComplianceStats struct {
	TotalChecklists int `json:"total_checklists"`
	TotalOpen       int `json:"total_open"`
	Cat1Open        int `json:"cat1_open"`
	Cat2Open        int `json:"cat2_open"`
	Cat3Open        int `json:"cat3_open"`
}

// AddScore adds one checklist score to the rollup.
func (s *ComplianceStats) AddScore(score *ChecklistScore) {
	s.TotalChecklists++
	s.TotalOpen += score.TotalOpen()
	s.Cat1Open += score.Cat1.Open
	s.Cat2Open += score.Cat2.Open
	s.Cat3Open += score.Cat3.Open
}

func (s ComplianceStats) RiskScore() int {
	return RiskScore(s.Cat1Open, s.Cat2Open, s.Cat3Open)
}

func (s ComplianceStats) validate() error {
	var errs []FieldError
	check := func(field string, v int) {
		if v < 0 {
			errs = append(errs, FieldError{Field: field, Message: "must not be negative"})
		}
	}
	check("total_checklists", s.TotalChecklists)
	check("total_open", s.TotalOpen)
	check("cat1_open", s.Cat1Open)
	check("cat2_open", s.Cat2Open)
	check("cat3_open", s.Cat3Open)
	if len(errs) > 0 {
		return NewValidationErrors(errs)
	}
	return nil
}

// SystemGroup owns sets of checklist, asset and scan ids and holds the
// compliance rollup over its checklists.
type SystemGroup struct {
	eventsource.AggregateRoot

	name           string
	acronym        string
	description    string
	state          LifecycleState
	checklistIDs   []uuid.UUID
	assetIDs       []uuid.UUID
	scanIDs        []uuid.UUID
	stats          ComplianceStats
	statsUpdatedAt *time.Time
}

// NewSystemGroup creates a draft group and raises SystemGroupCreated.
func NewSystemGroup(name, acronym string) (*SystemGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewValidationError("name", "required")
	}
	acronym = strings.TrimSpace(acronym)
	g := &SystemGroup{
		AggregateRoot: eventsource.NewAggregateRoot(uuid.New(), time.Now().UTC()),
		name:          name,
		acronym:       acronym,
		state:         StateDraft,
	}
	g.Raise(AggregateSystemGroup, SystemGroupCreated{Name: name, Acronym: acronym})
	return g, nil
}

func (g *SystemGroup) Name() string               { return g.name }
func (g *SystemGroup) Acronym() string            { return g.acronym }
func (g *SystemGroup) Description() string        { return g.description }
func (g *SystemGroup) State() LifecycleState      { return g.state }
func (g *SystemGroup) Stats() ComplianceStats     { return g.stats }
func (g *SystemGroup) StatsUpdatedAt() *time.Time { return g.statsUpdatedAt }
func (g *SystemGroup) ChecklistIDs() []uuid.UUID  { return slices.Clone(g.checklistIDs) }
func (g *SystemGroup) AssetIDs() []uuid.UUID      { return slices.Clone(g.assetIDs) }
func (g *SystemGroup) ScanIDs() []uuid.UUID       { return slices.Clone(g.scanIDs) }

// HasChecklist reports whether id is in the owned checklist set.
func (g *SystemGroup) HasChecklist(id uuid.UUID) bool { return slices.Contains(g.checklistIDs, id) }

// RiskScore is the weighted sum of the group's open findings.
func (g *SystemGroup) RiskScore() int { return g.stats.RiskScore() }

// SetDescription changes the free-text description.
func (g *SystemGroup) SetDescription(d string) {
	g.description = strings.TrimSpace(d)
	g.Touch(time.Now().UTC())
}

func (g *SystemGroup) AddChecklist(id uuid.UUID) bool {
	if !addID(&g.checklistIDs, id) {
		return false
	}
	g.Raise(AggregateSystemGroup, SystemChecklistAdded{ChecklistID: id})
	return true
}

func (g *SystemGroup) RemoveChecklist(id uuid.UUID) bool {
	if !removeID(&g.checklistIDs, id) {
		return false
	}
	g.Raise(AggregateSystemGroup, SystemChecklistRemoved{ChecklistID: id})
	return true
}

func (g *SystemGroup) AddAsset(id uuid.UUID) bool {
	if !addID(&g.assetIDs, id) {
		return false
	}
	g.Raise(AggregateSystemGroup, SystemAssetAdded{AssetID: id})
	return true
}

func (g *SystemGroup) RemoveAsset(id uuid.UUID) bool {
	if !removeID(&g.assetIDs, id) {
		return false
	}
	g.Raise(AggregateSystemGroup, SystemAssetRemoved{AssetID: id})
	return true
}

func (g *SystemGroup) AddScan(id uuid.UUID) bool {
	if !addID(&g.scanIDs, id) {
		return false
	}
	g.Raise(AggregateSystemGroup, SystemScanAdded{ScanID: id})
	return true
}

// RemoveScan drops a scan id, used when the scan moves to another group.
func (g *SystemGroup) RemoveScan(id uuid.UUID) bool {
	if !removeID(&g.scanIDs, id) {
		return false
	}
	g.Raise(AggregateSystemGroup, SystemScanRemoved{ScanID: id})
	return true
}

// Activate moves a draft group to active.
func (g *SystemGroup) Activate() error {
	if g.state != StateDraft {
		return NewValidationError("state", "only a draft system group can be activated, current state is "+string(g.state))
	}
	g.state = StateActive
	g.Raise(AggregateSystemGroup, SystemGroupActivated{})
	return nil
}

// Archive moves an active group to archived and returns false in any other
// state.
func (g *SystemGroup) Archive() bool {
	if g.state != StateActive {
		return false
	}
	g.state = StateArchived
	g.Raise(AggregateSystemGroup, SystemGroupArchived{})
	return true
}

// UpdateComplianceStats replaces the rollup counters. It is the only way the
// counters change. It reports whether the counters differ from the current
// ones; unchanged counters raise no event.
func (g *SystemGroup) UpdateComplianceStats(stats ComplianceStats) (bool, error) {
	if err := stats.validate(); err != nil {
		return false, err
	}
	now := time.Now().UTC()
	if stats == g.stats && g.statsUpdatedAt != nil {
		return false, nil
	}
	g.stats = stats
	g.statsUpdatedAt = &now
	g.Raise(AggregateSystemGroup, SystemComplianceUpdated{Stats: stats})
	return true, nil
}

func addID(set *[]uuid.UUID, id uuid.UUID) bool {
	if slices.Contains(*set, id) {
		return false
	}
	*set = append(*set, id)
	return true
}

func removeID(set *[]uuid.UUID, id uuid.UUID) bool {
	i := slices.Index(*set, id)
	if i < 0 {
		return false
	}
	*set = slices.Delete(*set, i, i+1)
	return true
}

// SystemGroupSnapshot is the persisted state of a system group.
type SystemGroupSnapshot struct {
	ID             uuid.UUID
	Version        int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Name           string
	Acronym        string
	Description    string
	State          LifecycleState
	ChecklistIDs   []uuid.UUID
	AssetIDs       []uuid.UUID
	ScanIDs        []uuid.UUID
	Stats          ComplianceStats
	StatsUpdatedAt *time.Time
}

func (g *SystemGroup) Snapshot() SystemGroupSnapshot {
	return SystemGroupSnapshot{
		ID:             g.ID(),
		Version:        g.Version(),
		CreatedAt:      g.CreatedAt(),
		UpdatedAt:      g.UpdatedAt(),
		Name:           g.name,
		Acronym:        g.acronym,
		Description:    g.description,
		State:          g.state,
		ChecklistIDs:   slices.Clone(g.checklistIDs),
		AssetIDs:       slices.Clone(g.assetIDs),
		ScanIDs:        slices.Clone(g.scanIDs),
		Stats:          g.stats,
		StatsUpdatedAt: g.statsUpdatedAt,
	}
}

// RehydrateSystemGroup rebuilds a group loaded from storage.
func RehydrateSystemGroup(s SystemGroupSnapshot) *SystemGroup {
	return &SystemGroup{
		AggregateRoot:  eventsource.RestoreAggregateRoot(s.ID, s.Version, s.CreatedAt, s.UpdatedAt),
		name:           s.Name,
		acronym:        s.Acronym,
		description:    s.Description,
		state:          s.State,
		checklistIDs:   slices.Clone(s.ChecklistIDs),
		assetIDs:       slices.Clone(s.AssetIDs),
		scanIDs:        slices.Clone(s.ScanIDs),
		stats:          s.Stats,
		statsUpdatedAt: s.StatsUpdatedAt,
	}
}
