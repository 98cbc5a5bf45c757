package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func newTestFinding(t *testing.T) *VulnerabilityFinding {
	t.Helper()
	f, err := NewFinding(uuid.New(), FindingInput{
		Rule:     RuleDetails{VulnID: "V-1001", RuleID: "SV-1001r1_rule", Title: "Test rule"},
		Severity: SeverityCat2,
		Status:   StatusOpen,
		CCIRefs:  []string{"CCI-000001", "CCI-000001"},
	})
	if err != nil {
		t.Fatalf("NewFinding: %v", err)
	}
	f.ClearPendingEvents()
	return f
}

func TestNewFinding_RaisesCreated(t *testing.T) {
	t.Parallel()

	checklistID := uuid.New()
	f, err := NewFinding(checklistID, FindingInput{
		Rule:     RuleDetails{VulnID: "V-1"},
		Severity: SeverityCat1,
		Status:   StatusOpen,
	})
	if err != nil {
		t.Fatalf("NewFinding: %v", err)
	}

	events := f.PendingEvents()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	created, ok := events[0].Payload.(FindingCreated)
	if !ok {
		t.Fatalf("payload type = %T, want FindingCreated", events[0].Payload)
	}
	if created.ChecklistID != checklistID {
		t.Errorf("ChecklistID = %s, want %s", created.ChecklistID, checklistID)
	}
	if events[0].AggregateVersion != 1 || events[0].AggregateID != f.ID() {
		t.Errorf("event not stamped with aggregate identity: %+v", events[0])
	}
}

func TestNewFinding_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   FindingInput
	}{
		{"no rule id", FindingInput{Severity: SeverityCat2, Status: StatusOpen}},
		{"bad status", FindingInput{Rule: RuleDetails{VulnID: "V-1"}, Severity: SeverityCat2, Status: "Open"}},
		{"bad severity", FindingInput{Rule: RuleDetails{VulnID: "V-1"}, Severity: "cat9", Status: StatusOpen}},
		{"override without justification", FindingInput{
			Rule: RuleDetails{VulnID: "V-1"}, Severity: SeverityCat2, Status: StatusOpen, SeverityOverride: SeverityCat1,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewFinding(uuid.New(), tt.in)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestFinding_CCIRefsDeduplicated(t *testing.T) {
	t.Parallel()

	f := newTestFinding(t)
	if got := f.CCIRefs(); len(got) != 1 {
		t.Fatalf("CCIRefs() = %v, want one entry", got)
	}

	if err := f.AddCCIReference("CCI-000001"); err != nil {
		t.Fatalf("AddCCIReference: %v", err)
	}
	if len(f.PendingEvents()) != 0 {
		t.Error("adding an existing reference raised an event")
	}

	if err := f.AddCCIReference("CCI-000366"); err != nil {
		t.Fatalf("AddCCIReference: %v", err)
	}
	if len(f.CCIRefs()) != 2 || len(f.PendingEvents()) != 1 {
		t.Errorf("refs = %v, events = %d", f.CCIRefs(), len(f.PendingEvents()))
	}

	if err := f.AddCCIReference("  "); !errors.Is(err, ErrValidation) {
		t.Errorf("empty reference err = %v, want ErrValidation", err)
	}
}

func TestFinding_UpdateStatus(t *testing.T) {
	t.Parallel()

	f := newTestFinding(t)

	if err := f.UpdateStatus("closed", "", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if err := f.UpdateStatus(StatusOpen, "", ""); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if len(f.PendingEvents()) != 0 {
		t.Fatal("an unchanged status raised an event")
	}

	if err := f.UpdateStatus(StatusNotAFinding, "configured", "checked by ISSO"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	events := f.PendingEvents()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	changed := events[0].Payload.(FindingStatusChanged)
	if changed.OldStatus != StatusOpen || changed.NewStatus != StatusNotAFinding {
		t.Errorf("unexpected payload %+v", changed)
	}
	if f.FindingDetails() != "configured" || f.Comments() != "checked by ISSO" {
		t.Errorf("details/comments not stored")
	}
}

func TestFinding_SeverityOverrideRequiresJustification(t *testing.T) {
	t.Parallel()

	f := newTestFinding(t)

	err := f.SetSeverityOverride(SeverityCat1, "")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Errors[0].Field != "severity_justification" {
		t.Errorf("unexpected validation error: %v", err)
	}
	if f.VulnerabilityStatus().HasOverride() {
		t.Fatal("override stored despite validation failure")
	}

	if err := f.SetSeverityOverride(SeverityCat1, "compensating control removed"); err != nil {
		t.Fatalf("SetSeverityOverride: %v", err)
	}
	if got := f.VulnerabilityStatus().DisplaySeverityOverride(); got != "CAT I - High" {
		t.Errorf("DisplaySeverityOverride() = %q, want CAT I - High", got)
	}
	if f.EffectiveSeverity() != SeverityCat1 {
		t.Errorf("EffectiveSeverity() = %s, want cat1", f.EffectiveSeverity())
	}
	if f.Severity() != SeverityCat2 {
		t.Errorf("base severity changed to %s", f.Severity())
	}
}

func TestFinding_ClearSeverityOverride(t *testing.T) {
	t.Parallel()

	f := newTestFinding(t)
	if err := f.SetSeverityOverride(SeverityCat3, "mitigated"); err != nil {
		t.Fatalf("SetSeverityOverride: %v", err)
	}
	f.ClearPendingEvents()

	if err := f.SetSeverityOverride("", ""); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if f.VulnerabilityStatus().HasOverride() || f.VulnerabilityStatus().SeverityJustification != "" {
		t.Errorf("override not cleared: %+v", f.VulnerabilityStatus())
	}
	if f.EffectiveSeverity() != SeverityCat2 {
		t.Errorf("EffectiveSeverity() = %s, want cat2", f.EffectiveSeverity())
	}
	if len(f.PendingEvents()) != 1 {
		t.Errorf("expected 1 event, got %d", len(f.PendingEvents()))
	}

	if err := f.SetSeverityOverride("", ""); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if len(f.PendingEvents()) != 1 {
		t.Error("clearing an absent override raised an event")
	}
}

func TestFinding_SetSeverityOverride_InvalidValue(t *testing.T) {
	t.Parallel()

	f := newTestFinding(t)
	if err := f.SetSeverityOverride("critical", "because"); !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestFinding_ApplyScanResult(t *testing.T) {
	t.Parallel()

	f := newTestFinding(t)

	err := f.ApplyScanResult(ScannedFinding{
		Rule:     RuleDetails{VulnID: "V-1001", Title: "Renamed rule"},
		Severity: SeverityCat1,
		Status:   StatusNotAFinding,
		CCIRefs:  []string{"CCI-000001", "CCI-002"},
	})
	if err != nil {
		t.Fatalf("ApplyScanResult: %v", err)
	}

	if f.Rule().Title != "Renamed rule" || f.Rule().RuleID != "SV-1001r1_rule" {
		t.Errorf("rule not merged: %+v", f.Rule())
	}
	if f.Severity() != SeverityCat1 || f.Status() != StatusNotAFinding {
		t.Errorf("severity/status = %s/%s", f.Severity(), f.Status())
	}

	var types []string
	for _, e := range f.PendingEvents() {
		types = append(types, e.Type)
	}
	want := []string{EventFindingSeverityChanged, EventFindingStatusChanged, EventFindingCCIReferenceAdded}
	if len(types) != len(want) {
		t.Fatalf("events = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, types[i], want[i])
		}
	}
}

func TestFinding_SnapshotRehydrate(t *testing.T) {
	t.Parallel()

	f := newTestFinding(t)
	_ = f.SetSeverityOverride(SeverityCat3, "mitigated")
	f.MarkPersisted(2)

	got := RehydrateFinding(f.Snapshot())

	if got.ID() != f.ID() || got.Version() != 2 {
		t.Errorf("identity = %s/v%d", got.ID(), got.Version())
	}
	if got.EffectiveSeverity() != SeverityCat3 || got.ChecklistID() != f.ChecklistID() {
		t.Errorf("state lost: %+v", got.Snapshot())
	}
	if len(got.PendingEvents()) != 0 {
		t.Error("rehydrated finding has pending events")
	}
}

func TestRuleDetails_ScopedKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rule RuleDetails
		want string
	}{
		{name: "no stig reference", rule: RuleDetails{VulnID: "V-1"}, want: "V-1"},
		{name: "title only", rule: RuleDetails{VulnID: "V-1", STIGRef: "Apache 2.4 STIG"}, want: "Apache 2.4 STIG/V-1"},
		{
			name: "release suffix dropped",
			rule: RuleDetails{VulnID: "V-1", STIGRef: "Apache 2.4 STIG :: Version 2, Release: 3 Benchmark Date: 24 Jan 2024"},
			want: "Apache 2.4 STIG/V-1",
		},
		{name: "rule id fallback", rule: RuleDetails{RuleID: "SV-9_rule", STIGRef: "RHEL 9 STIG"}, want: "RHEL 9 STIG/SV-9_rule"},
		{name: "no key", rule: RuleDetails{STIGRef: "RHEL 9 STIG"}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rule.ScopedKey(); got != tt.want {
				t.Errorf("ScopedKey() = %q, want %q", got, tt.want)
			}
		})
	}
}
