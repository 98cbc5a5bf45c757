package projection

import (
	"context"

	"github.com/google/uuid"

	"github.com/heartmarshall/grc-backend/internal/domain"
	"github.com/heartmarshall/grc-backend/internal/eventsource"
)

// Subscribe registers the engine's handlers on the bus.
func (e *Engine) Subscribe() {
	for _, t := range []string{
		domain.EventFindingCreated,
		domain.EventFindingStatusChanged,
		domain.EventFindingSeverityOverridden,
		domain.EventFindingSeverityChanged,
		domain.EventChecklistImported,
	} {
		e.bus.Subscribe(t, "projection.checklist_score", e.onChecklistChanged)
	}
	for _, t := range []string{
		domain.EventChecklistScoreUpdated,
		domain.EventSystemChecklistAdded,
		domain.EventSystemChecklistRemoved,
	} {
		e.bus.Subscribe(t, "projection.system_compliance", e.onSystemChanged)
	}
}

func (e *Engine) onChecklistChanged(ctx context.Context, ev eventsource.Event) error {
	var checklistID uuid.UUID
	switch p := ev.Payload.(type) {
	case domain.FindingCreated:
		checklistID = p.ChecklistID
	case domain.FindingStatusChanged:
		checklistID = p.ChecklistID
	case domain.FindingSeverityOverridden:
		checklistID = p.ChecklistID
	case domain.FindingSeverityChanged:
		checklistID = p.ChecklistID
	case domain.ChecklistImported:
		checklistID = ev.AggregateID
	default:
		return nil
	}
	_, err := e.RecalculateChecklist(ctx, checklistID)
	return err
}

func (e *Engine) onSystemChanged(ctx context.Context, ev eventsource.Event) error {
	var systemID uuid.UUID
	switch p := ev.Payload.(type) {
	case domain.ChecklistScoreUpdated:
		if p.SystemID == nil {
			return nil
		}
		systemID = *p.SystemID
	case domain.SystemChecklistAdded, domain.SystemChecklistRemoved:
		systemID = ev.AggregateID
	default:
		return nil
	}
	_, err := e.RecalculateSystem(ctx, systemID)
	return err
}
