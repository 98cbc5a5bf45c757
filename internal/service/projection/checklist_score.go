package projection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/grc-backend/internal/domain"
	"github.com/heartmarshall/grc-backend/internal/eventsource"
)

// RecalculateChecklist rebuilds the score of one checklist from all of its
// findings, persists it and publishes ChecklistScoreUpdated. Rerunning it
// without intervening changes yields the same counters.
func (e *Engine) RecalculateChecklist(ctx context.Context, checklistID uuid.UUID) (score *domain.ChecklistScore, err error) {
	start := time.Now()
	defer func() {
		if err != nil {
			err = &domain.ProjectionError{Projection: projectionChecklist, AggregateID: checklistID, Err: err}
			e.log.ErrorContext(ctx, "recalculate checklist score",
				slog.String("checklist_id", checklistID.String()),
				slog.String("error", err.Error()),
			)
		}
		e.observe(projectionChecklist, start, err)
	}()

	checklist, err := e.checklists.GetByID(ctx, checklistID)
	if err != nil {
		return nil, fmt.Errorf("load checklist: %w", err)
	}

	findings, err := e.findings.ListByChecklist(ctx, checklistID)
	if err != nil {
		return nil, fmt.Errorf("list findings: %w", err)
	}

	score, err = e.scores.Get(ctx, checklistID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		score = domain.NewChecklistScore(checklistID)
	case err != nil:
		return nil, fmt.Errorf("load score: %w", err)
	}

	score.ResetCounts()
	for _, f := range findings {
		score.Add(f.EffectiveSeverity(), f.Status())
	}
	score.LastCalculatedAt = time.Now().UTC()

	if err := e.scores.Save(ctx, score); err != nil {
		return nil, fmt.Errorf("save score: %w", err)
	}

	e.bus.Publish(ctx, eventsource.NewEvent(domain.AggregateChecklistScore, checklistID, checklist.Version(), domain.ChecklistScoreUpdated{
		ChecklistID:          checklistID,
		SystemID:             checklist.SystemID(),
		TotalFindings:        score.TotalFindings(),
		TotalOpen:            score.TotalOpen(),
		CompliancePercentage: score.CompliancePercentage(),
		RiskScore:            score.RiskScore(),
	}))

	e.log.DebugContext(ctx, "checklist score recalculated",
		slog.String("checklist_id", checklistID.String()),
		slog.Int("findings", score.TotalFindings()),
		slog.Int("open", score.TotalOpen()),
	)
	return score, nil
}
