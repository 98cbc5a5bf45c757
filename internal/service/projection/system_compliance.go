package projection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/heartmarshall/grc-backend/internal/domain"
)

// RecalculateSystem sums the scores of every checklist the group owns and
// stores the result as the group's compliance stats. A concurrent save of
// the group is retried against a freshly loaded copy.
func (e *Engine) RecalculateSystem(ctx context.Context, systemID uuid.UUID) (group *domain.SystemGroup, err error) {
	start := time.Now()
	defer func() {
		if err != nil {
			err = &domain.ProjectionError{Projection: projectionSystem, AggregateID: systemID, Err: err}
			e.log.ErrorContext(ctx, "recalculate system compliance",
				slog.String("system_id", systemID.String()),
				slog.String("error", err.Error()),
			)
		}
		e.observe(projectionSystem, start, err)
	}()

	operation := func() error {
		g, err := e.recalculateSystemOnce(ctx, systemID)
		if err != nil {
			var ce *domain.ConcurrencyError
			if errors.As(err, &ce) {
				return err
			}
			return backoff.Permanent(err)
		}
		group = g
		return nil
	}

	notify := func(err error, wait time.Duration) {
		e.log.WarnContext(ctx, "system save conflict, retrying",
			slog.String("system_id", systemID.String()),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(e.cfg.RetryInterval), uint64(e.cfg.ConflictRetries)),
		ctx,
	)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}
	return group, nil
}

func (e *Engine) recalculateSystemOnce(ctx context.Context, systemID uuid.UUID) (*domain.SystemGroup, error) {
	g, err := e.systems.GetByID(ctx, systemID)
	if err != nil {
		return nil, fmt.Errorf("load system: %w", err)
	}

	ids := g.ChecklistIDs()
	scores, err := e.scores.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load scores: %w", err)
	}

	var stats domain.ComplianceStats
	for _, id := range ids {
		s, ok := scores[id]
		if !ok {
			s = domain.NewChecklistScore(id)
		}
		stats.AddScore(s)
	}

	changed, err := g.UpdateComplianceStats(stats)
	if err != nil {
		return nil, err
	}
	if !changed {
		return g, nil
	}
	if err := e.systems.Save(ctx, g); err != nil {
		return nil, fmt.Errorf("save system: %w", err)
	}
	e.dispatcher.Commit(ctx, g)
	return g, nil
}
