// Package eventstore implements eventsource.Store on the domain_events table.
package eventstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/heartmarshall/grc-backend/internal/adapter/postgres"
	"github.com/heartmarshall/grc-backend/internal/eventsource"
)

const table = "domain_events"

var insertColumns = []string{
	"id", "aggregate_id", "aggregate_type", "aggregate_version", "sequence",
	"event_type", "payload", "occurred_at",
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store is an append-only event log backed by PostgreSQL. Positions come
// from the BIGSERIAL primary key, so they are strictly increasing in
// commit order within a single writer.
type Store struct {
	db       postgres.Querier
	tx       txManager
	registry *eventsource.Registry
}

var _ eventsource.Store = (*Store)(nil)

// New creates a Store. Payloads are encoded and decoded through registry.
func New(db postgres.Querier, tx txManager, registry *eventsource.Registry) *Store {
	return &Store{db: db, tx: tx, registry: registry}
}

type row struct {
	Position         int64     `db:"position"`
	ID               string    `db:"id"`
	AggregateID      uuid.UUID `db:"aggregate_id"`
	AggregateType    string    `db:"aggregate_type"`
	AggregateVersion int       `db:"aggregate_version"`
	Sequence         int       `db:"sequence"`
	EventType        string    `db:"event_type"`
	Payload          []byte    `db:"payload"`
	OccurredAt       time.Time `db:"occurred_at"`
}

// Append implements eventsource.Store. Either all events are appended or
// none.
func (s *Store) Append(ctx context.Context, events ...eventsource.Event) error {
	if len(events) == 0 {
		return nil
	}
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		q := postgres.QuerierFromCtx(ctx, s.db)
		for _, e := range events {
			if err := s.insert(ctx, q, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) insert(ctx context.Context, q postgres.Querier, e eventsource.Event) error {
	payload, err := s.registry.Encode(e.Payload)
	if err != nil {
		return err
	}

	sql, args, err := postgres.Builder().Insert(table).Columns(insertColumns...).Values(
		e.ID, e.AggregateID, e.AggregateType, e.AggregateVersion, e.Sequence,
		e.Type, payload, e.OccurredAt,
	).Suffix("RETURNING position").ToSql()
	if err != nil {
		return fmt.Errorf("build event insert: %w", err)
	}

	var position int64
	if err := q.QueryRow(ctx, sql, args...).Scan(&position); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("append event %s: %w", e.ID, eventsource.ErrDuplicateEvent)
		}
		return fmt.Errorf("append event %s: %w", e.ID, err)
	}
	return nil
}

// Load implements eventsource.Store.
func (s *Store) Load(ctx context.Context, f eventsource.Filter) ([]eventsource.Event, error) {
	sb := postgres.Builder().
		Select("position", "id", "aggregate_id", "aggregate_type", "aggregate_version",
			"sequence", "event_type", "payload", "occurred_at").
		From(table).
		Where(squirrel.Gt{"position": f.AfterPosition}).
		OrderBy("position")
	if f.AggregateID != nil {
		sb = sb.Where(squirrel.Eq{"aggregate_id": *f.AggregateID})
	}
	if f.AggregateType != "" {
		sb = sb.Where(squirrel.Eq{"aggregate_type": f.AggregateType})
	}
	if len(f.EventTypes) > 0 {
		sb = sb.Where(squirrel.Eq{"event_type": f.EventTypes})
	}
	if !f.Since.IsZero() {
		sb = sb.Where(squirrel.GtOrEq{"occurred_at": f.Since})
	}
	if f.Limit > 0 {
		sb = sb.Limit(uint64(f.Limit))
	}

	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build event select: %w", err)
	}

	var rows []row
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, s.db), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	out := make([]eventsource.Event, len(rows))
	for i, rw := range rows {
		payload, err := s.registry.Decode(rw.EventType, rw.Payload)
		if err != nil {
			return nil, fmt.Errorf("event %s at position %d: %w", rw.ID, rw.Position, err)
		}
		out[i] = eventsource.Event{
			ID:               rw.ID,
			AggregateID:      rw.AggregateID,
			AggregateType:    rw.AggregateType,
			AggregateVersion: rw.AggregateVersion,
			Sequence:         rw.Sequence,
			OccurredAt:       rw.OccurredAt,
			Type:             rw.EventType,
			Payload:          payload,
			Position:         rw.Position,
		}
	}
	return out, nil
}
