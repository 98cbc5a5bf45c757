package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Builder returns a squirrel statement builder using $n placeholders.
func Builder() squirrel.StatementBuilderType { return psql }

// ExecVersioned runs a compare-and-swap UPDATE built by the caller. The
// statement must filter on id and version; when it matches no row the cause
// is reported as domain.ErrNotFound or a *domain.ConcurrencyError.
func ExecVersioned(ctx context.Context, q Querier, upd squirrel.UpdateBuilder, table, entity string, id uuid.UUID, expected int) error {
	sql, args, err := upd.ToSql()
	if err != nil {
		return fmt.Errorf("build %s update: %w", entity, err)
	}
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return MapError(err, entity, id)
	}
	if tag.RowsAffected() == 0 {
		return StaleVersion(ctx, q, table, entity, id, expected)
	}
	return nil
}

// ExecInsert runs an INSERT built by the caller.
func ExecInsert(ctx context.Context, q Querier, ins squirrel.InsertBuilder, entity string, id uuid.UUID) error {
	sql, args, err := ins.ToSql()
	if err != nil {
		return fmt.Errorf("build %s insert: %w", entity, err)
	}
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return MapError(err, entity, id)
	}
	return nil
}
