package testhelper

import (
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v2"
)

// NewMockQuerier returns a pgxmock pool usable wherever a postgres.Querier
// or postgres.Beginner is expected. The pool is closed via t.Cleanup.
func NewMockQuerier(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("testhelper: create pgxmock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

// ExpectationsWereMet fails the test when an expected statement was not run.
func ExpectationsWereMet(t *testing.T, mock pgxmock.PgxPoolIface) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

// AnyArgs returns n pgxmock.AnyArg matchers followed by the exact values in
// tail, for statements whose leading placeholders are not under test.
func AnyArgs(n int, tail ...any) []any {
	args := make([]any, 0, n+len(tail))
	for range n {
		args = append(args, pgxmock.AnyArg())
	}
	return append(args, tail...)
}
