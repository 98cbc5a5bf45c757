package score

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/heartmarshall/grc-backend/internal/adapter/postgres/testhelper"
	"github.com/heartmarshall/grc-backend/internal/domain"
)

func TestRepo_Save_Upserts(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(mock pgxmock.PgxPoolIface, s *domain.ChecklistScore)
		wantErr error
	}{
		{
			name: "stored",
			setup: func(mock pgxmock.PgxPoolIface, s *domain.ChecklistScore) {
				mock.ExpectExec(`INSERT INTO checklist_scores .* ON CONFLICT \(checklist_id\) DO UPDATE`).
					WithArgs(s.ChecklistID, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, pgxmock.AnyArg()).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "checklist gone",
			setup: func(mock pgxmock.PgxPoolIface, s *domain.ChecklistScore) {
				mock.ExpectExec(`INSERT INTO checklist_scores`).
					WithArgs(testhelper.AnyArgs(len(columns))...).
					WillReturnError(&pgconn.PgError{Code: "23503"})
			},
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testhelper.NewMockQuerier(t)
			repo := New(mock)
			s := domain.NewChecklistScore(uuid.New())
			s.Add(domain.SeverityCat1, domain.StatusOpen)
			s.LastCalculatedAt = time.Now().UTC()
			tt.setup(mock, s)

			err := repo.Save(context.Background(), s)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Save() unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Save() error = %v, want %v", err, tt.wantErr)
			}
			testhelper.ExpectationsWereMet(t, mock)
		})
	}
}

func TestRepo_GetMany(t *testing.T) {
	mock := testhelper.NewMockQuerier(t)
	repo := New(mock)

	a, b := uuid.New(), uuid.New()
	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT .* FROM checklist_scores WHERE checklist_id IN \(\$1,\$2\)`).
		WithArgs(a, b).
		WillReturnRows(pgxmock.NewRows(columns).AddRow(a, 1, 2, 0, 0, 3, 0, 0, 1, 0, 0, 0, 4, now))

	got, err := repo.GetMany(context.Background(), []uuid.UUID{a, b})
	if err != nil {
		t.Fatalf("GetMany() unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("GetMany() returned %d scores, want 1", len(got))
	}
	s := got[a]
	if s.TotalOpen() != 4 || s.TotalFindings() != 11 {
		t.Errorf("TotalOpen() = %d, TotalFindings() = %d, want 4 and 11", s.TotalOpen(), s.TotalFindings())
	}
	if _, ok := got[b]; ok {
		t.Error("checklist without a score must be absent")
	}
	testhelper.ExpectationsWereMet(t, mock)
}

func TestRepo_GetMany_EmptyInputSkipsQuery(t *testing.T) {
	mock := testhelper.NewMockQuerier(t)
	repo := New(mock)

	got, err := repo.GetMany(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("GetMany(nil) = %v, %v", got, err)
	}
	testhelper.ExpectationsWereMet(t, mock)
}

func TestRepo_Get_NotFound(t *testing.T) {
	mock := testhelper.NewMockQuerier(t)
	repo := New(mock)

	id := uuid.New()
	mock.ExpectQuery(`SELECT .* FROM checklist_scores`).
		WithArgs(id.String()).
		WillReturnRows(pgxmock.NewRows(columns))

	_, err := repo.Get(context.Background(), id)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
	testhelper.ExpectationsWereMet(t, mock)
}
