package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/heartmarshall/grc-backend/internal/adapter/postgres/testhelper"
	"github.com/heartmarshall/grc-backend/internal/config"
	"github.com/heartmarshall/grc-backend/internal/domain"
	"github.com/heartmarshall/grc-backend/internal/service/checklist"
	"github.com/heartmarshall/grc-backend/internal/service/system"
)

func offlineConfig() *config.Config {
	return &config.Config{
		Log:        config.LogConfig{Level: "info", Format: "text"},
		Projection: config.ProjectionConfig{ConflictRetries: 2, RetryInterval: time.Millisecond, ReplayPageSize: 10},
		Import:     config.ImportConfig{MaxFileBytes: 1 << 20, Workers: 2},
		Metrics:    config.MetricsConfig{Enabled: true, Namespace: "grc_test"},
	}
}

func TestBuild_InMemoryEndToEnd(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	b, err := Build(ctx, offlineConfig(), logger)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(b.Close)

	if b.Pool != nil {
		t.Fatal("empty DSN must select the in-memory backend")
	}
	for _, c := range b.HealthChecks() {
		if c.Backend != "memory" {
			t.Errorf("check %s backend = %q, want memory", c.Name, c.Backend)
		}
		if err := c.Run(ctx); err != nil {
			t.Fatalf("check %s: %v", c.Name, err)
		}
	}

	raw, err := os.ReadFile(filepath.Join("..", "parser", "ckl", "testdata", "scenario_a.ckl"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	group, err := b.Systems.Create(ctx, system.CreateInput{Name: "Payments", Acronym: "PAY"})
	if err != nil {
		t.Fatalf("Create system: %v", err)
	}

	res, err := b.Checklists.Import(ctx, checklist.ImportInput{Format: domain.FormatCKL, Raw: raw, SystemID: ptr(group.ID())})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	score, err := b.Checklists.GetScore(ctx, res.Checklist.ID())
	if err != nil {
		t.Fatalf("GetScore: %v", err)
	}
	if score.TotalFindings() != res.Created {
		t.Errorf("score counts %d findings, import created %d", score.TotalFindings(), res.Created)
	}

	g, err := b.Systems.Get(ctx, group.ID())
	if err != nil {
		t.Fatalf("Get system: %v", err)
	}
	if g.Stats().TotalChecklists != 1 || g.Stats().TotalOpen != score.TotalOpen() {
		t.Errorf("system stats = %+v, want 1 checklist and %d open", g.Stats(), score.TotalOpen())
	}

	n, err := b.Projection.Rebuild(ctx)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if n == 0 {
		t.Error("Rebuild replayed no events")
	}

	families, err := b.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "grc_test_events_published_total" {
			found = true
		}
	}
	if !found {
		t.Error("events published counter not registered")
	}
}

func TestBuild_MetricsDisabled(t *testing.T) {
	cfg := offlineConfig()
	cfg.Metrics.Enabled = false

	b, err := Build(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if b.Metrics != nil {
		t.Error("metrics must be nil when disabled")
	}
	if _, err := b.Systems.Create(context.Background(), system.CreateInput{Name: "HR"}); err != nil {
		t.Fatalf("Create system without metrics: %v", err)
	}
}

func TestBuild_PostgresEndToEnd(t *testing.T) {
	ctx := context.Background()
	cfg := offlineConfig()
	cfg.Database = config.DatabaseConfig{
		DSN:             testhelper.SetupTestDSN(t),
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: time.Minute,
		ConnectAttempts: 3,
		ConnectInterval: 100 * time.Millisecond,
	}
	cfg.Metrics.Enabled = false

	b, err := Build(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(b.Close)

	if b.Storage() != "postgres" {
		t.Fatalf("Storage() = %q, want postgres", b.Storage())
	}

	raw, err := os.ReadFile(filepath.Join("..", "parser", "ckl", "testdata", "scenario_a.ckl"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	group, err := b.Systems.Create(ctx, system.CreateInput{Name: "Payments " + t.Name()})
	if err != nil {
		t.Fatalf("Create system: %v", err)
	}
	res, err := b.Checklists.Import(ctx, checklist.ImportInput{Format: domain.FormatCKL, Raw: raw, SystemID: ptr(group.ID()), ForceNew: true})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	exported, _, err := b.Checklists.ExportRaw(ctx, res.Checklist.ID())
	if err != nil {
		t.Fatalf("ExportRaw: %v", err)
	}
	if string(exported) != string(raw) {
		t.Error("exported bytes differ from the imported file")
	}

	score, err := b.Checklists.GetScore(ctx, res.Checklist.ID())
	if err != nil {
		t.Fatalf("GetScore: %v", err)
	}
	g, err := b.Systems.Get(ctx, group.ID())
	if err != nil {
		t.Fatalf("Get system: %v", err)
	}
	if g.Stats().TotalChecklists != 1 || g.Stats().TotalOpen != score.TotalOpen() {
		t.Errorf("system stats = %+v, want 1 checklist and %d open", g.Stats(), score.TotalOpen())
	}

	if _, err := b.Projection.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	again, err := b.Checklists.GetScore(ctx, res.Checklist.ID())
	if err != nil {
		t.Fatalf("GetScore after rebuild: %v", err)
	}
	if !again.SameCounts(score) {
		t.Errorf("rebuild changed the score: %+v -> %+v", score, again)
	}
}

func ptr[T any](v T) *T { return &v }
