// Package memory implements every repository contract in process. It backs
// the offline mode of the CLI and the scenario tests, and applies the same
// compare-and-swap version check as the PostgreSQL repositories.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/google/uuid"

	"github.com/heartmarshall/grc-backend/internal/domain"
)

// DB holds the state shared by the repositories of one in-memory backend.
type DB struct {
	mu         sync.RWMutex
	findings   map[uuid.UUID]domain.FindingSnapshot
	checklists map[uuid.UUID]domain.ChecklistSnapshot
	systems    map[uuid.UUID]domain.SystemGroupSnapshot
	scores     map[uuid.UUID]domain.ChecklistScore
	scans      map[uuid.UUID]domain.ScanRecord
	audit      []domain.AuditRecord

	txMu sync.Mutex
}

// NewDB creates an empty in-memory database.
func NewDB() *DB {
	return &DB{
		findings:   make(map[uuid.UUID]domain.FindingSnapshot),
		checklists: make(map[uuid.UUID]domain.ChecklistSnapshot),
		systems:    make(map[uuid.UUID]domain.SystemGroupSnapshot),
		scores:     make(map[uuid.UUID]domain.ChecklistScore),
		scans:      make(map[uuid.UUID]domain.ScanRecord),
	}
}

type state struct {
	findings   map[uuid.UUID]domain.FindingSnapshot
	checklists map[uuid.UUID]domain.ChecklistSnapshot
	systems    map[uuid.UUID]domain.SystemGroupSnapshot
	scores     map[uuid.UUID]domain.ChecklistScore
	scans      map[uuid.UUID]domain.ScanRecord
	audit      []domain.AuditRecord
}

func (db *DB) snapshot() state {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return state{
		findings:   maps.Clone(db.findings),
		checklists: maps.Clone(db.checklists),
		systems:    maps.Clone(db.systems),
		scores:     maps.Clone(db.scores),
		scans:      maps.Clone(db.scans),
		audit:      append([]domain.AuditRecord(nil), db.audit...),
	}
}

func (db *DB) restore(s state) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.findings = s.findings
	db.checklists = s.checklists
	db.systems = s.systems
	db.scores = s.scores
	db.scans = s.scans
	db.audit = s.audit
}

// TxManager runs functions against a DB with all-or-nothing semantics:
// when fn fails every write it made is rolled back. Transactions are
// serialized.
type TxManager struct {
	db *DB
}

// NewTxManager creates a TxManager for db.
func NewTxManager(db *DB) *TxManager {
	return &TxManager{db: db}
}

type txKey struct{}

// RunInTx executes fn inside a transaction. Nested calls join the outer
// transaction.
func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	m.db.txMu.Lock()
	defer m.db.txMu.Unlock()

	saved := m.db.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		m.db.restore(saved)
		return err
	}
	return nil
}
