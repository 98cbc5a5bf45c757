package checklist

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/heartmarshall/grc-backend/internal/domain"
)

// Ensure, that auditRepoMock does implement auditRepo.
// If this is not the case, regenerate this file with moq.
var _ auditRepo = &auditRepoMock{}

// auditRepoMock is a mock implementation of auditRepo.
type auditRepoMock struct {
	// LogFunc mocks the Log method.
	LogFunc func(ctx context.Context, record domain.AuditRecord) error

	// ListByEntityFunc mocks the ListByEntity method.
	ListByEntityFunc func(ctx context.Context, entityType domain.EntityType, entityID uuid.UUID, limit int) ([]domain.AuditRecord, error)

	calls struct {
		Log []struct {
			Ctx    context.Context
			Record domain.AuditRecord
		}
		ListByEntity []struct {
			Ctx        context.Context
			EntityType domain.EntityType
			EntityID   uuid.UUID
			Limit      int
		}
	}
	lockLog          sync.RWMutex
	lockListByEntity sync.RWMutex
}

// Log calls LogFunc.
func (mock *auditRepoMock) Log(ctx context.Context, record domain.AuditRecord) error {
	if mock.LogFunc == nil {
		panic("auditRepoMock.LogFunc: method is nil but auditRepo.Log was just called")
	}
	callInfo := struct {
		Ctx    context.Context
		Record domain.AuditRecord
	}{
		Ctx:    ctx,
		Record: record,
	}
	mock.lockLog.Lock()
	mock.calls.Log = append(mock.calls.Log, callInfo)
	mock.lockLog.Unlock()
	return mock.LogFunc(ctx, record)
}

// LogCalls gets all the calls that were made to Log.
func (mock *auditRepoMock) LogCalls() []struct {
	Ctx    context.Context
	Record domain.AuditRecord
} {
	var calls []struct {
		Ctx    context.Context
		Record domain.AuditRecord
	}
	mock.lockLog.RLock()
	calls = mock.calls.Log
	mock.lockLog.RUnlock()
	return calls
}

// ListByEntity calls ListByEntityFunc.
func (mock *auditRepoMock) ListByEntity(ctx context.Context, entityType domain.EntityType, entityID uuid.UUID, limit int) ([]domain.AuditRecord, error) {
	if mock.ListByEntityFunc == nil {
		panic("auditRepoMock.ListByEntityFunc: method is nil but auditRepo.ListByEntity was just called")
	}
	callInfo := struct {
		Ctx        context.Context
		EntityType domain.EntityType
		EntityID   uuid.UUID
		Limit      int
	}{
		Ctx:        ctx,
		EntityType: entityType,
		EntityID:   entityID,
		Limit:      limit,
	}
	mock.lockListByEntity.Lock()
	mock.calls.ListByEntity = append(mock.calls.ListByEntity, callInfo)
	mock.lockListByEntity.Unlock()
	return mock.ListByEntityFunc(ctx, entityType, entityID, limit)
}

// ListByEntityCalls gets all the calls that were made to ListByEntity.
func (mock *auditRepoMock) ListByEntityCalls() []struct {
	Ctx        context.Context
	EntityType domain.EntityType
	EntityID   uuid.UUID
	Limit      int
} {
	var calls []struct {
		Ctx        context.Context
		EntityType domain.EntityType
		EntityID   uuid.UUID
		Limit      int
	}
	mock.lockListByEntity.RLock()
	calls = mock.calls.ListByEntity
	mock.lockListByEntity.RUnlock()
	return calls
}
