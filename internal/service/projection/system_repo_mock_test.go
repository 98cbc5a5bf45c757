package projection

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/heartmarshall/grc-backend/internal/domain"
)

// Ensure, that systemRepoMock does implement systemRepo.
// If this is not the case, regenerate this file with moq.
var _ systemRepo = &systemRepoMock{}

// systemRepoMock is a mock implementation of systemRepo.
type systemRepoMock struct {
	// GetByIDFunc mocks the GetByID method.
	GetByIDFunc func(ctx context.Context, id uuid.UUID) (*domain.SystemGroup, error)

	// SaveFunc mocks the Save method.
	SaveFunc func(ctx context.Context, g *domain.SystemGroup) error

	calls struct {
		GetByID []struct {
			Ctx context.Context
			ID  uuid.UUID
		}
		Save []struct {
			Ctx context.Context
			G   *domain.SystemGroup
		}
	}
	lockGetByID sync.RWMutex
	lockSave    sync.RWMutex
}

// GetByID calls GetByIDFunc.
func (mock *systemRepoMock) GetByID(ctx context.Context, id uuid.UUID) (*domain.SystemGroup, error) {
	if mock.GetByIDFunc == nil {
		panic("systemRepoMock.GetByIDFunc: method is nil but systemRepo.GetByID was just called")
	}
	callInfo := struct {
		Ctx context.Context
		ID  uuid.UUID
	}{
		Ctx: ctx,
		ID:  id,
	}
	mock.lockGetByID.Lock()
	mock.calls.GetByID = append(mock.calls.GetByID, callInfo)
	mock.lockGetByID.Unlock()
	return mock.GetByIDFunc(ctx, id)
}

// GetByIDCalls gets all the calls that were made to GetByID.
func (mock *systemRepoMock) GetByIDCalls() []struct {
	Ctx context.Context
	ID  uuid.UUID
} {
	var calls []struct {
		Ctx context.Context
		ID  uuid.UUID
	}
	mock.lockGetByID.RLock()
	calls = mock.calls.GetByID
	mock.lockGetByID.RUnlock()
	return calls
}

// Save calls SaveFunc.
func (mock *systemRepoMock) Save(ctx context.Context, g *domain.SystemGroup) error {
	if mock.SaveFunc == nil {
		panic("systemRepoMock.SaveFunc: method is nil but systemRepo.Save was just called")
	}
	callInfo := struct {
		Ctx context.Context
		G   *domain.SystemGroup
	}{
		Ctx: ctx,
		G:   g,
	}
	mock.lockSave.Lock()
	mock.calls.Save = append(mock.calls.Save, callInfo)
	mock.lockSave.Unlock()
	return mock.SaveFunc(ctx, g)
}

// SaveCalls gets all the calls that were made to Save.
func (mock *systemRepoMock) SaveCalls() []struct {
	Ctx context.Context
	G   *domain.SystemGroup
} {
	var calls []struct {
		Ctx context.Context
		G   *domain.SystemGroup
	}
	mock.lockSave.RLock()
	calls = mock.calls.Save
	mock.lockSave.RUnlock()
	return calls
}
