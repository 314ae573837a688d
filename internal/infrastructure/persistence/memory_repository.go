package persistence

import (
	"context"
	"sync"

	"github.com/molpadia/molpaupload/internal/domain/entity"
)

// MemoryUploadRepository keeps completion records for the lifetime of the process.
type MemoryUploadRepository struct {
	mu      sync.RWMutex
	uploads map[string]entity.Upload
}

func NewMemoryUploadRepository() *MemoryUploadRepository {
	return &MemoryUploadRepository{uploads: make(map[string]entity.Upload)}
}

func (r *MemoryUploadRepository) GetById(ctx context.Context, id string) (*entity.Upload, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.uploads[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *MemoryUploadRepository) Save(ctx context.Context, upload *entity.Upload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploads[upload.Id] = *upload
	return nil
}
