package repository

import (
	"context"

	"github.com/molpadia/molpaupload/internal/domain/entity"
)

type UploadRepository interface {
	// Get the completed upload by its identifier, nil when it does not exist.
	GetById(ctx context.Context, id string) (*entity.Upload, error)
	// Save a completed upload to the persistence.
	Save(ctx context.Context, upload *entity.Upload) error
}
