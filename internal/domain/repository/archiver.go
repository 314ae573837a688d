package repository

import "context"

type Archiver interface {
	// Copy a completed local file to the remote storage and return its location.
	Archive(ctx context.Context, key, path, contentType string) (string, error)
}
