package upload

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

const maxIdentifierLength = 255

// ValidateIdentifier rejects identifiers that cannot be used as a file name
// inside the upload directory.
func ValidateIdentifier(id string) error {
	switch {
	case id == "", len(id) > maxIdentifierLength:
		return fmt.Errorf("%w: length must be between 1 and %d bytes", ErrInvalidIdentifier, maxIdentifierLength)
	case strings.HasPrefix(id, "."):
		return fmt.Errorf("%w: must not begin with a dot", ErrInvalidIdentifier)
	case strings.ContainsAny(id, "/\\\x00"):
		return fmt.Errorf("%w: must not contain path separators", ErrInvalidIdentifier)
	}
	return nil
}

// SinkPath derives the storage location of an upload from its identifier and
// declared content type.
func SinkPath(dir, id, contentType string) (string, error) {
	if err := ValidateIdentifier(id); err != nil {
		return "", err
	}
	p := filepath.Join(dir, id+extension(contentType))
	rel, err := filepath.Rel(dir, p)
	if err != nil || rel != filepath.Base(p) {
		return "", fmt.Errorf("%w: escapes the upload directory", ErrInvalidIdentifier)
	}
	return p, nil
}

// Extensions of the sink files, fixed so that an identifier maps to the same
// path on every host. Other content types get no extension.
var extensions = map[string]string{
	"application/gzip": ".gz",
	"application/json": ".json",
	"application/pdf":  ".pdf",
	"application/zip":  ".zip",
	"audio/mpeg":       ".mp3",
	"audio/wav":        ".wav",
	"image/gif":        ".gif",
	"image/jpeg":       ".jpg",
	"image/png":        ".png",
	"image/webp":       ".webp",
	"text/csv":         ".csv",
	"text/plain":       ".txt",
	"video/mp4":        ".mp4",
	"video/quicktime":  ".mov",
	"video/webm":       ".webm",
	"video/x-matroska": ".mkv",
}

func extension(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return extensions[mediaType]
}
