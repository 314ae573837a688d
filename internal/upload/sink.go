package upload

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Sink is an append-capable durable byte store for one upload.
type Sink interface {
	io.Writer
	// Flush makes every byte written so far durable.
	Flush() error
	// Size reports the number of bytes present in durable storage.
	Size() (int64, error)
	// Truncate discards everything past n bytes.
	Truncate(n int64) error
	io.Closer
}

// Opener acquires the sink of an upload. A zero offset recreates the sink,
// any other offset opens it for appending.
type Opener interface {
	Open(path string, offset int64) (Sink, error)
}

// FileOpener opens sinks on the local filesystem.
type FileOpener struct {
	// Sync forces every flush through to the disk with fsync.
	Sync bool
}

func (o FileOpener) Open(path string, offset int64) (Sink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	flag := os.O_WRONLY | os.O_CREATE | os.O_APPEND
	if offset == 0 {
		flag |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, err
	}
	return &fileSink{f: f, sync: o.Sync}, nil
}

type fileSink struct {
	f    *os.File
	sync bool
}

func (s *fileSink) Write(p []byte) (int, error) { return s.f.Write(p) }

func (s *fileSink) Flush() error {
	if !s.sync {
		return nil
	}
	return s.f.Sync()
}

func (s *fileSink) Size() (int64, error) {
	info, err := s.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (s *fileSink) Truncate(n int64) error { return s.f.Truncate(n) }

func (s *fileSink) Close() error { return s.f.Close() }
