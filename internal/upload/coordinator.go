package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/molpadia/molpaupload/internal/domain/entity"
	"github.com/rs/zerolog/log"
)

// Request is one chunk of an upload.
type Request struct {
	Id          string
	StartByte   int64
	TotalSize   int64 // -1 when unknown.
	ContentType string
	Final       bool
	Body        io.Reader
}

// Result describes the state of an upload after a chunk was handled.
type Result struct {
	Id        string
	Status    string
	Committed int64
	Path      string
}

// Coordinator validates resume requests and runs at most one pipeline per
// upload identifier.
type Coordinator struct {
	dir      string
	tracker  *Tracker
	pipeline *Pipeline

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewCoordinator(dir string, tracker *Tracker, pipeline *Pipeline) *Coordinator {
	return &Coordinator{
		dir:      dir,
		tracker:  tracker,
		pipeline: pipeline,
		inflight: make(map[string]struct{}),
	}
}

// Handle writes one chunk of an upload.
func (c *Coordinator) Handle(ctx context.Context, req Request) (Result, error) {
	res := Result{Id: req.Id}
	path, err := SinkPath(c.dir, req.Id, req.ContentType)
	if err != nil {
		return res, err
	}
	if !c.acquire(req.Id) {
		return res, fmt.Errorf("upload %q: %w", req.Id, ErrUploadInProgress)
	}
	defer c.release(req.Id)

	total := req.TotalSize
	s, known := c.tracker.Session(req.Id)
	// A resumed upload keeps the sink it started with.
	if known && s.SinkPath != "" {
		path = s.SinkPath
	}
	res.Path = path
	offset := c.tracker.Get(req.Id)
	res.Committed = offset
	if req.StartByte != offset {
		return res, &OffsetMismatchError{Id: req.Id, Claimed: req.StartByte, Expected: offset}
	}
	if known && s.HasTotal() {
		if total >= 0 && total != s.TotalSize {
			return res, fmt.Errorf("upload %q: total size %d contradicts the declared %d: %w", req.Id, total, s.TotalSize, ErrInvalidRange)
		}
		total = s.TotalSize
	}
	if total >= 0 && req.StartByte > total {
		return res, fmt.Errorf("upload %q: %w", req.Id, ErrInvalidRange)
	}

	// Bytes past the declared total are never written.
	body := req.Body
	if total >= 0 {
		body = io.LimitReader(req.Body, total-offset)
	}
	c.tracker.Begin(req.Id, path, req.ContentType, total)
	n, err := c.pipeline.Copy(ctx, body, req.Id, path, offset)
	if err != nil {
		var ie *StreamInterruptedError
		if errors.As(err, &ie) {
			res.Status = entity.SessionStatusInterrupted
			res.Committed = ie.Committed
		}
		return res, err
	}
	res.Committed = n

	if !req.Final {
		c.tracker.Idle(req.Id)
		res.Status = entity.SessionStatusIdle
		return res, nil
	}
	if total >= 0 && n != total {
		c.tracker.Interrupt(req.Id, n)
		res.Status = entity.SessionStatusInterrupted
		return res, &IncompleteUploadError{Id: req.Id, Committed: n, Total: total}
	}
	c.tracker.Remove(req.Id)
	res.Status = entity.SessionStatusCompleted
	log.Info().Str("id", req.Id).Int64("size", n).Str("path", path).Msg("upload completed")
	return res, nil
}

// Status returns the session of the upload, an idle empty session when it is unknown.
func (c *Coordinator) Status(id string) entity.Session {
	if s, ok := c.tracker.Session(id); ok {
		return s
	}
	return *entity.NewSession(id)
}

// Sessions returns every tracked upload.
func (c *Coordinator) Sessions() []entity.Session {
	return c.tracker.Sessions()
}

// Cancel discards the session of an upload and its partial file.
func (c *Coordinator) Cancel(id string) error {
	if err := ValidateIdentifier(id); err != nil {
		return err
	}
	if !c.acquire(id) {
		return fmt.Errorf("upload %q: %w", id, ErrUploadInProgress)
	}
	defer c.release(id)

	s, ok := c.tracker.Session(id)
	c.tracker.Remove(id)
	if ok && s.SinkPath != "" {
		if err := removeFile(s.SinkPath); err != nil {
			return &FatalIOError{Id: id, Op: "remove sink", Err: err}
		}
	}
	log.Info().Str("id", id).Msg("upload cancelled")
	return nil
}

// Sweep removes the sessions not updated within ttl together with their
// partial files. Uploads in flight are left alone.
func (c *Coordinator) Sweep(ttl time.Duration) int {
	expired := c.tracker.Expire(ttl, func(id string) bool { return !c.acquire(id) })
	for _, s := range expired {
		if s.SinkPath != "" {
			if err := removeFile(s.SinkPath); err != nil {
				log.Error().Err(err).Str("id", s.Id).Str("path", s.SinkPath).Msg("failed to remove expired upload")
			}
		}
		c.release(s.Id)
		log.Info().Str("id", s.Id).Int64("committed", s.Committed).Msg("expired upload session")
	}
	return len(expired)
}

// Run sweeps expired sessions every interval until ctx is done.
func (c *Coordinator) Run(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep(ttl)
		}
	}
}

func (c *Coordinator) acquire(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.inflight[id]; ok {
		return false
	}
	c.inflight[id] = struct{}{}
	return true
}

func (c *Coordinator) release(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, id)
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
