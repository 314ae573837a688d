package upload

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
)

const DefaultBufferSize = 256 << 10

// Pipeline copies an inbound stream into the sink of an upload. It never
// holds more than one buffer of unflushed bytes: the source is not read
// again until the previous buffer is written, flushed and reported to the
// tracker.
type Pipeline struct {
	tracker    *Tracker
	opener     Opener
	bufferSize int
}

func NewPipeline(tracker *Tracker, opener Opener, bufferSize int) *Pipeline {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Pipeline{tracker: tracker, opener: opener, bufferSize: bufferSize}
}

// Copy appends src to the sink at path, starting at offset, and returns the
// committed byte count. A failing source yields a *StreamInterruptedError and
// leaves the session resumable; a failing sink yields a *FatalIOError and
// removes the session.
func (p *Pipeline) Copy(ctx context.Context, src io.Reader, id, path string, offset int64) (n int64, err error) {
	sink, err := p.opener.Open(path, offset)
	if err != nil {
		return 0, p.fatal(id, "open sink", err)
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil && err == nil {
			n, err = 0, p.fatal(id, "close sink", cerr)
		}
	}()

	if offset > 0 {
		if err := reconcile(sink, offset); err != nil {
			return 0, p.fatal(id, "reconcile sink", err)
		}
	}

	committed := offset
	buf := make([]byte, p.bufferSize)
	for {
		if cerr := ctx.Err(); cerr != nil {
			return p.interrupt(sink, id, cerr)
		}
		nr, rerr := fill(src, buf)
		if nr > 0 {
			if _, werr := sink.Write(buf[:nr]); werr != nil {
				return 0, p.fatal(id, "write sink", werr)
			}
			if ferr := sink.Flush(); ferr != nil {
				return 0, p.fatal(id, "flush sink", ferr)
			}
			committed += int64(nr)
			p.tracker.Set(id, committed)
		}
		if rerr == io.EOF {
			return committed, nil
		}
		if rerr != nil {
			return p.interrupt(sink, id, rerr)
		}
	}
}

// Record the size present on disk after the source failed.
func (p *Pipeline) interrupt(sink Sink, id string, cause error) (int64, error) {
	size, err := sink.Size()
	if err != nil {
		return 0, p.fatal(id, "stat sink", err)
	}
	p.tracker.Interrupt(id, size)
	log.Debug().Err(cause).Str("id", id).Int64("offset", size).Msg("upload stream interrupted")
	return size, &StreamInterruptedError{Id: id, Committed: size, Err: cause}
}

func (p *Pipeline) fatal(id, op string, err error) error {
	p.tracker.Remove(id)
	return &FatalIOError{Id: id, Op: op, Err: err}
}

// Make the sink hold exactly offset bytes before appending.
func reconcile(sink Sink, offset int64) error {
	size, err := sink.Size()
	if err != nil {
		return err
	}
	switch {
	case size < offset:
		return fmt.Errorf("sink holds %d bytes, expected at least %d", size, offset)
	case size > offset:
		return sink.Truncate(offset)
	}
	return nil
}

// Read from src until buf is full or the source returns an error.
func fill(src io.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := src.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
