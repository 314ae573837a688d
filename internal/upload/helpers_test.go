package upload

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"sync"
	"testing/iotest"
)

var (
	errConnReset = errors.New("connection reset by peer")
	errDiskFull  = errors.New("no space left on device")
)

// Deterministic pseudo-random payload.
func payload(n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(int64(n))).Read(b)
	return b
}

// A source that delivers data and then fails like a dropped connection.
func brokenSource(data []byte) io.Reader {
	return io.MultiReader(bytes.NewReader(data), iotest.ErrReader(errConnReset))
}

// countingOpener records how sinks are acquired and released.
type countingOpener struct {
	inner Opener

	mu           sync.Mutex
	opens        int
	closes       int
	flushes      int
	maxUnflushed int
	failWrite    error
	failOpen     error
}

func newCountingOpener() *countingOpener {
	return &countingOpener{inner: FileOpener{}}
}

func (o *countingOpener) Open(path string, offset int64) (Sink, error) {
	o.mu.Lock()
	o.opens++
	failOpen := o.failOpen
	o.mu.Unlock()
	if failOpen != nil {
		return nil, failOpen
	}
	s, err := o.inner.Open(path, offset)
	if err != nil {
		return nil, err
	}
	return &countingSink{Sink: s, o: o}, nil
}

func (o *countingOpener) counts() (opens, closes, flushes int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens, o.closes, o.flushes
}

type countingSink struct {
	Sink
	o         *countingOpener
	unflushed int
}

func (s *countingSink) Write(p []byte) (int, error) {
	s.o.mu.Lock()
	failWrite := s.o.failWrite
	s.o.mu.Unlock()
	if failWrite != nil {
		return 0, failWrite
	}
	n, err := s.Sink.Write(p)
	s.unflushed += n
	s.o.mu.Lock()
	if s.unflushed > s.o.maxUnflushed {
		s.o.maxUnflushed = s.unflushed
	}
	s.o.mu.Unlock()
	return n, err
}

func (s *countingSink) Flush() error {
	s.unflushed = 0
	s.o.mu.Lock()
	s.o.flushes++
	s.o.mu.Unlock()
	return s.Sink.Flush()
}

func (s *countingSink) Close() error {
	s.o.mu.Lock()
	s.o.closes++
	s.o.mu.Unlock()
	return s.Sink.Close()
}
