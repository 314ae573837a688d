package upload

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidIdentifier = errors.New("invalid upload identifier")
	ErrUploadInProgress  = errors.New("upload already in progress")
	ErrInvalidRange      = errors.New("start byte exceeds the declared total size")
)

// OffsetMismatchError reports a claimed start byte that disagrees with the
// committed byte count. The client has to query the status and resend.
type OffsetMismatchError struct {
	Id       string
	Claimed  int64
	Expected int64
}

func (e *OffsetMismatchError) Error() string {
	return fmt.Sprintf("upload %q: start byte %d does not match committed offset %d", e.Id, e.Claimed, e.Expected)
}

// StreamInterruptedError reports a source that ended prematurely. The session
// survives with Committed set to the verified on-disk size.
type StreamInterruptedError struct {
	Id        string
	Committed int64
	Err       error
}

func (e *StreamInterruptedError) Error() string {
	return fmt.Sprintf("upload %q interrupted at offset %d: %v", e.Id, e.Committed, e.Err)
}

func (e *StreamInterruptedError) Unwrap() error { return e.Err }

// FatalIOError reports a sink that cannot be written. The session is gone.
type FatalIOError struct {
	Id  string
	Op  string
	Err error
}

func (e *FatalIOError) Error() string {
	return fmt.Sprintf("upload %q: %s: %v", e.Id, e.Op, e.Err)
}

func (e *FatalIOError) Unwrap() error { return e.Err }

// IncompleteUploadError reports a final chunk that did not reach the declared total size.
type IncompleteUploadError struct {
	Id        string
	Committed int64
	Total     int64
}

func (e *IncompleteUploadError) Error() string {
	return fmt.Sprintf("upload %q finalized at %d of %d bytes", e.Id, e.Committed, e.Total)
}

// Determine whether the error leaves the session resumable.
func IsResumable(err error) bool {
	var ie *StreamInterruptedError
	return errors.As(err, &ie)
}
