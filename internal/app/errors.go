package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/molpadia/molpaupload/internal/upload"
)

const (
	CodeBadRequest        = "bad_request"
	CodeInvalidIdentifier = "invalid_identifier"
	CodeInvalidRange      = "invalid_range"
	CodeOffsetMismatch    = "offset_mismatch"
	CodeUploadInProgress  = "upload_in_progress"
	CodeIncompleteUpload  = "incomplete_upload"
	CodeFatalIO           = "fatal_io"
	CodeNotFound          = "not_found"
	CodeInternal          = "internal"
)

type AppError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Id      string `json:"id,omitempty"`
	Offset  *int64 `json:"offset,omitempty"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func badRequest(format string, args ...interface{}) *AppError {
	return &AppError{Status: http.StatusBadRequest, Code: CodeBadRequest, Message: fmt.Sprintf(format, args...)}
}

// errAborted ends a request without a response so that the client re-queries
// the status before resuming.
type errAborted struct {
	err error
}

func (e *errAborted) Error() string { return e.err.Error() }

func (e *errAborted) Unwrap() error { return e.err }

// Translate an upload error into its wire representation.
func uploadError(id string, err error) error {
	var (
		me *upload.OffsetMismatchError
		ie *upload.IncompleteUploadError
		fe *upload.FatalIOError
	)
	switch {
	case upload.IsResumable(err):
		return &errAborted{err}
	case errors.As(err, &me):
		return &AppError{Status: http.StatusConflict, Code: CodeOffsetMismatch, Message: err.Error(), Id: id, Offset: &me.Expected}
	case errors.Is(err, upload.ErrUploadInProgress):
		return &AppError{Status: http.StatusConflict, Code: CodeUploadInProgress, Message: err.Error(), Id: id}
	case errors.Is(err, upload.ErrInvalidIdentifier):
		return &AppError{Status: http.StatusBadRequest, Code: CodeInvalidIdentifier, Message: err.Error()}
	case errors.Is(err, upload.ErrInvalidRange):
		return &AppError{Status: http.StatusBadRequest, Code: CodeInvalidRange, Message: err.Error(), Id: id}
	case errors.As(err, &ie):
		return &AppError{Status: http.StatusBadRequest, Code: CodeIncompleteUpload, Message: err.Error(), Id: id, Offset: &ie.Committed}
	case errors.As(err, &fe):
		return &AppError{Status: http.StatusInternalServerError, Code: CodeFatalIO, Message: err.Error(), Id: id}
	}
	return err
}
