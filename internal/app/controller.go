package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/molpadia/molpaupload/internal/domain/entity"
	"github.com/molpadia/molpaupload/internal/domain/repository"
	"github.com/molpadia/molpaupload/internal/httprange"
	"github.com/molpadia/molpaupload/internal/upload"
	"github.com/rs/zerolog/log"
)

type Coordinator interface {
	Handle(ctx context.Context, req upload.Request) (upload.Result, error)
	Status(id string) entity.Session
	Sessions() []entity.Session
	Cancel(id string) error
}

type controller struct {
	coordinator Coordinator
	uploads     repository.UploadRepository
	archiver    repository.Archiver
	idleTimeout time.Duration
}

// Get the number of bytes committed for an upload.
func (c *controller) getStatus(w http.ResponseWriter, r *http.Request) error {
	id := uploadId(r)
	if id == "" {
		return badRequest("%s header must be required", HeaderFileId)
	}
	s := c.coordinator.Status(id)
	w.Header().Set(HeaderUploadOffset, strconv.FormatInt(s.Committed, 10))
	w.Header().Set(HeaderUploadStatus, s.Status)
	if rng := httprange.ReceivedRange(s.Committed); rng != "" {
		w.Header().Set(HeaderRange, rng)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err := io.WriteString(w, strconv.FormatInt(s.Committed, 10))
	return err
}

// Upload a chunk of a file starting at its committed offset.
func (c *controller) uploadChunk(w http.ResponseWriter, r *http.Request) error {
	req, length, err := parseChunk(r)
	if err != nil {
		return err
	}
	body := io.Reader(r.Body)
	if c.idleTimeout > 0 {
		dr := newDeadlineReader(w, body, c.idleTimeout)
		defer dr.clear()
		body = dr
	}
	if length >= 0 {
		body = io.LimitReader(body, length)
	}
	req.Body = body

	res, err := c.coordinator.Handle(r.Context(), req)
	if err != nil {
		var me *upload.OffsetMismatchError
		if errors.As(err, &me) {
			w.Header().Set(HeaderUploadOffset, strconv.FormatInt(me.Expected, 10))
		}
		return uploadError(req.Id, err)
	}
	w.Header().Set(HeaderUploadOffset, strconv.FormatInt(res.Committed, 10))
	if res.Status != entity.SessionStatusCompleted {
		return replyJSON(w, ChunkResponse{res.Id, res.Committed, res.Status}, http.StatusAccepted)
	}
	u := c.complete(r.Context(), req, res)
	return replyJSON(w, UploadResponse{u.Id, u.Size, res.Status, u.Location}, http.StatusOK)
}

// Record a completed upload. The file is already durable, so archive and
// record failures are logged rather than reported.
func (c *controller) complete(ctx context.Context, req upload.Request, res upload.Result) *entity.Upload {
	u := entity.NewUpload(res.Id, req.ContentType, res.Path, res.Committed)
	if c.archiver != nil {
		loc, err := c.archiver.Archive(ctx, res.Id, res.Path, req.ContentType)
		if err != nil {
			log.Error().Err(err).Str("id", res.Id).Msg("failed to archive upload")
		} else {
			u.SetLocation(loc)
		}
	}
	if err := c.uploads.Save(ctx, u); err != nil {
		log.Error().Err(err).Str("id", res.Id).Msg("failed to record upload")
	}
	return u
}

// List the uploads that can be resumed.
func (c *controller) listUploads(w http.ResponseWriter, r *http.Request) error {
	return replyJSON(w, SessionsResponse{c.coordinator.Sessions()}, http.StatusOK)
}

// Cancel an upload and discard its partial file.
func (c *controller) cancelUpload(w http.ResponseWriter, r *http.Request) error {
	id := mux.Vars(r)["id"]
	if err := c.coordinator.Cancel(id); err != nil {
		return uploadError(id, err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// Get the record of a completed upload.
func (c *controller) getFile(w http.ResponseWriter, r *http.Request) error {
	id := mux.Vars(r)["id"]
	u, err := c.uploads.GetById(r.Context(), id)
	if err != nil {
		return err
	}
	if u == nil {
		return &AppError{Status: http.StatusNotFound, Code: CodeNotFound, Message: "upload does not exist", Id: id}
	}
	return replyJSON(w, FileResponse{u.Id, u.ContentType, u.Size, u.Location, u.CompletedAt}, http.StatusOK)
}

// Read the upload identifier from the path or the File-Id header.
func uploadId(r *http.Request) string {
	if id := mux.Vars(r)["id"]; id != "" {
		return id
	}
	return r.Header.Get(HeaderFileId)
}

// Parse the chunk headers. The returned length is -1 unless a Content-Range
// bounds the chunk.
func parseChunk(r *http.Request) (upload.Request, int64, error) {
	req := upload.Request{
		Id:          uploadId(r),
		StartByte:   -1,
		TotalSize:   -1,
		ContentType: r.Header.Get(HeaderFileType),
	}
	if req.Id == "" {
		return req, -1, badRequest("%s header must be required", HeaderFileId)
	}
	if req.ContentType == "" {
		req.ContentType = r.Header.Get("Content-Type")
	}
	if v := r.Header.Get(HeaderStartByte); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return req, -1, badRequest("cannot parse %s header: %q", HeaderStartByte, v)
		}
		req.StartByte = n
	}
	if v := r.Header.Get(HeaderUploadLength); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return req, -1, badRequest("cannot parse %s header: %q", HeaderUploadLength, v)
		}
		req.TotalSize = n
	}
	if v := r.Header.Get(HeaderUploadFinal); v != "" {
		final, err := strconv.ParseBool(v)
		if err != nil {
			return req, -1, badRequest("cannot parse %s header: %q", HeaderUploadFinal, v)
		}
		req.Final = final
	}
	length := int64(-1)
	cr, err := httprange.ParseContentRange(r.Header.Get(HeaderContentRange))
	if err != nil {
		return req, -1, badRequest("%v", err)
	}
	if cr != nil {
		if req.StartByte >= 0 && req.StartByte != cr.Start {
			return req, -1, badRequest("%s header does not match %s header", HeaderStartByte, HeaderContentRange)
		}
		req.StartByte = cr.Start
		if cr.HasSize() {
			if req.TotalSize >= 0 && req.TotalSize != cr.Size {
				return req, -1, badRequest("%s header does not match %s header", HeaderUploadLength, HeaderContentRange)
			}
			req.TotalSize = cr.Size
		}
		// A range ending at the last byte completes the upload.
		if cr.IsLastByte() {
			req.Final = true
		}
		length = cr.Length()
	}
	if req.StartByte < 0 {
		return req, -1, badRequest("%s header must be required", HeaderStartByte)
	}
	return req, length, nil
}

// deadlineReader pushes the read deadline of the connection forward before
// every read, so a silent client fails the read instead of holding the upload.
type deadlineReader struct {
	r        io.Reader
	rc       *http.ResponseController
	idle     time.Duration
	disabled bool
}

func newDeadlineReader(w http.ResponseWriter, r io.Reader, idle time.Duration) *deadlineReader {
	return &deadlineReader{r: r, rc: http.NewResponseController(w), idle: idle}
}

func (d *deadlineReader) Read(p []byte) (int, error) {
	if !d.disabled {
		if err := d.rc.SetReadDeadline(time.Now().Add(d.idle)); err != nil {
			d.disabled = true
		}
	}
	return d.r.Read(p)
}

func (d *deadlineReader) clear() {
	if !d.disabled {
		d.rc.SetReadDeadline(time.Time{})
	}
}

// Respond the output with JSON format to the client.
func replyJSON(w http.ResponseWriter, data interface{}, code int) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}
