package app

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/molpadia/molpaupload/internal/domain/repository"
	"github.com/rs/zerolog/log"
)

type appHandler func(http.ResponseWriter, *http.Request) error

func (fn appHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := fn(w, r)
	if err == nil {
		return
	}
	var (
		ae *AppError
		ab *errAborted
	)
	switch {
	case errors.As(err, &ab):
		log.Warn().Err(err).Str("request_id", w.Header().Get(HeaderRequestId)).Msg("upload interrupted, aborting connection")
		panic(http.ErrAbortHandler)
	case errors.As(err, &ae):
		if ae.Status >= http.StatusInternalServerError {
			log.Error().Err(err).Str("id", ae.Id).Msg("request failed")
		} else {
			log.Debug().Err(err).Str("id", ae.Id).Msg("request rejected")
		}
		replyJSON(w, ae, ae.Status)
	default:
		log.Error().Err(err).Msg("internal server error")
		replyJSON(w, &AppError{Status: http.StatusInternalServerError, Code: CodeInternal, Message: err.Error()}, http.StatusInternalServerError)
	}
}

type Options struct {
	// IdleTimeout aborts an upload whose body delivers no bytes for this long.
	IdleTimeout time.Duration
	// Archiver copies completed uploads to remote storage when set.
	Archiver repository.Archiver
}

// Register API endpoints to the router.
func SetupRoutes(r *mux.Router, coordinator Coordinator, uploads repository.UploadRepository, opts Options) {
	c := &controller{coordinator, uploads, opts.Archiver, opts.IdleTimeout}
	r.Use(requestLogger)
	r.Methods("GET").Path("/status").Handler(appHandler(c.getStatus))
	r.Methods("POST").Path("/upload").Handler(appHandler(c.uploadChunk))
	r.Methods("GET").Path("/uploads").Handler(appHandler(c.listUploads))
	r.Methods("GET").Path("/uploads/{id}/status").Handler(appHandler(c.getStatus))
	r.Methods("PUT").Path("/uploads/{id}").Handler(appHandler(c.uploadChunk))
	r.Methods("DELETE").Path("/uploads/{id}").Handler(appHandler(c.cancelUpload))
	r.Methods("GET").Path("/files/{id}").Handler(appHandler(c.getFile))
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Log every request with a request ID.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestId)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(HeaderRequestId, id)
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		log.Info().
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}
