package entity

import "time"

const (
	SessionStatusIdle        = "idle"
	SessionStatusInProgress  = "in_progress"
	SessionStatusInterrupted = "interrupted"
	SessionStatusCompleted   = "completed"
)

// The state of one logical file transfer.
type Session struct {
	Id          string    `json:"id"`
	Committed   int64     `json:"committed"`   // Bytes durably written to the sink.
	Status      string    `json:"status"`      // One of the SessionStatus constants.
	SinkPath    string    `json:"-"`           // Location of the partial file.
	ContentType string    `json:"contentType"` // Declared by the client.
	TotalSize   int64     `json:"totalSize"`   // -1 when the client did not declare it.
	UpdatedAt   time.Time `json:"updatedAt"`
}

func NewSession(id string) *Session {
	return &Session{
		Id:        id,
		Status:    SessionStatusIdle,
		TotalSize: -1,
		UpdatedAt: time.Now(),
	}
}

// Determine whether the declared total size is known.
func (s *Session) HasTotal() bool { return s.TotalSize >= 0 }

// The record of a completed upload.
type Upload struct {
	Id          string
	ContentType string
	Size        int64
	Path        string
	Location    string // Archive URL, empty when the file was not archived.
	CompletedAt time.Time
}

func NewUpload(id, contentType, path string, size int64) *Upload {
	return &Upload{
		Id:          id,
		ContentType: contentType,
		Size:        size,
		Path:        path,
		CompletedAt: time.Now(),
	}
}

// Mark the upload as archived at the given location.
func (u *Upload) SetLocation(location string) {
	u.Location = location
}
