package app

import (
	"time"

	"github.com/molpadia/molpaupload/internal/domain/entity"
)

const (
	HeaderFileId       = "File-Id"
	HeaderStartByte    = "Start-Byte"
	HeaderFileType     = "File-Type"
	HeaderUploadLength = "Upload-Length"
	HeaderUploadFinal  = "Upload-Final"
	HeaderUploadOffset = "Upload-Offset"
	HeaderUploadStatus = "Upload-Status"
	HeaderContentRange = "Content-Range"
	HeaderRange        = "Range"
	HeaderRequestId    = "X-Request-Id"
)

type ChunkResponse struct {
	Id     string `json:"id"`
	Offset int64  `json:"offset"`
	Status string `json:"status"`
}

type UploadResponse struct {
	Id       string `json:"id"`
	Size     int64  `json:"size"`
	Status   string `json:"status"`
	Location string `json:"location,omitempty"`
}

type SessionsResponse struct {
	Sessions []entity.Session `json:"sessions"`
}

type FileResponse struct {
	Id          string    `json:"id"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	Location    string    `json:"location,omitempty"`
	CompletedAt time.Time `json:"completedAt"`
}
