package models

import (
	"time"

	"github.com/google/uuid"
)

// File is a file metadata record. UUID doubles as the blob-store key;
// it is minted once at creation time and never changes.
type File struct {
	UUID      uuid.UUID `json:"uuid"`
	OwnerID   int64     `json:"owner_id"`
	FolderID  int64     `json:"folder_id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	MimeType  string    `json:"mime_type"`
	CreatedAt time.Time `json:"created_at"`
}
