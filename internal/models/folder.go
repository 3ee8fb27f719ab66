package models

import "time"

// Folder is one row of the per-user folder tree. Path is the full
// normalized path from the root ("/"), unique within the owner's
// namespace. ParentID is nil only for the root folder.
type Folder struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	ParentID  *int64    `json:"parent_id"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}
