package models

import "time"

type User struct {
	ID                int64     `json:"id" db:"id"`
	Username          string    `json:"username" db:"username"`
	Email             string    `json:"email" db:"email"`
	PasswordHash      string    `json:"-" db:"password_hash"`
	IsSuperUser       bool      `json:"is_super_user" db:"is_super_user"`
	StorageQuotaBytes int64     `json:"storage_quota_bytes" db:"storage_quota_bytes"`
	UsedSpaceBytes    int64     `json:"used_space_bytes" db:"used_space_bytes"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}
