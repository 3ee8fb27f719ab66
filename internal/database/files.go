package database

import (
	"context"
	"errors"

	"filebox/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const fileColumns = `uuid, owner_id, folder_id, name, path, size_bytes, mime_type, created_at`

func scanFile(row pgx.Row) (*models.File, error) {
	var file models.File
	err := row.Scan(
		&file.UUID,
		&file.OwnerID,
		&file.FolderID,
		&file.Name,
		&file.Path,
		&file.SizeBytes,
		&file.MimeType,
		&file.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &file, nil
}

func (q *Queries) GetFileByPath(ctx context.Context, ownerID int64, path string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE owner_id = $1 AND path = $2`
	return scanFile(q.db.QueryRow(ctx, query, ownerID, path))
}

func (q *Queries) GetFilesByOwner(ctx context.Context, ownerID int64, limit int, offset int) ([]models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE owner_id = $1 ORDER BY path LIMIT $2 OFFSET $3`
	return q.queryFiles(ctx, query, ownerID, limit, offset)
}

func (q *Queries) GetFilesByFolderID(ctx context.Context, folderID int64, limit int, offset int) ([]models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE folder_id = $1 ORDER BY path LIMIT $2 OFFSET $3`
	return q.queryFiles(ctx, query, folderID, limit, offset)
}

func (q *Queries) GetFileUUIDsByOwner(ctx context.Context, ownerID int64) ([]uuid.UUID, error) {
	rows, err := q.db.Query(ctx, `SELECT uuid FROM files WHERE owner_id = $1`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetUsedSpace recomputes consumed space from the file rows. The
// running counter on the user row is authoritative; this is the
// independent cross-check.
func (q *Queries) GetUsedSpace(ctx context.Context, ownerID int64) (int64, error) {
	var total int64
	query := `SELECT COALESCE(SUM(size_bytes), 0) FROM files WHERE owner_id = $1`
	err := q.db.QueryRow(ctx, query, ownerID).Scan(&total)
	return total, err
}

func (q *Queries) queryFiles(ctx context.Context, query string, args ...interface{}) ([]models.File, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []models.File
	for rows.Next() {
		var file models.File
		err := rows.Scan(
			&file.UUID,
			&file.OwnerID,
			&file.FolderID,
			&file.Name,
			&file.Path,
			&file.SizeBytes,
			&file.MimeType,
			&file.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if files == nil {
		return []models.File{}, nil
	}

	return files, nil
}

type CreateFileParams struct {
	UUID      uuid.UUID
	OwnerID   int64
	FolderID  int64
	Name      string
	Path      string
	SizeBytes int64
	MimeType  string
}

func (q *Queries) InsertFile(ctx context.Context, arg CreateFileParams) (*models.File, error) {
	query := `
		INSERT INTO files (uuid, owner_id, folder_id, name, path, size_bytes, mime_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + fileColumns
	file, err := scanFile(q.db.QueryRow(ctx, query,
		arg.UUID,
		arg.OwnerID,
		arg.FolderID,
		arg.Name,
		arg.Path,
		arg.SizeBytes,
		arg.MimeType,
	))
	if err != nil {
		if isUniqueViolation(err, "files_owner_id_path_key") {
			return nil, ErrFileExists
		}
		return nil, err
	}
	return file, nil
}

// CreateFile inserts the file row and charges the owner's quota in one
// transaction. The unique (owner_id, path) constraint detects a path
// collision lost to a concurrent upload atomically, so the caller's
// pre-check is only a fast path.
func (s *Store) CreateFile(ctx context.Context, arg CreateFileParams) (*models.File, error) {
	var file *models.File
	err := s.ExecTx(ctx, func(q *Queries) error {
		if err := q.ChargeQuota(ctx, arg.OwnerID, arg.SizeBytes); err != nil {
			return err
		}
		var err error
		file, err = q.InsertFile(ctx, arg)
		return err
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

// CreateFileBatch inserts all rows or none: a collision on any entry
// rolls back the whole transaction, including the quota charge.
func (s *Store) CreateFileBatch(ctx context.Context, ownerID int64, args []CreateFileParams) ([]models.File, error) {
	var totalSize int64
	for _, arg := range args {
		totalSize += arg.SizeBytes
	}

	files := make([]models.File, 0, len(args))
	err := s.ExecTx(ctx, func(q *Queries) error {
		files = files[:0]
		if err := q.ChargeQuota(ctx, ownerID, totalSize); err != nil {
			return err
		}
		for _, arg := range args {
			file, err := q.InsertFile(ctx, arg)
			if err != nil {
				return err
			}
			files = append(files, *file)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// DeleteFile removes the row and refunds the owner's used space by
// exactly the stored size, in one transaction. The deleted record is
// returned so the caller can delete the blob afterwards.
func (s *Store) DeleteFile(ctx context.Context, ownerID int64, path string) (*models.File, error) {
	var file *models.File
	err := s.ExecTx(ctx, func(q *Queries) error {
		var err error
		file, err = q.GetFileByPath(ctx, ownerID, path)
		if err != nil {
			return err
		}
		if file == nil {
			return ErrFileNotFound
		}
		if _, err := q.db.Exec(ctx, `DELETE FROM files WHERE uuid = $1`, file.UUID); err != nil {
			return err
		}
		return q.ChargeQuota(ctx, ownerID, -file.SizeBytes)
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}
