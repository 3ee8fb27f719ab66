package database

import (
	"context"
	"errors"
	"strings"

	"filebox/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func scanFolder(row pgx.Row) (*models.Folder, error) {
	var folder models.Folder
	err := row.Scan(
		&folder.ID,
		&folder.OwnerID,
		&folder.ParentID,
		&folder.Path,
		&folder.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &folder, nil
}

// GetFolderByPath is an exact, case-sensitive match on the normalized
// path within the owner's namespace. Returns nil when absent.
func (q *Queries) GetFolderByPath(ctx context.Context, ownerID int64, path string) (*models.Folder, error) {
	query := `
		SELECT id, owner_id, parent_id, path, created_at
		FROM folders
		WHERE owner_id = $1 AND path = $2
	`
	return scanFolder(q.db.QueryRow(ctx, query, ownerID, path))
}

func (q *Queries) GetFoldersByOwner(ctx context.Context, ownerID int64, limit int, offset int) ([]models.Folder, error) {
	query := `
		SELECT id, owner_id, parent_id, path, created_at
		FROM folders
		WHERE owner_id = $1
		ORDER BY id LIMIT $2 OFFSET $3
	`
	return q.queryFolders(ctx, query, ownerID, limit, offset)
}

// GetSubfolders lists direct children only, one level deep.
func (q *Queries) GetSubfolders(ctx context.Context, folderID int64, limit int, offset int) ([]models.Folder, error) {
	query := `
		SELECT id, owner_id, parent_id, path, created_at
		FROM folders
		WHERE parent_id = $1
		ORDER BY id LIMIT $2 OFFSET $3
	`
	return q.queryFolders(ctx, query, folderID, limit, offset)
}

func (q *Queries) queryFolders(ctx context.Context, query string, args ...interface{}) ([]models.Folder, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var folders []models.Folder
	for rows.Next() {
		var folder models.Folder
		err := rows.Scan(
			&folder.ID,
			&folder.OwnerID,
			&folder.ParentID,
			&folder.Path,
			&folder.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		folders = append(folders, folder)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if folders == nil {
		return []models.Folder{}, nil
	}

	return folders, nil
}

func (q *Queries) InsertFolder(ctx context.Context, ownerID int64, path string, parentID *int64) (*models.Folder, error) {
	query := `
		INSERT INTO folders (owner_id, parent_id, path)
		VALUES ($1, $2, $3)
		RETURNING id, owner_id, parent_id, path, created_at
	`
	folder, err := scanFolder(q.db.QueryRow(ctx, query, ownerID, parentID, path))
	if err != nil {
		if isUniqueViolation(err, "folders_owner_id_path_key") {
			return nil, ErrFolderExists
		}
		return nil, err
	}
	return folder, nil
}

// GetFilesRecursive returns every file in the folder and all of its
// descendants. Recursion depth is bounded by the actual tree depth;
// cycles are impossible because a folder's parent must already exist
// when the row is inserted.
func (q *Queries) GetFilesRecursive(ctx context.Context, folderID int64) ([]models.File, error) {
	query := `
		WITH RECURSIVE subtree AS (
			SELECT id FROM folders WHERE id = $1

			UNION ALL

			SELECT f.id
			FROM folders f
			JOIN subtree s ON f.parent_id = s.id
		)
		SELECT ` + fileColumns + `
		FROM files
		WHERE folder_id IN (SELECT id FROM subtree)
	`
	return q.queryFiles(ctx, query, folderID)
}

var errAncestorRace = errors.New("ancestor folder created concurrently")

// CreateFolderPath creates the folder at path, materializing every
// missing ancestor on the way down from the root. Ancestors that exist
// are reused; the unique (owner_id, path) constraint backstops the
// existence checks, and a conflicting insert of an ancestor by a
// concurrent request retries the whole transaction so the new row is
// picked up instead of duplicated.
func (s *Store) CreateFolderPath(ctx context.Context, ownerID int64, path string) (*models.Folder, error) {
	const maxRetries = 3

	var folder *models.Folder
	for i := 0; i < maxRetries; i++ {
		err := s.ExecTx(ctx, func(q *Queries) error {
			var err error
			folder, err = q.createFolderPath(ctx, ownerID, path)
			return err
		})
		if errors.Is(err, errAncestorRace) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return folder, nil
	}
	return nil, errAncestorRace
}

func (q *Queries) createFolderPath(ctx context.Context, ownerID int64, path string) (*models.Folder, error) {
	if existing, err := q.GetFolderByPath(ctx, ownerID, path); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrFolderExists
	}

	root, err := q.GetFolderByPath(ctx, ownerID, "/")
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, ErrFolderNotFound
	}

	parentID := root.ID
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i := range segments {
		prefix := "/" + strings.Join(segments[:i+1], "/")
		existing, err := q.GetFolderByPath(ctx, ownerID, prefix)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			parentID = existing.ID
			continue
		}

		created, err := q.InsertFolder(ctx, ownerID, prefix, &parentID)
		if errors.Is(err, ErrFolderExists) {
			if prefix == path {
				// Lost the race for the requested folder itself.
				return nil, ErrFolderExists
			}
			return nil, errAncestorRace
		}
		if err != nil {
			return nil, err
		}
		if prefix == path {
			return created, nil
		}
		parentID = created.ID
	}

	// Unreachable for a validated non-root path.
	return nil, ErrFolderExists
}

// DeleteFolderTree removes the folder and its whole subtree. File rows
// disappear via the relational cascade, so the subtree's files are
// collected first and their blob keys returned for physical cleanup;
// the owner's used-space ledger is reconciled in the same transaction.
// The root folder is permanent for the lifetime of the user.
func (s *Store) DeleteFolderTree(ctx context.Context, ownerID int64, path string) ([]uuid.UUID, error) {
	if path == "/" {
		return nil, ErrRootFolder
	}

	var blobIDs []uuid.UUID
	err := s.ExecTx(ctx, func(q *Queries) error {
		folder, err := q.GetFolderByPath(ctx, ownerID, path)
		if err != nil {
			return err
		}
		if folder == nil {
			return ErrFolderNotFound
		}

		files, err := q.GetFilesRecursive(ctx, folder.ID)
		if err != nil {
			return err
		}

		blobIDs = blobIDs[:0]
		var totalSize int64
		for _, f := range files {
			blobIDs = append(blobIDs, f.UUID)
			totalSize += f.SizeBytes
		}

		if _, err := q.db.Exec(ctx, `DELETE FROM folders WHERE id = $1`, folder.ID); err != nil {
			return err
		}

		if totalSize > 0 {
			return q.ChargeQuota(ctx, ownerID, -totalSize)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blobIDs, nil
}
