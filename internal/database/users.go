package database

import (
	"context"
	"errors"

	"filebox/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, username, email, password_hash, is_super_user, storage_quota_bytes, used_space_bytes, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.IsSuperUser,
		&user.StorageQuotaBytes,
		&user.UsedSpaceBytes,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (q *Queries) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(q.db.QueryRow(ctx, query, id))
}

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(q.db.QueryRow(ctx, query, username))
}

func (q *Queries) ListUsers(ctx context.Context, limit int, offset int) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id LIMIT $1 OFFSET $2`
	rows, err := q.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.Email,
			&user.PasswordHash,
			&user.IsSuperUser,
			&user.StorageQuotaBytes,
			&user.UsedSpaceBytes,
			&user.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if users == nil {
		return []models.User{}, nil
	}

	return users, nil
}

type CreateUserParams struct {
	Username          string
	Email             string
	PasswordHash      string
	StorageQuotaBytes int64
	IsSuperUser       bool
}

func (q *Queries) InsertUser(ctx context.Context, arg CreateUserParams) (*models.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash, is_super_user, storage_quota_bytes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns
	user, err := scanUser(q.db.QueryRow(ctx, query,
		arg.Username,
		arg.Email,
		arg.PasswordHash,
		arg.IsSuperUser,
		arg.StorageQuotaBytes,
	))
	if err != nil {
		if isUniqueViolation(err, "users_username_key") {
			return nil, ErrUsernameTaken
		}
		if isUniqueViolation(err, "users_email_key") {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

type UpdateUserParams struct {
	Username     *string
	Email        *string
	PasswordHash *string
}

func (q *Queries) UpdateUser(ctx context.Context, id int64, arg UpdateUserParams) (*models.User, error) {
	query := `
		UPDATE users
		SET username = COALESCE($1, username),
		    email = COALESCE($2, email),
		    password_hash = COALESCE($3, password_hash)
		WHERE id = $4
		RETURNING ` + userColumns
	user, err := scanUser(q.db.QueryRow(ctx, query, arg.Username, arg.Email, arg.PasswordHash, id))
	if err != nil {
		if isUniqueViolation(err, "users_username_key") {
			return nil, ErrUsernameTaken
		}
		if isUniqueViolation(err, "users_email_key") {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ChargeQuota moves the owner's used-space ledger by delta bytes. The
// quota check happens inside the UPDATE itself so that two concurrent
// uploads for the same owner cannot both slip under the limit. Callers
// must run it in the same transaction as the file-row mutation.
func (q *Queries) ChargeQuota(ctx context.Context, userID int64, delta int64) error {
	query := `
		UPDATE users
		SET used_space_bytes = used_space_bytes + $1
		WHERE id = $2 AND used_space_bytes + $1 <= storage_quota_bytes
	`
	res, err := q.db.Exec(ctx, query, delta, userID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrQuotaExceeded
	}
	return nil
}

// CreateUser inserts the user row together with its permanent root
// folder ("/") in one transaction.
func (s *Store) CreateUser(ctx context.Context, arg CreateUserParams) (*models.User, error) {
	var user *models.User
	err := s.ExecTx(ctx, func(q *Queries) error {
		var err error
		user, err = q.InsertUser(ctx, arg)
		if err != nil {
			return err
		}
		_, err = q.InsertFolder(ctx, user.ID, "/", nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser removes the user row (folders, files and sessions go with
// it via the relational cascade) and returns the blob keys of every
// file the user owned so the caller can purge physical storage.
func (s *Store) DeleteUser(ctx context.Context, userID int64) ([]uuid.UUID, error) {
	var blobIDs []uuid.UUID
	err := s.ExecTx(ctx, func(q *Queries) error {
		var err error
		blobIDs, err = q.GetFileUUIDsByOwner(ctx, userID)
		if err != nil {
			return err
		}
		res, err := q.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
		if err != nil {
			return err
		}
		if res.RowsAffected() == 0 {
			return ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blobIDs, nil
}
