package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateUserBootstrapsRootFolder(t *testing.T) {
	user := createTestUser(t, 1<<30)

	root, err := testStore.GetFolderByPath(context.Background(), user.ID, "/")
	require.NoError(t, err)
	require.NotNil(t, root)
	require.Nil(t, root.ParentID)
	require.Equal(t, user.ID, root.OwnerID)

	require.Equal(t, int64(1<<30), user.StorageQuotaBytes)
	require.Zero(t, user.UsedSpaceBytes)
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	user := createTestUser(t, 1<<30)

	_, err := testStore.CreateUser(context.Background(), CreateUserParams{
		Username:          user.Username,
		Email:             "other-" + user.Email,
		PasswordHash:      "not-a-real-hash",
		StorageQuotaBytes: 1 << 30,
	})
	require.ErrorIs(t, err, ErrUsernameTaken)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	user := createTestUser(t, 1<<30)

	_, err := testStore.CreateUser(context.Background(), CreateUserParams{
		Username:          "other" + user.Username,
		Email:             user.Email,
		PasswordHash:      "not-a-real-hash",
		StorageQuotaBytes: 1 << 30,
	})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestGetUserByUsername(t *testing.T) {
	user := createTestUser(t, 1<<30)

	found, err := testStore.GetUserByUsername(context.Background(), user.Username)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, user.ID, found.ID)
	require.NotEmpty(t, found.PasswordHash)

	missing, err := testStore.GetUserByUsername(context.Background(), "nonexistent")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestUpdateUserPartial(t *testing.T) {
	user := createTestUser(t, 1<<30)

	newEmail := "updated-" + user.Email
	updated, err := testStore.UpdateUser(context.Background(), user.ID, UpdateUserParams{
		Email: &newEmail,
	})
	require.NoError(t, err)
	require.Equal(t, newEmail, updated.Email)
	require.Equal(t, user.Username, updated.Username)

	_, err = testStore.UpdateUser(context.Background(), 999999, UpdateUserParams{Email: &newEmail})
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestChargeQuota(t *testing.T) {
	user := createTestUser(t, 1000)
	ctx := context.Background()

	// Filling the quota to the exact limit is allowed.
	require.NoError(t, testStore.ChargeQuota(ctx, user.ID, 1000))

	// One more byte is not.
	require.ErrorIs(t, testStore.ChargeQuota(ctx, user.ID, 1), ErrQuotaExceeded)

	// A refund always goes through and reopens headroom.
	require.NoError(t, testStore.ChargeQuota(ctx, user.ID, -400))
	require.NoError(t, testStore.ChargeQuota(ctx, user.ID, 400))

	found, err := testStore.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1000), found.UsedSpaceBytes)
}

func TestDeleteUserReturnsBlobIDs(t *testing.T) {
	user := createTestUser(t, 1<<30)
	ctx := context.Background()

	folder, err := testStore.CreateFolderPath(ctx, user.ID, "/stuff")
	require.NoError(t, err)

	f1 := createTestFile(t, user.ID, folder.ID, "/stuff/a.txt", 10)
	f2 := createTestFile(t, user.ID, folder.ID, "/stuff/b.txt", 20)

	blobIDs, err := testStore.DeleteUser(ctx, user.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{f1.UUID.String(), f2.UUID.String()}, uuidStrings(blobIDs))

	gone, err := testStore.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.Nil(t, gone)

	// The cascade took the metadata with it.
	files, err := testStore.GetFilesByOwner(ctx, user.ID, 10, 0)
	require.NoError(t, err)
	require.Empty(t, files)

	_, err = testStore.DeleteUser(ctx, user.ID)
	require.ErrorIs(t, err, ErrUserNotFound)
}
