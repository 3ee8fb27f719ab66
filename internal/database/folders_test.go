package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateFolderPathMaterializesAncestors(t *testing.T) {
	user := createTestUser(t, 1<<30)
	ctx := context.Background()

	folder, err := testStore.CreateFolderPath(ctx, user.ID, "/a/b/c")
	require.NoError(t, err)
	require.Equal(t, "/a/b/c", folder.Path)

	// Every prefix exists, each parented on the previous one.
	root, err := testStore.GetFolderByPath(ctx, user.ID, "/")
	require.NoError(t, err)

	a, err := testStore.GetFolderByPath(ctx, user.ID, "/a")
	require.NoError(t, err)
	require.NotNil(t, a)
	require.Equal(t, root.ID, *a.ParentID)

	b, err := testStore.GetFolderByPath(ctx, user.ID, "/a/b")
	require.NoError(t, err)
	require.NotNil(t, b)
	require.Equal(t, a.ID, *b.ParentID)

	require.Equal(t, b.ID, *folder.ParentID)

	// Exactly three new folders beyond the root, no duplicates.
	all, err := testStore.GetFoldersByOwner(ctx, user.ID, 100, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
}

func TestCreateFolderPathReusesAncestors(t *testing.T) {
	user := createTestUser(t, 1<<30)
	ctx := context.Background()

	first, err := testStore.CreateFolderPath(ctx, user.ID, "/docs/reports")
	require.NoError(t, err)

	// A sibling under the same ancestor reuses it instead of failing.
	second, err := testStore.CreateFolderPath(ctx, user.ID, "/docs/invoices")
	require.NoError(t, err)
	require.Equal(t, *first.ParentID, *second.ParentID)
}

func TestCreateFolderPathDuplicate(t *testing.T) {
	user := createTestUser(t, 1<<30)
	ctx := context.Background()

	_, err := testStore.CreateFolderPath(ctx, user.ID, "/dup")
	require.NoError(t, err)

	_, err = testStore.CreateFolderPath(ctx, user.ID, "/dup")
	require.ErrorIs(t, err, ErrFolderExists)
}

func TestFolderPathsScopedPerOwner(t *testing.T) {
	alice := createTestUser(t, 1<<30)
	bob := createTestUser(t, 1<<30)
	ctx := context.Background()

	_, err := testStore.CreateFolderPath(ctx, alice.ID, "/shared-name")
	require.NoError(t, err)

	// Same path in another namespace is not a conflict.
	_, err = testStore.CreateFolderPath(ctx, bob.ID, "/shared-name")
	require.NoError(t, err)

	// And it does not resolve across namespaces.
	found, err := testStore.GetFolderByPath(ctx, bob.ID, "/shared-name")
	require.NoError(t, err)
	require.Equal(t, bob.ID, found.OwnerID)
}

func TestGetFilesRecursive(t *testing.T) {
	user := createTestUser(t, 1<<30)
	ctx := context.Background()

	top, err := testStore.CreateFolderPath(ctx, user.ID, "/tree")
	require.NoError(t, err)
	deep, err := testStore.CreateFolderPath(ctx, user.ID, "/tree/x/y")
	require.NoError(t, err)

	f1 := createTestFile(t, user.ID, top.ID, "/tree/top.txt", 10)
	f2 := createTestFile(t, user.ID, deep.ID, "/tree/x/y/deep.txt", 20)

	// A file outside the subtree must not be picked up.
	root, err := testStore.GetFolderByPath(ctx, user.ID, "/")
	require.NoError(t, err)
	createTestFile(t, user.ID, root.ID, "/outside.txt", 30)

	files, err := testStore.GetFilesRecursive(ctx, top.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)

	paths := []string{files[0].Path, files[1].Path}
	require.ElementsMatch(t, []string{f1.Path, f2.Path}, paths)
}

func TestDeleteFolderTree(t *testing.T) {
	user := createTestUser(t, 1<<30)
	ctx := context.Background()

	top, err := testStore.CreateFolderPath(ctx, user.ID, "/victim")
	require.NoError(t, err)
	sub, err := testStore.CreateFolderPath(ctx, user.ID, "/victim/sub")
	require.NoError(t, err)

	f1 := createTestFile(t, user.ID, top.ID, "/victim/a.txt", 100)
	f2 := createTestFile(t, user.ID, sub.ID, "/victim/sub/b.txt", 200)

	blobIDs, err := testStore.DeleteFolderTree(ctx, user.ID, "/victim")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{f1.UUID.String(), f2.UUID.String()}, uuidStrings(blobIDs))

	// Folders, files and the quota charge are all gone together.
	gone, err := testStore.GetFolderByPath(ctx, user.ID, "/victim/sub")
	require.NoError(t, err)
	require.Nil(t, gone)

	goneFile, err := testStore.GetFileByPath(ctx, user.ID, "/victim/sub/b.txt")
	require.NoError(t, err)
	require.Nil(t, goneFile)

	owner, err := testStore.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.Zero(t, owner.UsedSpaceBytes)
}

func TestDeleteFolderTreeRootForbidden(t *testing.T) {
	user := createTestUser(t, 1<<30)

	_, err := testStore.DeleteFolderTree(context.Background(), user.ID, "/")
	require.ErrorIs(t, err, ErrRootFolder)

	root, err := testStore.GetFolderByPath(context.Background(), user.ID, "/")
	require.NoError(t, err)
	require.NotNil(t, root)
}

func TestDeleteFolderTreeNotFound(t *testing.T) {
	user := createTestUser(t, 1<<30)

	_, err := testStore.DeleteFolderTree(context.Background(), user.ID, "/missing")
	require.ErrorIs(t, err, ErrFolderNotFound)
}
