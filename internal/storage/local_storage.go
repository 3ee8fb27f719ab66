package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// LocalStorage stores blobs on the local filesystem keyed by an opaque
// identifier. Blobs are sharded into two-level directories by id prefix
// to keep directory sizes bounded.
type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, os.ModePerm); err != nil {
		return nil, err
	}
	return &LocalStorage{basePath: basePath}, nil
}

func (ls *LocalStorage) pathFromID(id string) string {
	if len(id) < 4 {
		return filepath.Join(ls.basePath, id)
	}
	return filepath.Join(ls.basePath, id[:2], id[2:4], id)
}

// Save writes the blob and returns the number of bytes written.
func (ls *LocalStorage) Save(id string, data io.Reader) (int64, error) {
	filePath := ls.pathFromID(id)

	if err := os.MkdirAll(filepath.Dir(filePath), os.ModePerm); err != nil {
		return 0, err
	}

	file, err := os.Create(filePath)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	return io.Copy(file, data)
}

func (ls *LocalStorage) Get(id string) (io.ReadCloser, error) {
	file, err := os.Open(ls.pathFromID(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob %s not found: %w", id, err)
		}
		return nil, err
	}

	return file, nil
}

// Delete is idempotent: removing an absent blob is not an error.
func (ls *LocalStorage) Delete(id string) error {
	err := os.Remove(ls.pathFromID(id))
	if os.IsNotExist(err) {
		return nil
	}

	return err
}

// DeleteMany removes blobs concurrently, best effort per id. The first
// real failure is reported once all deletions have settled.
func (ls *LocalStorage) DeleteMany(ctx context.Context, ids []string) error {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(16)

	for _, id := range ids {
		g.Go(func() error {
			return ls.Delete(id)
		})
	}

	return g.Wait()
}
