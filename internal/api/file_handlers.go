package api

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"filebox/internal/database"
	"filebox/internal/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

func (s *Server) ListFilesHandler(w http.ResponseWriter, r *http.Request) {
	ownerID := resolveOwner(r)
	limit, offset := pagination(r)

	files, err := s.store.GetFilesByOwner(r.Context(), ownerID, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, kindInternal, "failed to list files")
		return
	}

	writeJSON(w, http.StatusOK, files)
}

func (s *Server) GetFileHandler(w http.ResponseWriter, r *http.Request) {
	ownerID := resolveOwner(r)

	path := wildcardPath(chi.URLParam(r, "*"))
	if !validFilePath(path) {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "invalid file path")
		return
	}

	file, err := s.store.GetFileByPath(r.Context(), ownerID, path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, kindInternal, "failed to retrieve file")
		return
	}
	if file == nil {
		writeError(w, http.StatusNotFound, kindNotFound, fmt.Sprintf("file %s not found", path))
		return
	}

	writeJSON(w, http.StatusOK, file)
}

func (s *Server) DownloadFileHandler(w http.ResponseWriter, r *http.Request) {
	ownerID := resolveOwner(r)

	path := wildcardPath(chi.URLParam(r, "*"))
	if !validFilePath(path) {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "invalid file path")
		return
	}

	file, err := s.store.GetFileByPath(r.Context(), ownerID, path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, kindInternal, "failed to retrieve file")
		return
	}
	if file == nil {
		writeError(w, http.StatusNotFound, kindNotFound, fmt.Sprintf("file %s not found", path))
		return
	}

	stream, err := s.storage.Get(file.UUID.String())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, kindNotFound, fmt.Sprintf("file %s not found", path))
		} else {
			writeError(w, http.StatusServiceUnavailable, kindUnavailable, "blob store unavailable")
		}
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Disposition", `attachment; filename="`+file.Name+`"`)
	w.Header().Set("Content-Type", file.MimeType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", file.SizeBytes))

	io.Copy(w, stream)
}

// UploadFileHandler runs the upload state machine: validate path and
// folder, check collision, check size and quota, write the blob, then
// commit the record. The record insert re-checks collision and quota
// under the unique constraint and ledger guard; if it loses that race
// the orphaned blob is deleted as compensation.
func (s *Server) UploadFileHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, kindPayloadTooLarge, "error parsing multipart form")
		return
	}

	upload, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "missing file field")
		return
	}
	defer upload.Close()

	folderPath := normalizePath(r.FormValue("path"))
	if r.FormValue("path") == "" {
		folderPath = "/"
	}
	if !validFolderPath(folderPath) {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "invalid folder path")
		return
	}

	folder, err := s.store.GetFolderByPath(r.Context(), claims.UserID, folderPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, kindInternal, "failed to resolve folder")
		return
	}
	if folder == nil {
		writeError(w, http.StatusNotFound, kindNotFound, fmt.Sprintf("folder %s not found", folderPath))
		return
	}

	name := sanitizeFilename(header.Filename)
	fullPath := joinFilePath(folderPath, name)
	if name == "" || !validFilePath(fullPath) {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "invalid file name")
		return
	}

	if existing, err := s.store.GetFileByPath(r.Context(), claims.UserID, fullPath); err != nil {
		writeError(w, http.StatusInternalServerError, kindInternal, "failed to check for collisions")
		return
	} else if existing != nil {
		writeError(w, http.StatusConflict, kindConflict, fmt.Sprintf("%s already exists", fullPath))
		return
	}

	if err := s.checkUploadSize(r, claims.UserID, header.Size); err != nil {
		s.writeSizeError(w, err)
		return
	}

	blobID := uuid.New()
	written, err := s.storage.Save(blobID.String(), upload)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, kindUnavailable, "failed to store file")
		return
	}

	file, err := s.store.CreateFile(r.Context(), database.CreateFileParams{
		UUID:      blobID,
		OwnerID:   claims.UserID,
		FolderID:  folder.ID,
		Name:      name,
		Path:      fullPath,
		SizeBytes: written,
		MimeType:  uploadMimeType(header),
	})
	if err != nil {
		// The blob is orphaned now; remove it before reporting.
		if delErr := s.storage.Delete(blobID.String()); delErr != nil {
			log.Printf("WARN: failed to delete orphaned blob %s: %v", blobID, delErr)
		}
		writeStoreError(w, err)
		return
	}

	s.wsHub.Notify(claims.UserID, websocket.EventFileCreated, file)
	writeJSON(w, http.StatusCreated, file)
}

// UploadBatchHandler writes all blobs concurrently, then creates every
// record in one transaction. Any collision fails the whole batch and
// the already-written blobs are deleted, so either every file of the
// batch becomes visible or none does.
func (s *Server) UploadBatchHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, kindPayloadTooLarge, "error parsing multipart form")
		return
	}

	folderPath := normalizePath(r.FormValue("path"))
	if r.FormValue("path") == "" {
		folderPath = "/"
	}
	if !validFolderPath(folderPath) {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "invalid folder path")
		return
	}

	folder, err := s.store.GetFolderByPath(r.Context(), claims.UserID, folderPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, kindInternal, "failed to resolve folder")
		return
	}
	if folder == nil {
		writeError(w, http.StatusNotFound, kindNotFound, fmt.Sprintf("folder %s not found", folderPath))
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "missing files field")
		return
	}

	var totalSize int64
	seen := make(map[string]bool, len(headers))
	params := make([]database.CreateFileParams, 0, len(headers))
	for _, header := range headers {
		name := sanitizeFilename(header.Filename)
		fullPath := joinFilePath(folderPath, name)
		if name == "" || !validFilePath(fullPath) {
			writeError(w, http.StatusBadRequest, kindInvalidRequest, fmt.Sprintf("invalid file name %q", header.Filename))
			return
		}
		if seen[fullPath] {
			writeError(w, http.StatusConflict, kindConflict, fmt.Sprintf("duplicate path %s in batch", fullPath))
			return
		}
		seen[fullPath] = true

		if existing, err := s.store.GetFileByPath(r.Context(), claims.UserID, fullPath); err != nil {
			writeError(w, http.StatusInternalServerError, kindInternal, "failed to check for collisions")
			return
		} else if existing != nil {
			writeError(w, http.StatusConflict, kindConflict, fmt.Sprintf("%s already exists", fullPath))
			return
		}

		totalSize += header.Size
		params = append(params, database.CreateFileParams{
			UUID:      uuid.New(),
			OwnerID:   claims.UserID,
			FolderID:  folder.ID,
			Name:      name,
			Path:      fullPath,
			SizeBytes: header.Size,
			MimeType:  uploadMimeType(header),
		})
	}

	if err := s.checkUploadSize(r, claims.UserID, totalSize); err != nil {
		s.writeSizeError(w, err)
		return
	}

	blobIDs := make([]string, len(params))
	for i := range params {
		blobIDs[i] = params[i].UUID.String()
	}

	g, ctx := errgroup.WithContext(r.Context())
	for i := range params {
		arg := params[i]
		header := headers[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			part, err := header.Open()
			if err != nil {
				return err
			}
			defer part.Close()
			_, err = s.storage.Save(arg.UUID.String(), part)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		// No metadata exists yet; roll back the blobs that made it.
		if delErr := s.storage.DeleteMany(r.Context(), blobIDs); delErr != nil {
			log.Printf("WARN: failed to clean up batch blobs: %v", delErr)
		}
		writeError(w, http.StatusServiceUnavailable, kindUnavailable, "failed to store files")
		return
	}

	files, err := s.store.CreateFileBatch(r.Context(), claims.UserID, params)
	if err != nil {
		if delErr := s.storage.DeleteMany(r.Context(), blobIDs); delErr != nil {
			log.Printf("WARN: failed to clean up batch blobs: %v", delErr)
		}
		writeStoreError(w, err)
		return
	}

	for i := range files {
		s.wsHub.Notify(claims.UserID, websocket.EventFileCreated, &files[i])
	}
	writeJSON(w, http.StatusCreated, files)
}

// DeleteFileHandler treats the metadata record as the source of truth:
// the row and quota refund commit first, then the blob is removed best
// effort.
func (s *Server) DeleteFileHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	path := wildcardPath(chi.URLParam(r, "*"))
	if !validFilePath(path) {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "invalid file path")
		return
	}

	file, err := s.store.DeleteFile(r.Context(), claims.UserID, path)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if err := s.storage.Delete(file.UUID.String()); err != nil {
		log.Printf("WARN: failed to delete blob %s for %s: %v", file.UUID, path, err)
	}

	s.wsHub.Notify(claims.UserID, websocket.EventFileDeleted, file)
	w.WriteHeader(http.StatusNoContent)
}

var (
	errPayloadTooLarge     = errors.New("file exceeds the size limit")
	errInsufficientStorage = errors.New("storage quota exceeded")
)

// checkUploadSize enforces the global size limit and the owner's quota
// before any bytes reach the blob store. The quota re-check inside the
// record transaction remains the authoritative guard.
func (s *Server) checkUploadSize(r *http.Request, ownerID int64, size int64) error {
	if size > s.config.Storage.SizeLimitBytes {
		return errPayloadTooLarge
	}

	user, err := s.store.GetUserByID(r.Context(), ownerID)
	if err != nil {
		return err
	}
	if user == nil {
		return database.ErrUserNotFound
	}
	if user.UsedSpaceBytes+size > user.StorageQuotaBytes {
		return errInsufficientStorage
	}
	return nil
}

func (s *Server) writeSizeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errPayloadTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, kindPayloadTooLarge, err.Error())
	case errors.Is(err, errInsufficientStorage):
		writeError(w, http.StatusInsufficientStorage, kindInsufficientStorage, err.Error())
	default:
		writeStoreError(w, err)
	}
}

// uploadMimeType prefers the client-declared part type, falling back to
// the extension when the client sent nothing or the generic default.
func uploadMimeType(header *multipart.FileHeader) string {
	ct := header.Header.Get("Content-Type")
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}
	if byExt := mime.TypeByExtension(filepath.Ext(header.Filename)); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}
