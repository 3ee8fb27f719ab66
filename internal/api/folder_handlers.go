package api

import (
	"encoding/json"
	"log"
	"net/http"

	"filebox/internal/models"
	"filebox/internal/websocket"

	"github.com/go-chi/chi/v5"
)

type CreateFolderRequest struct {
	Path string `json:"path" example:"/documents/reports"`
}

func (s *Server) ListFoldersHandler(w http.ResponseWriter, r *http.Request) {
	ownerID := resolveOwner(r)
	limit, offset := pagination(r)

	folders, err := s.store.GetFoldersByOwner(r.Context(), ownerID, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, kindInternal, "failed to list folders")
		return
	}

	writeJSON(w, http.StatusOK, folders)
}

type FolderContents struct {
	Folders []models.Folder `json:"folders"`
	Files   []models.File   `json:"files"`
}

type FolderResponse struct {
	Folder *models.Folder `json:"folder"`
	Items  FolderContents `json:"items"`
}

// GetFolderHandler returns the folder with its direct children, one
// level deep.
func (s *Server) GetFolderHandler(w http.ResponseWriter, r *http.Request) {
	ownerID := resolveOwner(r)

	path := wildcardPath(chi.URLParam(r, "*"))
	if !validFolderPath(path) {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "invalid folder path")
		return
	}

	folder, err := s.store.GetFolderByPath(r.Context(), ownerID, path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, kindInternal, "failed to retrieve folder")
		return
	}
	if folder == nil {
		writeError(w, http.StatusNotFound, kindNotFound, "folder not found")
		return
	}

	limit, offset := pagination(r)
	subfolders, err := s.store.GetSubfolders(r.Context(), folder.ID, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, kindInternal, "failed to list subfolders")
		return
	}
	files, err := s.store.GetFilesByFolderID(r.Context(), folder.ID, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, kindInternal, "failed to list files")
		return
	}

	writeJSON(w, http.StatusOK, FolderResponse{
		Folder: folder,
		Items:  FolderContents{Folders: subfolders, Files: files},
	})
}

func (s *Server) CreateFolderHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	var req CreateFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "invalid request body")
		return
	}

	path := normalizePath(req.Path)
	if !validFolderPath(path) {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "invalid folder path")
		return
	}

	folder, err := s.store.CreateFolderPath(r.Context(), claims.UserID, path)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	s.wsHub.Notify(claims.UserID, websocket.EventFolderCreated, folder)
	writeJSON(w, http.StatusCreated, folder)
}

// DeleteFolderHandler removes the subtree's metadata first, then purges
// the collected blobs best effort; a blob-store failure never resurrects
// the metadata.
func (s *Server) DeleteFolderHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	path := wildcardPath(chi.URLParam(r, "*"))
	if !validFolderPath(path) {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "invalid folder path")
		return
	}

	blobIDs, err := s.store.DeleteFolderTree(r.Context(), claims.UserID, path)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	ids := make([]string, len(blobIDs))
	for i, id := range blobIDs {
		ids[i] = id.String()
	}
	if err := s.storage.DeleteMany(r.Context(), ids); err != nil {
		log.Printf("WARN: failed to purge blobs under deleted folder %s: %v", path, err)
	}

	s.wsHub.Notify(claims.UserID, websocket.EventFolderDeleted, map[string]string{"path": path})
	w.WriteHeader(http.StatusNoContent)
}
