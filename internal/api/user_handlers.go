package api

import (
	"encoding/json"
	"log"
	"net/http"
	"regexp"
	"strconv"

	"filebox/internal/auth"
	"filebox/internal/database"

	"github.com/go-chi/chi/v5"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9]{3,20}$`)
	emailPattern    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

type CreateUserRequest struct {
	Username string `json:"username" example:"alice42"`
	Email    string `json:"email" example:"alice@example.com"`
	Password string `json:"password" example:"password123"`
}

// @Summary      Register a new user
// @Description  Creates a user account with the default storage quota and its permanent root folder.
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        createUserRequest  body      CreateUserRequest  true  "New user"
// @Success      201                {object}  models.User
// @Failure      400                {object}  errorResponse
// @Failure      409                {object}  errorResponse
// @Router       /users/create [post]
func (s *Server) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "invalid request body")
		return
	}

	if !usernamePattern.MatchString(req.Username) {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "username must be 3-20 alphanumeric characters")
		return
	}
	if !emailPattern.MatchString(req.Email) {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "invalid email address")
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "password is required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, kindInternal, "internal server error")
		return
	}

	user, err := s.store.CreateUser(r.Context(), database.CreateUserParams{
		Username:          req.Username,
		Email:             req.Email,
		PasswordHash:      hash,
		StorageQuotaBytes: s.config.Storage.DefaultQuotaBytes,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// @Summary      Get current user info
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.User
// @Failure      401  {string}  string "Unauthorized"
// @Router       /me [get]
func (s *Server) GetCurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, kindInternal, "internal server error")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, kindNotFound, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type StorageUsageResponse struct {
	UsedBytes  int64 `json:"used_bytes"`
	QuotaBytes int64 `json:"quota_bytes"`
}

// @Summary      Get storage usage
// @Description  Retrieves the current storage usage and quota for the authenticated user.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  StorageUsageResponse
// @Failure      401  {string}  string "Unauthorized"
// @Router       /me/storage [get]
func (s *Server) GetStorageUsageHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, kindInternal, "internal server error")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, kindNotFound, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, StorageUsageResponse{
		UsedBytes:  user.UsedSpaceBytes,
		QuotaBytes: user.StorageQuotaBytes,
	})
}

// @Summary      List users
// @Description  Super-user only.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   models.User
// @Failure      403  {object}  errorResponse
// @Router       /users [get]
func (s *Server) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	if !claims.IsSuperUser {
		writeError(w, http.StatusForbidden, kindForbidden, "super user access required")
		return
	}

	limit, offset := pagination(r)
	users, err := s.store.ListUsers(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, kindInternal, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, users)
}

// Non-super-users get a 404 for other accounts, never a 403, so the
// response does not reveal whether the account exists.
func (s *Server) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "invalid user id")
		return
	}

	if !claims.IsSuperUser && userID != claims.UserID {
		writeError(w, http.StatusNotFound, kindNotFound, "user not found")
		return
	}

	user, err := s.store.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, kindInternal, "internal server error")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, kindNotFound, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type UpdateUserRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

func (s *Server) UpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "invalid user id")
		return
	}
	if !claims.IsSuperUser && userID != claims.UserID {
		writeError(w, http.StatusForbidden, kindForbidden, "cannot modify another user")
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "invalid request body")
		return
	}

	if req.Username != nil && !usernamePattern.MatchString(*req.Username) {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "username must be 3-20 alphanumeric characters")
		return
	}
	if req.Email != nil && !emailPattern.MatchString(*req.Email) {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "invalid email address")
		return
	}

	params := database.UpdateUserParams{Username: req.Username, Email: req.Email}
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, kindInternal, "internal server error")
			return
		}
		params.PasswordHash = &hash
	}

	user, err := s.store.UpdateUser(r.Context(), userID, params)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// DeleteUserHandler removes the account, all of its metadata through
// the relational cascade, and then purges the owned blobs.
func (s *Server) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "invalid user id")
		return
	}
	if !claims.IsSuperUser && userID != claims.UserID {
		writeError(w, http.StatusForbidden, kindForbidden, "cannot delete another user")
		return
	}

	blobIDs, err := s.store.DeleteUser(r.Context(), userID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	// Metadata is gone; blob removal is best effort.
	ids := make([]string, len(blobIDs))
	for i, id := range blobIDs {
		ids[i] = id.String()
	}
	if err := s.storage.DeleteMany(r.Context(), ids); err != nil {
		log.Printf("WARN: failed to purge blobs for deleted user %d: %v", userID, err)
	}

	w.WriteHeader(http.StatusNoContent)
}

// resolveOwner returns the namespace a request operates on. Super users
// may address another user's namespace with ?owner=<id>; for everyone
// else the parameter is ignored, so foreign paths simply never resolve.
func resolveOwner(r *http.Request) int64 {
	claims := GetUserFromContext(r.Context())
	if claims.IsSuperUser {
		if v := r.URL.Query().Get("owner"); v != "" {
			if id, err := strconv.ParseInt(v, 10, 64); err == nil {
				return id
			}
		}
	}
	return claims.UserID
}

func pagination(r *http.Request) (limit int, offset int) {
	limit = 100
	offset = 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("skip"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
