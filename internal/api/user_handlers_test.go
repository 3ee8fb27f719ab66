package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"filebox/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func userRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Post("/api/v1/users/create", testServer.RegisterUserHandler)
	r.Post("/api/v1/auth/login", testServer.LoginHandler)
	r.Post("/api/v1/auth/refresh", testServer.RefreshTokenHandler)
	r.Get("/api/v1/me", testServer.GetCurrentUserHandler)
	r.Get("/api/v1/me/storage", testServer.GetStorageUsageHandler)
	r.Get("/api/v1/users", testServer.ListUsersHandler)
	r.Get("/api/v1/users/{userId}", testServer.GetUserHandler)
	r.Patch("/api/v1/users/{userId}", testServer.UpdateUserHandler)
	r.Delete("/api/v1/users/{userId}", testServer.DeleteUserHandler)
	return r
}

func TestAPI_RegisterUser(t *testing.T) {
	payload := CreateUserRequest{
		Username: "registrant1",
		Email:    "registrant1@example.com",
		Password: "password123",
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest("POST", "/api/v1/users/create", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	userRouter().ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, "body: %s", rr.Body.String())

	var user models.User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &user))
	require.Equal(t, "registrant1", user.Username)
	require.Equal(t, testServer.config.Storage.DefaultQuotaBytes, user.StorageQuotaBytes)
	require.Zero(t, user.UsedSpaceBytes)

	// Registration bootstraps the permanent root folder.
	root, err := testServer.store.GetFolderByPath(context.Background(), user.ID, "/")
	require.NoError(t, err)
	require.NotNil(t, root)

	// The password hash never leaves the server.
	require.NotContains(t, rr.Body.String(), "password_hash")
}

func TestAPI_RegisterUser_Validation(t *testing.T) {
	cases := []CreateUserRequest{
		{Username: "ab", Email: "short@example.com", Password: "x"},
		{Username: "has spaces", Email: "spaces@example.com", Password: "x"},
		{Username: "validname", Email: "not-an-email", Password: "x"},
		{Username: "validname2", Email: "nopass@example.com", Password: ""},
	}
	for _, c := range cases {
		body, _ := json.Marshal(c)
		req := httptest.NewRequest("POST", "/api/v1/users/create", bytes.NewReader(body))
		rr := httptest.NewRecorder()

		userRouter().ServeHTTP(rr, req)
		require.Equal(t, http.StatusBadRequest, rr.Code, "username %q should be rejected", c.Username)
	}
}

func TestAPI_RegisterUser_DuplicateUsername(t *testing.T) {
	user, _ := createAPIUser(t, 1<<30, false)

	body, _ := json.Marshal(CreateUserRequest{
		Username: user.Username,
		Email:    "unique-" + user.Email,
		Password: "password123",
	})
	req := httptest.NewRequest("POST", "/api/v1/users/create", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	userRouter().ServeHTTP(rr, req)
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestAPI_LoginAndRefresh(t *testing.T) {
	user, _ := createAPIUser(t, 1<<30, false)

	body, _ := json.Marshal(LoginRequest{Username: user.Username, Password: "password"})
	req := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	userRouter().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, "body: %s", rr.Body.String())

	var tokens TokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tokens))
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)

	// The refresh token rotates: the old one stops working once used.
	body, _ = json.Marshal(RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	req = httptest.NewRequest("POST", "/api/v1/auth/refresh", bytes.NewReader(body))
	rr = httptest.NewRecorder()
	userRouter().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var rotated TokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rotated))
	require.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)

	body, _ = json.Marshal(RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	req = httptest.NewRequest("POST", "/api/v1/auth/refresh", bytes.NewReader(body))
	rr = httptest.NewRecorder()
	userRouter().ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAPI_Login_WrongPassword(t *testing.T) {
	user, _ := createAPIUser(t, 1<<30, false)

	body, _ := json.Marshal(LoginRequest{Username: user.Username, Password: "wrong"})
	req := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	userRouter().ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAPI_StorageUsage(t *testing.T) {
	_, claims := createAPIUser(t, 1<<30, false)

	uploadViaAPI(t, claims, "", "usage.txt", "ten bytes!")

	req := httptest.NewRequest("GET", "/api/v1/me/storage", nil)
	req = req.WithContext(withClaims(req.Context(), claims))
	rr := httptest.NewRecorder()

	userRouter().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var usage StorageUsageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &usage))
	require.Equal(t, int64(10), usage.UsedBytes)
	require.Equal(t, int64(1<<30), usage.QuotaBytes)
}

func TestAPI_ListUsers_SuperUserOnly(t *testing.T) {
	_, claims := createAPIUser(t, 1<<30, false)
	_, adminClaims := createAPIUser(t, 1<<30, true)

	req := httptest.NewRequest("GET", "/api/v1/users", nil)
	req = req.WithContext(withClaims(req.Context(), claims))
	rr := httptest.NewRecorder()
	userRouter().ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)

	req = httptest.NewRequest("GET", "/api/v1/users", nil)
	req = req.WithContext(withClaims(req.Context(), adminClaims))
	rr = httptest.NewRecorder()
	userRouter().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var users []models.User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &users))
	require.GreaterOrEqual(t, len(users), 2)
}

func TestAPI_GetUser_ForeignAccountHidden(t *testing.T) {
	other, _ := createAPIUser(t, 1<<30, false)
	_, claims := createAPIUser(t, 1<<30, false)

	// Existence is not revealed to other tenants.
	url := fmt.Sprintf("/api/v1/users/%d", other.ID)
	req := httptest.NewRequest("GET", url, nil)
	req = req.WithContext(withClaims(req.Context(), claims))
	rr := httptest.NewRecorder()
	userRouter().ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)

	_, adminClaims := createAPIUser(t, 1<<30, true)
	req = httptest.NewRequest("GET", url, nil)
	req = req.WithContext(withClaims(req.Context(), adminClaims))
	rr = httptest.NewRecorder()
	userRouter().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestAPI_DeleteUser_PurgesBlobs(t *testing.T) {
	user, claims := createAPIUser(t, 1<<30, false)

	uploaded := uploadViaAPI(t, claims, "", "mine.txt", "owned data")

	url := fmt.Sprintf("/api/v1/users/%d", user.ID)
	req := httptest.NewRequest("DELETE", url, nil)
	req = req.WithContext(withClaims(req.Context(), claims))
	rr := httptest.NewRecorder()

	userRouter().ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)

	gone, err := testServer.store.GetUserByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.Nil(t, gone)

	_, err = testServer.storage.Get(uploaded.UUID.String())
	require.Error(t, err, "owned blobs should be purged with the account")
}

func TestAPI_DeleteUser_ForeignAccountForbidden(t *testing.T) {
	other, _ := createAPIUser(t, 1<<30, false)
	_, claims := createAPIUser(t, 1<<30, false)

	url := fmt.Sprintf("/api/v1/users/%d", other.ID)
	req := httptest.NewRequest("DELETE", url, nil)
	req = req.WithContext(withClaims(req.Context(), claims))
	rr := httptest.NewRecorder()

	userRouter().ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)
}
