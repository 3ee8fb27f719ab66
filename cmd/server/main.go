// @title           Filebox API
// @version         1.0
// @description     Multi-tenant file storage with per-user folder trees and quotas.
// @host            localhost
// @schemes         http https
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"log"
	"net/http"

	"filebox/internal/api"
	"filebox/internal/config"
	"filebox/internal/database"
	"filebox/internal/storage"
	"filebox/internal/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "filebox/docs"

	httpSwagger "github.com/swaggo/http-swagger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	dbpool, err := pgxpool.New(context.Background(), cfg.DB.Source)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer dbpool.Close()

	if err := dbpool.Ping(context.Background()); err != nil {
		log.Fatalf("failed to ping database: %v", err)
	}
	log.Println("connected to database")

	localStorage, err := storage.NewLocalStorage(cfg.Storage.Path)
	if err != nil {
		log.Fatalf("failed to initialize local storage: %v", err)
	}
	log.Printf("blobs will be stored in: %s", cfg.Storage.Path)

	wsHub := websocket.NewHub()
	go wsHub.Run()

	store := database.NewStore(dbpool)
	server := api.NewServer(cfg, store, localStorage, wsHub)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}))
	r.Use(api.MetricsMiddleware)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Get("/ws", server.ServeWsHandler)

	r.Get("/health", server.HealthCheckHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/v1/auth/login", server.LoginHandler)
	r.Post("/api/v1/auth/refresh", server.RefreshTokenHandler)
	r.Post("/api/v1/users/create", server.RegisterUserHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(server.AuthMiddleware)

		r.Get("/me", server.GetCurrentUserHandler)
		r.Get("/me/storage", server.GetStorageUsageHandler)

		r.Get("/users", server.ListUsersHandler)
		r.Get("/users/{userId}", server.GetUserHandler)
		r.Patch("/users/{userId}", server.UpdateUserHandler)
		r.Delete("/users/{userId}", server.DeleteUserHandler)

		r.Get("/sessions", server.ListSessionsHandler)
		r.Post("/sessions/terminate_all", server.TerminateAllSessionsHandler)
		r.Delete("/sessions/{sessionId}", server.DeleteSessionHandler)

		r.Get("/folders", server.ListFoldersHandler)
		r.Post("/folders", server.CreateFolderHandler)
		r.Get("/folders/*", server.GetFolderHandler)
		r.Delete("/folders/*", server.DeleteFolderHandler)

		r.Get("/files", server.ListFilesHandler)
		r.Get("/files/download/*", server.DownloadFileHandler)
		r.Get("/files/*", server.GetFileHandler)
		r.Delete("/files/*", server.DeleteFileHandler)

		r.Group(func(r chi.Router) {
			r.Use(server.LimitUploadSize)
			r.Post("/files/upload", server.UploadFileHandler)
			r.Post("/files/upload/batch", server.UploadBatchHandler)
		})
	})

	log.Println("starting server on :8080")
	if err := http.ListenAndServe(":8080", r); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
