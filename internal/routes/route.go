package routes

import (
	"net/http"

	"geo-bknd/internal/config"
	"geo-bknd/internal/handlers"
	"geo-bknd/internal/logger"
	mdlwr "geo-bknd/internal/middleware"
	"geo-bknd/internal/services"
	"geo-bknd/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/uptrace/bun"
)

func NewRouter(db *bun.DB, cache services.ProjectCache, cfg *config.Config, logr *logger.Logger) http.Handler {
	projectSvc := services.NewProjectService(store.NewProjectStore(db), cache, logr.Component("projects"))
	projectHandler := handlers.NewProjectHandler(projectSvc, logr.Component("http"), cfg.MaxUploadBytes)

	return newRouter(projectHandler, cfg, logr)
}

func newRouter(projectHandler *handlers.ProjectHandler, cfg *config.Config, logr *logger.Logger) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(mdlwr.RequestLogger(logr.Component("access")))
	r.Use(middleware.Recoverer)

	// CORS middleware with config
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", projectHandler.Healthz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/geojson", func(r chi.Router) {
			r.Post("/create", projectHandler.Create)
			r.Get("/read/{project_id}", projectHandler.Read)
			r.Get("/list", projectHandler.List)
			r.Get("/list/paged", projectHandler.ListPaged)
			r.Patch("/update/{project_id}", projectHandler.Update)
			r.Delete("/delete/{project_id}", projectHandler.Delete)
		})
	})

	return r
}
