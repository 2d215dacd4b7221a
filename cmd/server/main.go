package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hsemihaktas/TaskFlow/pkg/config"
	"github.com/hsemihaktas/TaskFlow/pkg/database"
	"github.com/hsemihaktas/TaskFlow/pkg/handlers"
	"github.com/hsemihaktas/TaskFlow/pkg/metrics"
	customMiddleware "github.com/hsemihaktas/TaskFlow/pkg/middleware"
	"github.com/hsemihaktas/TaskFlow/pkg/worker"
)

func main() {
	cfg := config.GetCached()
	if err := cfg.Validate(); err != nil {
		fmt.Printf("[error] configuration: %v\n", err)
		os.Exit(1)
	}

	store, err := database.NewStore(database.StoreConfig{
		PostgresDSN: cfg.PostgresDSN,
		SupabaseURL: cfg.SupabaseURL,
		SupabaseKey: cfg.SupabaseKey,
		Debug:       cfg.Debug,
	})
	if err != nil {
		fmt.Printf("[error] store init: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	router := chi.NewRouter()
	setupMiddleware(router, cfg)
	setupRoutes(router, cfg, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	expiry := worker.NewExpiryWorker(store, time.Hour)
	go expiry.Start(ctx)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		fmt.Printf("listening on :%s (%s)\n", cfg.Port, cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("[error] server: %v\n", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	fmt.Printf("shutting down\n")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		fmt.Printf("[warn] shutdown: %v\n", err)
	}
}

func setupMiddleware(router *chi.Mux, cfg *config.Config) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	// Normalize path and restore scheme/host before logging and routing
	router.Use(customMiddleware.Normalize())
	router.Use(customMiddleware.Logger(cfg))
	router.Use(customMiddleware.Recovery(cfg))
	router.Use(customMiddleware.CORS(cfg))
	router.Use(metrics.Middleware)
	router.Use(middleware.Timeout(25 * time.Second))
	router.Use(middleware.Compress(5))
	router.Use(customMiddleware.MaxBodySize(1 << 20))

	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

func setupRoutes(router *chi.Mux, cfg *config.Config, store database.StoreInterface) {
	authHandler := handlers.NewAuthHandler(cfg, store)
	healthHandler := handlers.NewHealthHandler(cfg, store)
	profilesHandler := handlers.NewProfilesHandler(cfg, store)
	orgsHandler := handlers.NewOrgsHandler(cfg, store)
	projectsHandler := handlers.NewProjectsHandler(cfg, store)
	tasksHandler := handlers.NewTasksHandler(cfg, store)

	router.Get("/", healthHandler.HealthCheck)
	router.Handle("/metrics", metrics.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.HealthCheck)

		r.Route("/auth", func(r chi.Router) {
			r.Use(customMiddleware.ContentTypeJSON)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.RefreshToken)
			r.Post("/logout", authHandler.Logout)
		})

		// invitation landing page data, readable before login
		r.Get("/invitations/{token}", orgsHandler.GetInvitationByToken)

		// authenticated API
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.AuthMiddleware(cfg))

			r.Get("/auth/me", authHandler.Me)

			r.Route("/profile", func(r chi.Router) {
				r.Get("/", profilesHandler.GetProfile)
				r.Put("/", profilesHandler.UpdateProfile)
			})

			r.Route("/orgs", func(r chi.Router) {
				r.Get("/", orgsHandler.ListMyOrganizations)
				r.Post("/", orgsHandler.CreateOrganization)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", orgsHandler.GetOrganization)
					r.Delete("/", orgsHandler.DeleteOrganization)

					r.Get("/members", orgsHandler.ListMembers)
					r.Put("/members/{memberID}", orgsHandler.UpdateMemberRole)
					r.Delete("/members/{memberID}", orgsHandler.RemoveMember)

					r.Post("/invitations", orgsHandler.InviteMember)

					r.Get("/projects", projectsHandler.ListProjects)
					r.Post("/projects", projectsHandler.CreateProject)
				})
			})

			r.Route("/invitations", func(r chi.Router) {
				r.Get("/", orgsHandler.ListMyInvitations)
				r.Post("/{token}/accept", orgsHandler.AcceptInvitation)
				r.Post("/{token}/decline", orgsHandler.DeclineInvitation)
			})

			r.Route("/projects", func(r chi.Router) {
				r.Get("/grouped", projectsHandler.ListGroupedProjects)

				r.Route("/{projectID}", func(r chi.Router) {
					r.Get("/", projectsHandler.GetProject)
					r.Delete("/", projectsHandler.DeleteProject)
					r.Get("/board", tasksHandler.GetBoard)
					r.Get("/tasks", tasksHandler.ListTasks)
					r.Post("/tasks", tasksHandler.CreateTask)
				})
			})

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/overview", tasksHandler.GetOverview)

				r.Route("/{taskID}", func(r chi.Router) {
					r.Get("/", tasksHandler.GetTask)
					r.Put("/", tasksHandler.UpdateTask)
					r.Delete("/", tasksHandler.DeleteTask)
					r.Patch("/status", tasksHandler.UpdateTaskStatus)
					r.Post("/assignments", tasksHandler.AssignTask)
					r.Delete("/assignments/{userID}", tasksHandler.UnassignTask)
				})
			})
		})
	})
}
