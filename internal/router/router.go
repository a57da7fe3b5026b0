// Package router assembles the HTTP routes.
package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/project-management-api/internal/constants"
	"github.com/yukikurage/project-management-api/internal/handlers"
	"github.com/yukikurage/project-management-api/internal/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Handlers struct {
	Health    *handlers.HealthHandler
	Events    *handlers.EventHandler
	Workspace *handlers.WorkspaceHandler
	Project   *handlers.ProjectHandler
	Task      *handlers.TaskHandler
	Comment   *handlers.CommentHandler
}

type Options struct {
	ServiceName  string
	SessionStore sessions.Store
	Verifier     middleware.TokenVerifier
	// SecureCookies marks the session cookie Secure; set in release mode.
	SecureCookies bool
	// AllowedOrigins lists browser origins allowed to call the API. Empty
	// allows any origin without credentials.
	AllowedOrigins []string
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With", constants.HeaderEventSignature},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func New(h Handlers, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(cors.New(corsConfig(opts.AllowedOrigins)))
	r.Use(otelgin.Middleware(opts.ServiceName))
	r.Use(middleware.RequestLogger())

	opts.SessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   constants.SessionMaxAge,
		HttpOnly: true,
		Secure:   opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(constants.SessionCookieName, opts.SessionStore))

	r.GET("/", h.Health.Liveness)
	r.GET("/health", h.Health.Health)

	api := r.Group("/api")
	{
		// Event ingress authenticates with its own signature
		api.POST("/inngest", h.Events.Ingest)

		protected := api.Group("")
		protected.Use(middleware.RequireAuth(opts.Verifier))
		{
			protected.GET("/workspaces", h.Workspace.GetUserWorkspaces)
			protected.POST("/workspaces/add-member", h.Workspace.AddMember)

			protected.POST("/projects", h.Project.CreateProject)
			protected.PUT("/projects", h.Project.UpdateProject)
			protected.POST("/projects/:projectId/addMember", h.Project.AddMember)

			protected.POST("/tasks", h.Task.CreateTask)
			protected.PUT("/tasks/:id", h.Task.UpdateTask)
			protected.POST("/tasks/delete", h.Task.DeleteTasks)

			protected.POST("/comments", h.Comment.AddComment)
			protected.GET("/comments/:taskId", h.Comment.GetTaskComments)
		}
	}

	return r
}
