package router

import (
	"github.com/fasthttp/router"

	apiHandler "github.com/taskmirror/backend/api/handler"
)

type Handlers struct {
	Task   *apiHandler.TaskHandler
	Sync   *apiHandler.SyncHandler
	Health *apiHandler.HealthHandler
}

func New(handlers Handlers) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Task CRUD
	r.GET("/api/v1/tasks", handlers.Task.GetTasks)
	r.POST("/api/v1/tasks", handlers.Task.CreateTask)
	r.GET("/api/v1/tasks/{id}", handlers.Task.GetTask)
	r.PUT("/api/v1/tasks/{id}", handlers.Task.UpdateTask)
	r.DELETE("/api/v1/tasks/{id}", handlers.Task.DeleteTask)

	// Sync engine
	r.POST("/api/v1/sync/run", handlers.Sync.Run)
	r.GET("/api/v1/sync/status", handlers.Sync.Status)

	return r
}
