// Package server exposes the thin HTTP surface in front of the registry
// and the dispatch queue: list/fetch/upload task schemas, and enqueue a
// run.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/jtarchie/discovery/dispatch"
	"github.com/jtarchie/discovery/storage"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	slogecho "github.com/samber/slog-echo"
)

type handlers struct {
	driver    storage.Driver
	queue     *dispatch.Queue
	logger    *slog.Logger
	validator *validator.Validate
}

// New builds the router: registry CRUD under /tasks plus /tasks/run to
// enqueue a dispatch envelope.
func New(driver storage.Driver, queue *dispatch.Queue, logger *slog.Logger) *echo.Echo {
	router := echo.New()
	router.Use(slogecho.New(logger))
	router.Use(middleware.Recover())

	h := &handlers{
		driver:    driver,
		queue:     queue,
		logger:    logger,
		validator: validator.New(),
	}

	router.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	router.GET("/tasks", h.listTasks)
	router.GET("/tasks/:id", h.getTask)
	router.POST("/tasks", h.uploadTask)
	router.POST("/tasks/run", h.runTask)

	return router
}
