package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"portscan/scanner"
)

const defaultPorts = "1-1024"

// Defaults applied to scan requests that leave optional fields empty.
type Defaults struct {
	Timeout     time.Duration
	Concurrency int
}

// Server bundles dependencies for HTTP handlers.
type Server struct {
	store    TaskStore
	defaults Defaults
	logger   *slog.Logger
}

// NewServer creates a new API server instance.
func NewServer(store TaskStore, defaults Defaults, logger *slog.Logger) *Server {
	return &Server{store: store, defaults: defaults, logger: logger}
}

// RegisterRoutes attaches handlers to the provided Gin router group.
func (s *Server) RegisterRoutes(routes gin.IRoutes) {
	routes.POST("/scans", s.createScanHandler)
	routes.GET("/scans/:id", s.getScanHandler)
}

// @Summary      Create a new scan task
// @Description  Validates the port expression, persists the task and queues it for background workers. Poll GET /scans/{id} for the outcome.
// @Tags         Scans
// @Accept       json
// @Produce      json
// @Param        scanRequest  body      CreateScanRequest     true  "Scan request parameters"
// @Success      202          {object}  ScanAcceptedResponse
// @Failure      400          {object}  ErrorResponse
// @Failure      401          {object}  ErrorResponse
// @Failure      429          {object}  ErrorResponse
// @Failure      500          {object}  ErrorResponse
// @Security     ApiKeyAuth
// @Router       /scans [post]
func (s *Server) createScanHandler(c *gin.Context) {
	var req CreateScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid request payload: %v", err)})
		return
	}
	if req.Ports == "" {
		req.Ports = defaultPorts
	}
	if _, err := scanner.ResolvePorts(req.Ports); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	timeoutMS := req.TimeoutMS
	if timeoutMS == 0 {
		timeoutMS = int(s.defaults.Timeout.Milliseconds())
	}
	concurrency := req.Concurrency
	if concurrency == 0 {
		concurrency = s.defaults.Concurrency
	}

	task := &ScanTask{
		ID:          uuid.NewString(),
		Status:      StatusPending,
		Host:        req.Host,
		Ports:       req.Ports,
		TimeoutMS:   timeoutMS,
		Concurrency: concurrency,
		CreatedAt:   time.Now().UTC(),
	}

	ctx := c.Request.Context()
	if err := s.store.CreateTask(ctx, task); err != nil {
		s.logger.Error("failed to persist task", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to persist task"})
		return
	}

	if err := s.store.PushToQueue(ctx, task.ID); err != nil {
		s.logger.Error("failed to queue task", "task_id", task.ID, "error", err)
		task.Status = StatusFailed
		task.Error = "failed to queue task"
		now := time.Now().UTC()
		task.CompletedAt = &now
		_ = s.store.UpdateTask(ctx, task)

		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to queue task"})
		return
	}

	c.JSON(http.StatusAccepted, ScanAcceptedResponse{ID: task.ID, Status: task.Status})
}

// @Summary      Get scan status and results
// @Description  Returns the task snapshot. results holds one entry per port once status is completed.
// @Tags         Scans
// @Produce      json
// @Param        id   path      string  true  "Scan Task ID (UUID v4)"
// @Success      200  {object}  ScanTask
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      429  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Security     ApiKeyAuth
// @Router       /scans/{id} [get]
func (s *Server) getScanHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil || id.Version() != 4 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid task id format"})
		return
	}
	task, err := s.store.GetTask(c.Request.Context(), id.String())
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "task not found"})
			return
		}
		s.logger.Error("failed to load task", "task_id", id.String(), "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load task"})
		return
	}

	c.JSON(http.StatusOK, task)
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
