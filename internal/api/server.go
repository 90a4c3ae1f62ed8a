// Package api exposes the planning, dashboard and workflow services over
// HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/openclaw/mission-control/internal/langfuse"
	"github.com/openclaw/mission-control/internal/planning"
	"github.com/openclaw/mission-control/internal/store"
	"github.com/openclaw/mission-control/internal/workflow"
)

// ImportRunner triggers one telemetry import.
type ImportRunner interface {
	Run(ctx context.Context) (*store.ImportRun, error)
}

// Server wires the services into a gin engine.
type Server struct {
	engine   *gin.Engine
	planning *planning.Service
	dash     *langfuse.Dashboard
	importer ImportRunner
	board    *workflow.Board
	log      *slog.Logger
}

// Options carries the collaborators a Server serves. Importer and Board may
// be nil when telemetry import or the workflow root is not configured.
type Options struct {
	Planning    *planning.Service
	Dashboard   *langfuse.Dashboard
	Importer    ImportRunner
	Board       *workflow.Board
	CORSOrigins []string
	Log         *slog.Logger
}

// New builds the HTTP server and its route table.
func New(opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(log))
	engine.Use(metricsMiddleware())

	if len(opts.CORSOrigins) > 0 {
		engine.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	s := &Server{
		engine:   engine,
		planning: opts.Planning,
		dash:     opts.Dashboard,
		importer: opts.Importer,
		board:    opts.Board,
		log:      log,
	}
	s.routes()
	return s
}

// Handler returns the underlying HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info("http server listening", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", metricsHandler())

	v1 := s.engine.Group("/v1")

	p := v1.Group("/planning")
	{
		p.POST("/projects", s.createProject)
		p.GET("/projects", s.listProjects)
		p.GET("/projects/:id", s.getProject)
		p.PATCH("/projects/:id", s.updateProject)
		p.DELETE("/projects/:id", s.deleteProject)

		p.POST("/epics", s.createEpic)
		p.GET("/epics", s.listEpics)
		p.GET("/epics/by-key/:key", s.getEpicByKey)
		p.GET("/epics/:id", s.getEpic)
		p.PATCH("/epics/:id", s.updateEpic)
		p.DELETE("/epics/:id", s.deleteEpic)

		p.POST("/stories", s.createStory)
		p.GET("/stories", s.listStories)
		p.GET("/stories/by-key/:key", s.getStoryByKey)
		p.GET("/stories/:id", s.getStory)
		p.PATCH("/stories/:id", s.updateStory)
		p.DELETE("/stories/:id", s.deleteStory)
		p.GET("/stories/:id/labels", s.storyLabels)
		p.POST("/stories/:id/labels", s.attachStoryLabel)
		p.DELETE("/stories/:id/labels/:label_id", s.detachStoryLabel)

		p.POST("/tasks", s.createTask)
		p.GET("/tasks", s.listTasks)
		p.GET("/tasks/:id", s.getTask)
		p.PATCH("/tasks/:id", s.updateTask)
		p.DELETE("/tasks/:id", s.deleteTask)
		p.GET("/tasks/:id/labels", s.taskLabels)
		p.POST("/tasks/:id/labels", s.attachTaskLabel)
		p.DELETE("/tasks/:id/labels/:label_id", s.detachTaskLabel)
		p.POST("/tasks/:id/assignments", s.assignAgent)
		p.DELETE("/tasks/:id/assignments/:agent_id", s.unassignAgent)

		p.POST("/labels", s.createLabel)
		p.GET("/labels", s.listLabels)
		p.GET("/labels/:id", s.getLabel)
		p.DELETE("/labels/:id", s.deleteLabel)

		p.POST("/agents", s.createAgent)
		p.GET("/agents", s.listAgents)
		p.GET("/agents/:id", s.getAgent)
		p.PATCH("/agents/:id", s.updateAgent)
		p.DELETE("/agents/:id", s.deleteAgent)

		p.POST("/backlogs", s.createBacklog)
		p.GET("/backlogs", s.listBacklogs)
		p.GET("/backlogs/active-sprint", s.activeSprint)
		p.GET("/backlogs/:id", s.getBacklog)
		p.PATCH("/backlogs/:id", s.updateBacklog)
		p.DELETE("/backlogs/:id", s.deleteBacklog)
		p.GET("/backlogs/:id/stories", s.backlogStories)
		p.POST("/backlogs/:id/stories", s.addBacklogStory)
		p.DELETE("/backlogs/:id/stories/:story_id", s.removeBacklogStory)
		p.GET("/backlogs/:id/tasks", s.backlogTasks)
		p.POST("/backlogs/:id/tasks", s.addBacklogTask)
		p.DELETE("/backlogs/:id/tasks/:task_id", s.removeBacklogTask)
		p.PATCH("/backlogs/:id/reorder", s.reorderBacklog)
	}

	d := v1.Group("/dashboard")
	{
		d.GET("/costs", s.dashboardCosts)
		d.GET("/requests", s.dashboardRequests)
		d.GET("/requests/models", s.dashboardModels)
		d.POST("/imports", s.triggerImport)
		d.GET("/imports/status", s.importStatus)
	}

	w := v1.Group("/workflow")
	{
		w.GET("/stories", s.workflowStories)
		w.GET("/stories/:id", s.workflowStory)
		w.GET("/board", s.workflowBoard)
		w.GET("/tasks/:story_id/:task_id", s.workflowTask)
		w.GET("/agents", s.workflowAgents)
	}
}

// requestLogger logs one line per request with method, path, status and
// duration.
func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
