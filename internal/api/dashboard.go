package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openclaw/mission-control/internal/apperr"
)

func (s *Server) dashboardCosts(c *gin.Context) {
	from := c.Query("from")
	to := c.Query("to")
	if from == "" || to == "" {
		// Unknown ranges fall back to the default week view.
		days := intQuery(c, "days", 7)
		if days != 1 && days != 7 && days != 30 {
			days = 7
		}
		now := time.Now().UTC()
		from = now.AddDate(0, 0, -days).Format("2006-01-02")
		to = now.Format("2006-01-02")
	}

	report, err := s.dash.Costs(from, to)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) dashboardRequests(c *gin.Context) {
	page := intQuery(c, "page", 1)
	limit := intQuery(c, "limit", 50)
	if limit > 100 {
		limit = 100
	}
	requests, err := s.dash.Requests(page, limit, c.Query("model"), c.Query("from"), c.Query("to"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

func (s *Server) dashboardModels(c *gin.Context) {
	models, err := s.dash.Models()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}

func (s *Server) triggerImport(c *gin.Context) {
	if s.importer == nil {
		s.fail(c, apperr.BusinessRule("Telemetry import is not configured"))
		return
	}
	run, err := s.importer.Run(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) importStatus(c *gin.Context) {
	status, err := s.dash.Status()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
