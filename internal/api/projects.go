package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openclaw/mission-control/internal/planning"
)

type createProjectRequest struct {
	Key         string  `json:"key"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Actor       *string `json:"actor"`
}

func (s *Server) createProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c)
		return
	}
	project, err := s.planning.CreateProject(req.Key, req.Name, req.Description, req.Actor)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, project)
}

func (s *Server) listProjects(c *gin.Context) {
	limit, offset := pageParams(c)
	projects, total, err := s.planning.ListProjects(c.Query("status"), limit, offset, c.Query("sort"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respondList(c, projects, total, limit, offset)
}

func (s *Server) getProject(c *gin.Context) {
	project, err := s.planning.GetProject(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, project)
}

type updateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Actor       *string `json:"actor"`
}

func (s *Server) updateProject(c *gin.Context) {
	var req updateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c)
		return
	}
	project, err := s.planning.UpdateProject(c.Param("id"), planning.ProjectPatch{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		Actor:       req.Actor,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, project)
}

func (s *Server) deleteProject(c *gin.Context) {
	if err := s.planning.DeleteProject(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
