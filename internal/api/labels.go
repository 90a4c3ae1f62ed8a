package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type createLabelRequest struct {
	Name      string  `json:"name"`
	ProjectID *string `json:"project_id"`
	Color     *string `json:"color"`
}

func (s *Server) createLabel(c *gin.Context) {
	var req createLabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c)
		return
	}
	label, err := s.planning.CreateLabel(req.Name, req.ProjectID, req.Color)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, label)
}

func (s *Server) listLabels(c *gin.Context) {
	limit, offset := pageParams(c)
	// A project filter includes global labels; global=true restricts to them.
	filterGlobal := c.Query("global") == "true"
	labels, total, err := s.planning.ListLabels(c.Query("project_id"), filterGlobal, limit, offset)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondList(c, labels, total, limit, offset)
}

func (s *Server) getLabel(c *gin.Context) {
	label, err := s.planning.GetLabel(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, label)
}

func (s *Server) deleteLabel(c *gin.Context) {
	if err := s.planning.DeleteLabel(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
