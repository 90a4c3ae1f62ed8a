package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openclaw/mission-control/internal/planning"
	"github.com/openclaw/mission-control/internal/store"
)

type createEpicRequest struct {
	ProjectID   string  `json:"project_id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Priority    *int    `json:"priority"`
	Actor       *string `json:"actor"`
}

func (s *Server) createEpic(c *gin.Context) {
	var req createEpicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c)
		return
	}
	epic, err := s.planning.CreateEpic(planning.CreateEpicParams{
		ProjectID:   req.ProjectID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Actor:       req.Actor,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, epic)
}

func (s *Server) listEpics(c *gin.Context) {
	limit, offset := pageParams(c)
	epics, total, err := s.planning.ListEpics(store.EpicFilter{
		Key:       c.Query("key"),
		ProjectID: c.Query("project_id"),
		Status:    c.Query("status"),
	}, limit, offset, c.Query("sort"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respondList(c, epics, total, limit, offset)
}

func (s *Server) getEpic(c *gin.Context) {
	epic, storyCount, err := s.planning.GetEpic(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respondMeta(c, http.StatusOK, epic, gin.H{"story_count": storyCount})
}

func (s *Server) getEpicByKey(c *gin.Context) {
	epic, storyCount, err := s.planning.GetEpicByKey(c.Param("key"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respondMeta(c, http.StatusOK, epic, gin.H{"story_count": storyCount})
}

type updateEpicRequest struct {
	Title         *string `json:"title"`
	Description   *string `json:"description"`
	Status        *string `json:"status"`
	IsBlocked     *bool   `json:"is_blocked"`
	BlockedReason *string `json:"blocked_reason"`
	Priority      *int    `json:"priority"`
	Actor         *string `json:"actor"`
}

func (s *Server) updateEpic(c *gin.Context) {
	var req updateEpicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c)
		return
	}
	epic, err := s.planning.UpdateEpic(c.Param("id"), planning.EpicPatch{
		Title:         req.Title,
		Description:   req.Description,
		Status:        req.Status,
		IsBlocked:     req.IsBlocked,
		BlockedReason: req.BlockedReason,
		Priority:      req.Priority,
		Actor:         req.Actor,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, epic)
}

func (s *Server) deleteEpic(c *gin.Context) {
	if err := s.planning.DeleteEpic(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
