package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Aidin1998/crowdfund/common/apiutil"
	apierrors "github.com/Aidin1998/crowdfund/pkg/errors"
	"github.com/Aidin1998/crowdfund/pkg/models"
)

// projectFilter converts list query parameters; unknown statuses are rejected.
func projectFilter(c *gin.Context) (models.ProjectFilter, bool) {
	q, ok := bindListQuery(c)
	if !ok {
		return models.ProjectFilter{}, false
	}
	filter := models.ProjectFilter{Search: q.Search, Limit: q.Limit, Offset: q.Offset}
	if q.Status != "" {
		st := models.ProjectStatus(q.Status)
		if !st.Valid() {
			apiutil.Problem(c, apierrors.Invalid.WithField("project_status", "status", "unknown project status"))
			return filter, false
		}
		filter.Status = &st
	}
	return filter, true
}

func (s *Server) handleListPublicProjects(c *gin.Context) {
	filter, ok := projectFilter(c)
	if !ok {
		return
	}
	list, total, err := s.projectsSvc.ListPublic(c.Request.Context(), filter)
	if err != nil {
		apiutil.Problem(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewProjectListResponse(list, total))
}

func (s *Server) handleGetProjectBySlug(c *gin.Context) {
	project, err := s.projectsSvc.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		apiutil.Problem(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewProjectResponse(project))
}

func (s *Server) handleListMyProjects(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	filter, ok := projectFilter(c)
	if !ok {
		return
	}
	list, total, err := s.projectsSvc.ListByOwner(c.Request.Context(), user.ID, filter)
	if err != nil {
		apiutil.Problem(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewProjectListResponse(list, total))
}

func (s *Server) handleSuggestSlug(c *gin.Context) {
	title := strings.TrimSpace(c.Query("title"))
	if title == "" {
		apiutil.Problem(c, apierrors.Invalid.WithField("required", "title", "title is required"))
		return
	}
	suggestion, err := s.projectsSvc.SuggestSlug(c.Request.Context(), title)
	if err != nil {
		apiutil.Problem(c, err)
		return
	}
	c.JSON(http.StatusOK, suggestion)
}

func (s *Server) handleCreateProject(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.ProjectCreate
	if !bindJSON(c, &req) {
		return
	}
	project, err := s.projectsSvc.Create(c.Request.Context(), user.ID, &req)
	if err != nil {
		apiutil.Problem(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.NewProjectResponse(project))
}

func (s *Server) handleGetProject(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	project, err := s.projectsSvc.Get(c.Request.Context(), user, id)
	if err != nil {
		apiutil.Problem(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewProjectResponse(project))
}

func (s *Server) handleUpdateProject(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req models.ProjectUpdate
	if !bindJSON(c, &req) {
		return
	}
	project, err := s.projectsSvc.Update(c.Request.Context(), user.ID, id, &req)
	if err != nil {
		apiutil.Problem(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewProjectResponse(project))
}

func (s *Server) handleDeleteProject(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := s.projectsSvc.Delete(c.Request.Context(), user.ID, id); err != nil {
		apiutil.Problem(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSubmitProject(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	project, err := s.projectsSvc.Submit(c.Request.Context(), user.ID, id)
	if err != nil {
		apiutil.Problem(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewProjectResponse(project))
}

func (s *Server) handleContribute(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req models.ContributionRequest
	if !bindJSON(c, &req) {
		return
	}
	project, err := s.projectsSvc.Contribute(c.Request.Context(), user.ID, id, &req)
	if err != nil {
		apiutil.Problem(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewProjectResponse(project))
}
