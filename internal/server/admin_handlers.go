package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Aidin1998/crowdfund/common/apiutil"
	"github.com/Aidin1998/crowdfund/pkg/models"
)

func (s *Server) handleAdminListUsers(c *gin.Context) {
	q, ok := bindListQuery(c)
	if !ok {
		return
	}
	users, total, err := s.identitiesSvc.ListUsers(c.Request.Context(), models.UserFilter{
		Search: q.Search,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
	if err != nil {
		apiutil.Problem(c, err)
		return
	}
	resp := models.UserListResponse{Users: make([]models.UserResponse, 0, len(users)), Total: total}
	for i := range users {
		resp.Users = append(resp.Users, models.NewUserResponse(&users[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleAdminGetUser(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	user, err := s.identitiesSvc.GetUser(c.Request.Context(), id)
	if err != nil {
		apiutil.Problem(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewUserResponse(user))
}

func (s *Server) handleAdminUpdateUser(c *gin.Context) {
	admin, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req models.AdminUserUpdate
	if !bindJSON(c, &req) {
		return
	}
	user, err := s.identitiesSvc.AdminUpdateUser(c.Request.Context(), admin.ID, id, &req)
	if err != nil {
		apiutil.Problem(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewUserResponse(user))
}

func (s *Server) handleAdminDeleteUser(c *gin.Context) {
	admin, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := s.identitiesSvc.DeleteUser(c.Request.Context(), admin.ID, id); err != nil {
		apiutil.Problem(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAdminListProjects(c *gin.Context) {
	filter, ok := projectFilter(c)
	if !ok {
		return
	}
	list, total, err := s.projectsSvc.AdminList(c.Request.Context(), filter)
	if err != nil {
		apiutil.Problem(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewProjectListResponse(list, total))
}

func (s *Server) handleAdminGetProject(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	project, err := s.projectsSvc.AdminGet(c.Request.Context(), id)
	if err != nil {
		apiutil.Problem(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewProjectResponse(project))
}

func (s *Server) handleAdminUpdateProject(c *gin.Context) {
	admin, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req models.AdminProjectUpdate
	if !bindJSON(c, &req) {
		return
	}
	project, err := s.projectsSvc.AdminUpdate(c.Request.Context(), admin.ID, id, &req)
	if err != nil {
		apiutil.Problem(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewProjectResponse(project))
}

func (s *Server) handleAdminDeleteProject(c *gin.Context) {
	admin, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := s.projectsSvc.AdminDelete(c.Request.Context(), admin.ID, id); err != nil {
		apiutil.Problem(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAdminTestEmail(c *gin.Context) {
	admin, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.TestEmailRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := s.identitiesSvc.SendTestEmail(c.Request.Context(), admin.ID, &req); err != nil {
		apiutil.Problem(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: "Test email sent to " + req.Email})
}
