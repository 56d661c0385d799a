package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Aidin1998/crowdfund/common/apiutil"
	"github.com/Aidin1998/crowdfund/common/auth"
	apierrors "github.com/Aidin1998/crowdfund/pkg/errors"
	"github.com/Aidin1998/crowdfund/pkg/models"
)

const (
	magicLinkSentMessage = "If an active account exists for this email, a sign-in link has been sent"
	resetSentMessage     = "If an active account exists for this email, a password reset link has been sent"
)

// currentUser returns the authenticated user or writes a 401.
func currentUser(c *gin.Context) (*models.User, bool) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		apiutil.Problem(c, apierrors.Unauthorized.Explain("Not authenticated"))
		return nil, false
	}
	return user, true
}

func (s *Server) handleRegister(c *gin.Context) {
	var req models.UserCreate
	if !bindJSON(c, &req) {
		return
	}
	user, err := s.identitiesSvc.Register(c.Request.Context(), &req)
	if err != nil {
		apiutil.Problem(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.NewUserResponse(user))
}

func (s *Server) handleLogin(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := s.identitiesSvc.Login(c.Request.Context(), &req)
	if err != nil {
		apiutil.Problem(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRequestMagicLink(c *gin.Context) {
	var req models.MagicLinkRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := s.identitiesSvc.RequestMagicLink(c.Request.Context(), &req); err != nil {
		apiutil.Problem(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: magicLinkSentMessage})
}

func (s *Server) handleVerifyMagicLink(c *gin.Context) {
	var req models.MagicLinkVerify
	if !bindJSON(c, &req) {
		return
	}
	resp, err := s.identitiesSvc.VerifyMagicLink(c.Request.Context(), &req)
	if err != nil {
		apiutil.Problem(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRequestPasswordReset(c *gin.Context) {
	var req models.PasswordResetRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := s.identitiesSvc.RequestPasswordReset(c.Request.Context(), &req); err != nil {
		apiutil.Problem(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: resetSentMessage})
}

func (s *Server) handleConfirmPasswordReset(c *gin.Context) {
	var req models.PasswordResetConfirm
	if !bindJSON(c, &req) {
		return
	}
	if err := s.identitiesSvc.ConfirmPasswordReset(c.Request.Context(), &req); err != nil {
		apiutil.Problem(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: "Password has been reset"})
}

func (s *Server) handleGetMe(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, models.NewUserResponse(user))
}

func (s *Server) handleUpdateMe(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.UserUpdate
	if !bindJSON(c, &req) {
		return
	}
	updated, err := s.identitiesSvc.UpdateProfile(c.Request.Context(), user.ID, &req)
	if err != nil {
		apiutil.Problem(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewUserResponse(updated))
}

func (s *Server) handle2FASetup(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	resp, err := s.identitiesSvc.SetupTwoFactor(c.Request.Context(), user.ID)
	if err != nil {
		apiutil.Problem(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handle2FAVerify(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.TwoFactorVerifyRequest
	if !bindJSON(c, &req) {
		return
	}
	updated, err := s.identitiesSvc.VerifyTwoFactor(c.Request.Context(), user.ID, &req)
	if err != nil {
		apiutil.Problem(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewUserResponse(updated))
}

func (s *Server) handle2FAToggle(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.TwoFactorToggleRequest
	if !bindJSON(c, &req) {
		return
	}
	updated, err := s.identitiesSvc.ToggleTwoFactor(c.Request.Context(), user.ID, &req)
	if err != nil {
		apiutil.Problem(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewUserResponse(updated))
}
