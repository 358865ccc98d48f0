package httpserver

import (
	"net/http"

	"webshop/internal/domain"
	authsvc "webshop/internal/service/auth"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Name     string         `json:"name" binding:"required"`
	Email    string         `json:"email" binding:"required,email"`
	Password string         `json:"password" binding:"required,min=6"`
	Address  domain.Address `json:"address"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func sessionBody(s *authsvc.Session) gin.H {
	body := gin.H{
		"success":   true,
		"user":      s.User,
		"token":     s.AccessToken,
		"expiresIn": s.ExpiresIn,
	}
	if s.RefreshToken != "" {
		body["refreshToken"] = s.RefreshToken
	}
	return body
}

func (h *handlers) register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.deps.Auth.Register(c.Request.Context(), authsvc.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Address:  req.Address,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, sessionBody(session))
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.deps.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sessionBody(session))
}

func (h *handlers) refresh(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.deps.Auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "token": session.AccessToken, "expiresIn": session.ExpiresIn})
}

func (h *handlers) me(c *gin.Context) {
	p, _ := principalFrom(c)
	user, err := h.deps.Auth.Me(c.Request.Context(), p.UserID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}
