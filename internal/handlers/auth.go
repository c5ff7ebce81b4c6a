package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"videohub/api/internal/apperr"
	"videohub/api/internal/middleware"
	"videohub/api/internal/service"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type logoutRequest struct {
	SessionID string `json:"sessionId"`
}

type authResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         userResponse `json:"user"`
}

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type meResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	UserAgent string    `json:"userAgent,omitempty"`
	IPAddress string    `json:"ipAddress,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

var errInvalidBody = apperr.ValidationError("Invalid request body")

func bindError(err error) error {
	if middleware.BodyTooLarge(err) {
		return middleware.ErrBodyTooLarge
	}
	return errInvalidBody
}

func (h HandlerSet) RegisterUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, bindError(err))
		return
	}

	result, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Client:   clientInfo(c),
	})
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	sendAuthResponse(c, http.StatusCreated, result)
}

func (h HandlerSet) Login(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		middleware.AbortWithError(c, apperr.Unauthorized("Unauthorized"))
		return
	}

	result, err := h.auth.Login(c.Request.Context(), user, clientInfo(c))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	sendAuthResponse(c, http.StatusOK, result)
}

func (h HandlerSet) Refresh(c *gin.Context) {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		middleware.AbortWithError(c, apperr.Unauthorized("Unauthorized"))
		return
	}

	result, err := h.auth.Refresh(c.Request.Context(), principal.UserID, principal.TokenID, clientInfo(c))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	sendAuthResponse(c, http.StatusOK, result)
}

// Logout revokes the session named in the body, or every session of the caller when the
// body is empty.
func (h HandlerSet) Logout(c *gin.Context) {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		middleware.AbortWithError(c, apperr.Unauthorized("Unauthorized"))
		return
	}

	var req logoutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			middleware.AbortWithError(c, bindError(err))
			return
		}
	}

	if _, err := h.auth.Logout(c.Request.Context(), principal.UserID, req.SessionID); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h HandlerSet) Me(c *gin.Context) {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		middleware.AbortWithError(c, apperr.Unauthorized("Unauthorized"))
		return
	}

	c.JSON(http.StatusOK, meResponse{
		ID:    principal.UserID,
		Email: principal.Email,
		Role:  string(principal.Role),
	})
}

func (h HandlerSet) ListSessions(c *gin.Context) {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		middleware.AbortWithError(c, apperr.Unauthorized("Unauthorized"))
		return
	}

	sessions, err := h.auth.ListSessions(c.Request.Context(), principal.UserID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	resp := make([]sessionResponse, 0, len(sessions))
	for _, session := range sessions {
		resp = append(resp, sessionResponse{
			ID:        session.ID.Hex(),
			UserAgent: session.UserAgent,
			IPAddress: session.IPAddress,
			CreatedAt: session.CreatedAt,
			ExpiresAt: session.ExpiresAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": resp,
	})
}

func (h HandlerSet) RevokeSession(c *gin.Context) {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		middleware.AbortWithError(c, apperr.Unauthorized("Unauthorized"))
		return
	}

	sessionID := c.Param("id")
	if sessionID == "" {
		middleware.AbortWithError(c, apperr.NotFound("Session"))
		return
	}

	removed, err := h.auth.Logout(c.Request.Context(), principal.UserID, sessionID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if removed == 0 {
		middleware.AbortWithError(c, apperr.NotFound("Session"))
		return
	}

	c.Status(http.StatusNoContent)
}

func sendAuthResponse(c *gin.Context, status int, result service.AuthResult) {
	c.JSON(status, authResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		User: userResponse{
			ID:    result.User.ID,
			Name:  result.User.Name,
			Email: result.User.Email,
			Role:  string(result.User.Role),
		},
	})
}

func clientInfo(c *gin.Context) service.ClientInfo {
	return service.ClientInfo{
		UserAgent: c.GetHeader("User-Agent"),
		IPAddress: c.ClientIP(),
	}
}
