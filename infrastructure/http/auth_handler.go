package http

import (
	"log/slog"
	"net/http"

	"linkup/auth"
	"linkup/domain"
	"linkup/services"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	log           *slog.Logger
	authService   services.IAuthService
	tokenDuration int
	secureCookies bool
}

type authResponse struct {
	domain.User
	Token string `json:"token"`
}

type updateProfileRequest struct {
	ProfilePic string `json:"profilePic"`
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req auth.SignupRequest
	if err := bindJSON(c, &req); err != nil {
		abortWithError(c, h.log, err)
		return
	}
	user, token, err := h.authService.Signup(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}
	h.setSession(c, token.String())
	c.JSON(http.StatusCreated, authResponse{User: user, Token: token.String()})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := bindJSON(c, &req); err != nil {
		abortWithError(c, h.log, err)
		return
	}
	user, token, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}
	h.setSession(c, token.String())
	c.JSON(http.StatusOK, authResponse{User: user, Token: token.String()})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(auth.CookieName, "", -1, "/", "", h.secureCookies, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h *AuthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := bindJSON(c, &req); err != nil {
		abortWithError(c, h.log, err)
		return
	}
	user, err := h.authService.UpdateProfile(c.Request.Context(), currentUser(c).ID, req.ProfilePic)
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) setSession(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(auth.CookieName, token, h.tokenDuration, "/", "", h.secureCookies, true)
}
