package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/miyabe/user-account-api/internal/constants"
	"github.com/miyabe/user-account-api/internal/dto"
	apierrors "github.com/miyabe/user-account-api/internal/errors"
	"github.com/miyabe/user-account-api/internal/middleware"
	"github.com/miyabe/user-account-api/internal/services"
	"github.com/miyabe/user-account-api/internal/tokenverify"
)

// AuthHandler coordinates registration, session auth, and token verification.
type AuthHandler struct {
	userService  *services.UserService
	tokenService *services.TokenService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(userService *services.UserService, tokenService *services.TokenService) *AuthHandler {
	return &AuthHandler{
		userService:  userService,
		tokenService: tokenService,
	}
}

// Register creates a new account from the registration write view.
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if fields := dto.FieldErrors(err); fields != nil {
			apierrors.ValidationFailed(c, fields)
			return
		}
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	user, err := h.userService.CreateUser(services.CreateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		respondUserError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToUserDTO(*user))
}

// Login authenticates a user and initializes the session.
func (h *AuthHandler) Login(c *gin.Context) {
	type LoginRequest struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	user, err := h.userService.Authenticate(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			apierrors.Unauthorized(c, err.Error())
			return
		}
		apierrors.InternalError(c, "")
		return
	}

	if err := startSession(c, user.ID); err != nil {
		apierrors.InternalError(c, "Failed to save session")
		return
	}

	c.JSON(http.StatusOK, dto.ToUserDTO(*user))
}

// Logout removes the authentication session.
func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		apierrors.InternalError(c, "Failed to logout")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Logged out successfully",
	})
}

// VerifyToken validates an identity token against the configured audience and
// returns the verified claims. No user record is read or written.
func (h *AuthHandler) VerifyToken(c *gin.Context) {
	type VerifyTokenRequest struct {
		Token string `json:"token" binding:"required"`
	}

	var req VerifyTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	claims, err := h.tokenService.VerifyToken(req.Token)
	if err != nil {
		respondTokenError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sub":   claims.Subject,
		"email": claims.Email,
		"name":  claims.Name,
	})
}

// SocialLogin verifies an identity token, resolves the linked local account,
// and initializes the session.
func (h *AuthHandler) SocialLogin(c *gin.Context) {
	type SocialLoginRequest struct {
		Token string `json:"token" binding:"required"`
	}

	var req SocialLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	result, err := h.tokenService.SocialLogin(req.Token)
	if err != nil {
		respondTokenError(c, err)
		return
	}

	if err := startSession(c, result.User.ID); err != nil {
		apierrors.InternalError(c, "Failed to save session")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"is_new": result.IsNew,
		"user":   dto.ToUserDTO(*result.User),
	})
}

// GetUserDetail returns the authenticated caller's own record.
func (h *AuthHandler) GetUserDetail(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	user, err := h.userService.GetUser(userID)
	if err != nil {
		respondUserError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToUserDTO(*user))
}

func startSession(c *gin.Context, userID string) error {
	session := sessions.Default(c)
	session.Set(constants.ContextKeyUserID, userID)
	return session.Save()
}

// respondTokenError maps verification failures to responses. Authentication
// failures carry no detail about why the token was rejected.
func respondTokenError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tokenverify.ErrTokenExpired),
		errors.Is(err, tokenverify.ErrAudienceMismatch),
		errors.Is(err, tokenverify.ErrTokenMalformed),
		errors.Is(err, services.ErrNoLinkedAccount):
		apierrors.AuthenticationFailed(c)
	case errors.Is(err, tokenverify.ErrNotConfigured):
		log.Printf("token verification unavailable: %v", err)
		apierrors.InternalError(c, "")
	default:
		apierrors.InternalError(c, "")
	}
}
