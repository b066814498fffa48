package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/miyabe/user-account-api/internal/dto"
	apierrors "github.com/miyabe/user-account-api/internal/errors"
	"github.com/miyabe/user-account-api/internal/services"
	"github.com/miyabe/user-account-api/internal/utils"
)

// UserHandler coordinates the /users CRUD endpoints.
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// ListUsers returns a paginated page of users.
func (h *UserHandler) ListUsers(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	users, total, err := h.userService.ListUsers(params)
	if err != nil {
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, dto.ToUserListResponse(users, params, total))
}

// GetUser returns a single user by ID.
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.userService.GetUser(c.Param("id"))
	if err != nil {
		respondUserError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToUserDTO(*user))
}

// UpdateUser applies a partial update to a user. PUT and PATCH behave the
// same: absent fields are left untouched.
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req dto.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if fields := dto.FieldErrors(err); fields != nil {
			apierrors.ValidationFailed(c, fields)
			return
		}
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	user, err := h.userService.UpdateUser(c.Param("id"), services.UpdateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		ImageURL: req.ImageURL,
		IsActive: req.IsActive,
	})
	if err != nil {
		respondUserError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToUserDTO(*user))
}

// DeleteUser soft deletes a user.
func (h *UserHandler) DeleteUser(c *gin.Context) {
	if err := h.userService.DeleteUser(c.Param("id")); err != nil {
		respondUserError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func respondUserError(c *gin.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		apierrors.ValidationFailed(c, verr.Fields)
	case errors.Is(err, services.ErrUserNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrUsernameTaken),
		errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, services.ErrDuplicateUser):
		apierrors.Conflict(c, err.Error())
	case errors.Is(err, services.ErrSuperuserFlags):
		apierrors.InternalError(c, err.Error())
	default:
		apierrors.InternalError(c, "")
	}
}
