package dto

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/miyabe/user-account-api/internal/models"
	"github.com/miyabe/user-account-api/internal/utils"
)

func init() {
	// Report binding failures under the wire field names, not Go field names.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// UserDTO is the read view of a user. The password hash is never part of it.
type UserDTO struct {
	ID         string     `json:"id"`
	Username   string     `json:"username"`
	Email      *string    `json:"email"`
	ImageURL   string     `json:"image_url"`
	IsActive   bool       `json:"is_active"`
	DateJoined time.Time  `json:"date_joined"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
}

// RegisterRequest is the write view for registration. Password is write-only:
// it is accepted here and never echoed in any response.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,max=150"`
	Email    string `json:"email" binding:"omitempty,email"`
	Password string `json:"password" binding:"required"`
	ImageURL string `json:"image_url" binding:"omitempty,max=512"`
}

// UpdateUserRequest is the write view for updates. Nil fields are untouched.
type UpdateUserRequest struct {
	Username *string `json:"username" binding:"omitempty,max=150"`
	Email    *string `json:"email" binding:"omitempty"`
	Password *string `json:"password" binding:"omitempty"`
	ImageURL *string `json:"image_url" binding:"omitempty,max=512"`
	IsActive *bool   `json:"is_active" binding:"omitempty"`
}

// UserListResponse is a paginated page of users.
type UserListResponse struct {
	Users      []UserDTO                `json:"users"`
	Pagination utils.PaginationResponse `json:"pagination"`
}

// ToUserDTO converts a User model to its read view.
func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:         user.ID,
		Username:   user.Username,
		Email:      user.Email,
		ImageURL:   user.ImageURL,
		IsActive:   user.IsActive,
		DateJoined: user.DateJoined,
		LastLogin:  user.LastLogin,
	}
}

// ToUserListResponse converts a page of users to the list response.
func ToUserListResponse(users []models.User, params utils.PaginationParams, total int64) UserListResponse {
	dtos := make([]UserDTO, len(users))
	for i, user := range users {
		dtos[i] = ToUserDTO(user)
	}
	return UserListResponse{
		Users: dtos,
		Pagination: utils.PaginationResponse{
			Page:  params.Page,
			Limit: params.Limit,
			Total: total,
		},
	}
}

// FieldErrors flattens a binding error into field → messages. It returns nil
// when err carries no field-level information.
func FieldErrors(err error) map[string][]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = append(fields[fe.Field()], messageForTag(fe))
	}
	return fields
}

func messageForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "max":
		return fmt.Sprintf("Must be at most %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Must be at least %s characters.", fe.Param())
	default:
		return "This value is invalid."
	}
}
