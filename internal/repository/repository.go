package repository

import (
	"github.com/miyabe/user-account-api/internal/models"
	"github.com/miyabe/user-account-api/internal/utils"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create persists a new user atomically
	Create(user *models.User) error

	// FindByID finds a user by ID
	FindByID(id string) (*models.User, error)

	// FindByUsername finds a user by username
	FindByUsername(username string) (*models.User, error)

	// FindByEmail finds a user by normalized email
	FindByEmail(email string) (*models.User, error)

	// FindByUsernameAndEmail finds the user matching both identity fields
	FindByUsernameAndEmail(username, email string) (*models.User, error)

	// List retrieves users with pagination, newest first
	List(params utils.PaginationParams) ([]models.User, int64, error)

	// Update persists changes to a user
	Update(user *models.User) error

	// Delete soft deletes a user
	Delete(id string) error
}
