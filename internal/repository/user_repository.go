package repository

import (
	"errors"
	"fmt"

	"github.com/miyabe/user-account-api/internal/database"
	"github.com/miyabe/user-account-api/internal/models"
	"github.com/miyabe/user-account-api/internal/utils"
	"gorm.io/gorm"
)

var (
	// ErrDuplicate is returned when a unique constraint on username or email
	// rejects a write.
	ErrDuplicate = errors.New("user repository: duplicate username or email")
)

// GormUserRepository is a GORM implementation of UserRepository
type GormUserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &GormUserRepository{db: db}
}

// Create persists a new user. The insert runs in its own transaction so a
// constraint failure leaves nothing behind.
func (r *GormUserRepository) Create(user *models.User) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(user).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
		return err
	}
	return nil
}

// FindByID finds a user by ID
func (r *GormUserRepository) FindByID(id string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByUsername finds a user by username
func (r *GormUserRepository) FindByUsername(username string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail finds a user by email
func (r *GormUserRepository) FindByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByUsernameAndEmail finds the user matching both identity fields
func (r *GormUserRepository) FindByUsernameAndEmail(username, email string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("username = ? AND email = ?", username, email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// List retrieves users with pagination, newest first
func (r *GormUserRepository) List(params utils.PaginationParams) ([]models.User, int64, error) {
	var total int64
	if err := r.db.Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.User
	err := r.db.
		Order("date_joined DESC").
		Scopes(database.Paginate(params)).
		Find(&users).Error
	if err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

// Update persists changes to a user
func (r *GormUserRepository) Update(user *models.User) error {
	err := r.db.Save(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

// Delete soft deletes a user
func (r *GormUserRepository) Delete(id string) error {
	result := r.db.Where("id = ?", id).Delete(&models.User{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
