package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/miyabe/user-account-api/internal/constants"
	"github.com/miyabe/user-account-api/internal/models"
	"github.com/miyabe/user-account-api/internal/repository"
	"github.com/miyabe/user-account-api/internal/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUsernameTaken        = errors.New("username already exists")
	ErrEmailTaken           = errors.New("email already exists")
	ErrDuplicateUser        = errors.New("username or email already exists")
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrUserNotFound         = errors.New("user not found")
	ErrFailedToHashPassword = errors.New("failed to hash password")
	// ErrSuperuserFlags indicates an elevated account would have been created
	// without both elevated flags set. This is a logic defect, not bad input,
	// and must fail loudly.
	ErrSuperuserFlags = errors.New("superuser must have is_staff and is_superuser set")
)

// ValidationError carries field-level validation messages.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %d invalid field(s)", len(e.Fields))
}

func newValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

func (e *ValidationError) add(field, message string) {
	e.Fields[field] = append(e.Fields[field], message)
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// UserService handles user account business logic.
type UserService struct {
	userRepo repository.UserRepository
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{
		userRepo: userRepo,
	}
}

// CreateUserInput represents the fields accepted when creating a user.
type CreateUserInput struct {
	Username string
	Email    string
	Password string
	ImageURL string

	// Flag overrides. Nil means "use the default for this creation path".
	IsStaff     *bool
	IsSuperuser *bool
	IsActive    *bool
}

// CreateUser creates a regular account. Username is required; email is
// optional but normalized and unique when present. Flags default to
// is_staff=false, is_superuser=false, is_active=true.
func (s *UserService) CreateUser(input CreateUserInput) (*models.User, error) {
	setDefault(&input.IsStaff, false)
	setDefault(&input.IsSuperuser, false)
	return s.createUser(input, false)
}

// CreateSuperuser creates an elevated account. Both elevated flags default to
// true; a caller-supplied override defeating them is an invariant violation,
// not something to silently correct.
func (s *UserService) CreateSuperuser(input CreateUserInput) (*models.User, error) {
	setDefault(&input.IsStaff, true)
	setDefault(&input.IsSuperuser, true)
	if !*input.IsStaff || !*input.IsSuperuser {
		return nil, ErrSuperuserFlags
	}
	return s.createUser(input, true)
}

func (s *UserService) createUser(input CreateUserInput, emailRequired bool) (*models.User, error) {
	username := strings.TrimSpace(input.Username)
	email := utils.NormalizeEmail(input.Email)

	verr := newValidationError()
	if username == "" {
		verr.add("username", "This field is required.")
	} else if len(username) > constants.MaxUsernameLength {
		verr.add("username", fmt.Sprintf("Must be at most %d characters.", constants.MaxUsernameLength))
	}
	if emailRequired && email == "" {
		verr.add("email", "This field is required.")
	}
	if email != "" && !strings.Contains(email, "@") {
		verr.add("email", "Enter a valid email address.")
	}
	if input.Password == "" {
		verr.add("password", "This field is required.")
	} else if len(input.Password) > constants.MaxPasswordLength {
		verr.add("password", fmt.Sprintf("Must be at most %d bytes.", constants.MaxPasswordLength))
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	if _, err := s.userRepo.FindByUsername(username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if email != "" {
		if _, err := s.userRepo.FindByEmail(email); err == nil {
			return nil, ErrEmailTaken
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrFailedToHashPassword
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(hashed),
		ImageURL:     input.ImageURL,
		IsStaff:      *input.IsStaff,
		IsSuperuser:  *input.IsSuperuser,
		IsActive:     true,
	}
	if email != "" {
		user.Email = &email
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}

	if err := s.userRepo.Create(user); err != nil {
		// The pre-checks above race with concurrent registrations; the unique
		// indexes are the authority.
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Authenticate verifies credentials and records the login time.
func (s *UserService) Authenticate(username, password string) (*models.User, error) {
	user, err := s.userRepo.FindByUsername(strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	user.LastLogin = &now
	if err := s.userRepo.Update(user); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}

	return user, nil
}

// VerifyPassword reports whether plaintext matches the user's stored hash.
func (s *UserService) VerifyPassword(user *models.User, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(plaintext)) == nil
}

// GetUser retrieves a user by ID.
func (s *UserService) GetUser(id string) (*models.User, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// ListUsers retrieves a page of users and the total count.
func (s *UserService) ListUsers(params utils.PaginationParams) ([]models.User, int64, error) {
	users, total, err := s.userRepo.List(params)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

// UpdateUserInput represents a partial update. Nil fields are left unchanged.
type UpdateUserInput struct {
	Username *string
	Email    *string
	Password *string
	ImageURL *string
	IsActive *bool
}

// UpdateUser applies a partial update to the mutable fields. The elevated
// flags and date_joined are not updatable through this path.
func (s *UserService) UpdateUser(id string, input UpdateUserInput) (*models.User, error) {
	user, err := s.GetUser(id)
	if err != nil {
		return nil, err
	}

	verr := newValidationError()
	if input.Username != nil {
		username := strings.TrimSpace(*input.Username)
		if username == "" {
			verr.add("username", "This field is required.")
		}
		user.Username = username
	}
	if input.Email != nil {
		email := utils.NormalizeEmail(*input.Email)
		if email == "" {
			user.Email = nil
		} else if !strings.Contains(email, "@") {
			verr.add("email", "Enter a valid email address.")
		} else {
			user.Email = &email
		}
	}
	if input.Password != nil {
		if *input.Password == "" {
			verr.add("password", "This field is required.")
		} else if len(*input.Password) > constants.MaxPasswordLength {
			verr.add("password", fmt.Sprintf("Must be at most %d bytes.", constants.MaxPasswordLength))
		} else {
			hashed, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
			if err != nil {
				return nil, ErrFailedToHashPassword
			}
			user.PasswordHash = string(hashed)
		}
	}
	if input.ImageURL != nil {
		user.ImageURL = *input.ImageURL
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	if err := s.userRepo.Update(user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return user, nil
}

// DeleteUser soft deletes a user.
func (s *UserService) DeleteUser(id string) error {
	if err := s.userRepo.Delete(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

func setDefault(flag **bool, value bool) {
	if *flag == nil {
		v := value
		*flag = &v
	}
}
