package services

import (
	"strings"
	"testing"

	"github.com/miyabe/user-account-api/internal/models"
	"github.com/miyabe/user-account-api/internal/repository"
	"github.com/miyabe/user-account-api/internal/utils"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupUserServiceTest(t *testing.T) (*UserService, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.User{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	return NewUserService(repository.NewUserRepository(db)), db
}

func TestUserService_CreateUser(t *testing.T) {
	service, _ := setupUserServiceTest(t)

	user, err := service.CreateUser(CreateUserInput{
		Username: "alice",
		Email:    "alice@Example.COM",
		Password: "s3cret-password",
		ImageURL: "https://img.example.com/alice.png",
	})
	require.NoError(t, err)

	require.NotEmpty(t, user.ID)
	require.Equal(t, "alice", user.Username)
	require.NotNil(t, user.Email)
	require.Equal(t, "alice@example.com", *user.Email, "domain part should be lowercased")
	require.Equal(t, "https://img.example.com/alice.png", user.ImageURL)
	require.False(t, user.IsStaff)
	require.False(t, user.IsSuperuser)
	require.True(t, user.IsActive)
	require.False(t, user.DateJoined.IsZero())

	// Plaintext is never stored; the hash verifies.
	require.NotEqual(t, "s3cret-password", user.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cret-password")))
}

func TestUserService_CreateUser_WithoutEmail(t *testing.T) {
	service, _ := setupUserServiceTest(t)

	user, err := service.CreateUser(CreateUserInput{
		Username: "no-email",
		Password: "s3cret-password",
	})
	require.NoError(t, err)
	require.Nil(t, user.Email)

	// A second email-less user must not trip the email unique index.
	_, err = service.CreateUser(CreateUserInput{
		Username: "no-email-2",
		Password: "s3cret-password",
	})
	require.NoError(t, err)
}

func TestUserService_CreateUser_ValidationErrors(t *testing.T) {
	service, _ := setupUserServiceTest(t)

	_, err := service.CreateUser(CreateUserInput{
		Username: "   ",
		Email:    "not-an-email",
		Password: "",
	})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "username")
	require.Contains(t, verr.Fields, "email")
	require.Contains(t, verr.Fields, "password")
}

func TestUserService_CreateUser_AcceptsShortPassword(t *testing.T) {
	service, _ := setupUserServiceTest(t)

	// No minimum length is imposed beyond being non-empty.
	user, err := service.CreateUser(CreateUserInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "s3cret",
	})
	require.NoError(t, err)
	require.True(t, service.VerifyPassword(user, "s3cret"))
}

func TestUserService_CreateUser_PasswordTooLong(t *testing.T) {
	service, _ := setupUserServiceTest(t)

	_, err := service.CreateUser(CreateUserInput{
		Username: "alice",
		Password: strings.Repeat("p", 73),
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "password")
}

func TestUserService_CreateUser_DuplicateUsername(t *testing.T) {
	service, db := setupUserServiceTest(t)

	_, err := service.CreateUser(CreateUserInput{
		Username: "taken",
		Password: "s3cret-password",
	})
	require.NoError(t, err)

	_, err = service.CreateUser(CreateUserInput{
		Username: "taken",
		Password: "other-password1",
	})
	require.ErrorIs(t, err, ErrUsernameTaken)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Where("username = ?", "taken").Count(&count).Error)
	require.Equal(t, int64(1), count, "duplicate registration must not create a second record")
}

func TestUserService_CreateUser_DuplicateEmail(t *testing.T) {
	service, _ := setupUserServiceTest(t)

	_, err := service.CreateUser(CreateUserInput{
		Username: "first",
		Email:    "shared@example.com",
		Password: "s3cret-password",
	})
	require.NoError(t, err)

	_, err = service.CreateUser(CreateUserInput{
		Username: "second",
		Email:    "shared@EXAMPLE.com",
		Password: "s3cret-password",
	})
	require.ErrorIs(t, err, ErrEmailTaken, "normalization makes the emails collide")
}

func TestUserService_CreateUser_RaceFallsBackToUniqueIndex(t *testing.T) {
	service, db := setupUserServiceTest(t)

	// Simulate the competing registration winning between the pre-check and
	// the insert: the row exists but was not visible to the pre-check path.
	_, err := service.CreateUser(CreateUserInput{
		Username: "racer",
		Password: "s3cret-password",
	})
	require.NoError(t, err)

	repo := repository.NewUserRepository(db)
	err = repo.Create(&models.User{
		Username:     "racer",
		PasswordHash: "hash",
		IsActive:     true,
	})
	require.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestUserService_CreateSuperuser(t *testing.T) {
	service, _ := setupUserServiceTest(t)

	user, err := service.CreateSuperuser(CreateUserInput{
		Username: "admin",
		Email:    "admin@example.com",
		Password: "s3cret-password",
	})
	require.NoError(t, err)
	require.True(t, user.IsStaff)
	require.True(t, user.IsSuperuser)
}

func TestUserService_CreateSuperuser_RejectsDefeatedFlags(t *testing.T) {
	service, _ := setupUserServiceTest(t)

	falseFlag := false
	for _, input := range []CreateUserInput{
		{Username: "a1", Email: "a1@example.com", Password: "s3cret-password", IsStaff: &falseFlag},
		{Username: "a2", Email: "a2@example.com", Password: "s3cret-password", IsSuperuser: &falseFlag},
	} {
		_, err := service.CreateSuperuser(input)
		require.ErrorIs(t, err, ErrSuperuserFlags)
	}
}

func TestUserService_CreateSuperuser_RequiresEmail(t *testing.T) {
	service, _ := setupUserServiceTest(t)

	_, err := service.CreateSuperuser(CreateUserInput{
		Username: "admin",
		Password: "s3cret-password",
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "email")
}

func TestUserService_Authenticate(t *testing.T) {
	service, _ := setupUserServiceTest(t)

	created, err := service.CreateUser(CreateUserInput{
		Username: "login-user",
		Password: "s3cret-password",
	})
	require.NoError(t, err)
	require.Nil(t, created.LastLogin)

	user, err := service.Authenticate("login-user", "s3cret-password")
	require.NoError(t, err)
	require.Equal(t, created.ID, user.ID)
	require.NotNil(t, user.LastLogin)

	_, err = service.Authenticate("login-user", "wrong-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = service.Authenticate("nobody", "s3cret-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUserService_Authenticate_InactiveUser(t *testing.T) {
	service, db := setupUserServiceTest(t)

	user, err := service.CreateUser(CreateUserInput{
		Username: "deactivated",
		Password: "s3cret-password",
	})
	require.NoError(t, err)

	require.NoError(t, db.Model(user).Update("is_active", false).Error)

	_, err = service.Authenticate("deactivated", "s3cret-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUserService_UpdateUser(t *testing.T) {
	service, _ := setupUserServiceTest(t)

	user, err := service.CreateUser(CreateUserInput{
		Username: "before",
		Email:    "before@example.com",
		Password: "s3cret-password",
	})
	require.NoError(t, err)

	newUsername := "after"
	newEmail := "After@EXAMPLE.com"
	inactive := false
	updated, err := service.UpdateUser(user.ID, UpdateUserInput{
		Username: &newUsername,
		Email:    &newEmail,
		IsActive: &inactive,
	})
	require.NoError(t, err)
	require.Equal(t, "after", updated.Username)
	require.NotNil(t, updated.Email)
	require.Equal(t, "After@example.com", *updated.Email)
	require.False(t, updated.IsActive)
	require.Equal(t, user.DateJoined.Unix(), updated.DateJoined.Unix())
}

func TestUserService_UpdateUser_ChangePassword(t *testing.T) {
	service, _ := setupUserServiceTest(t)

	user, err := service.CreateUser(CreateUserInput{
		Username: "rotating",
		Password: "old-password-1",
	})
	require.NoError(t, err)

	newPassword := "new-password-1"
	updated, err := service.UpdateUser(user.ID, UpdateUserInput{Password: &newPassword})
	require.NoError(t, err)

	require.True(t, service.VerifyPassword(updated, "new-password-1"))
	require.False(t, service.VerifyPassword(updated, "old-password-1"))
}

func TestUserService_UpdateUser_PasswordTooLong(t *testing.T) {
	service, _ := setupUserServiceTest(t)

	user, err := service.CreateUser(CreateUserInput{
		Username: "rotating",
		Password: "old-password-1",
	})
	require.NoError(t, err)

	oversized := strings.Repeat("p", 73)
	_, err = service.UpdateUser(user.ID, UpdateUserInput{Password: &oversized})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "password")

	// The stored credential is untouched.
	fresh, err := service.GetUser(user.ID)
	require.NoError(t, err)
	require.True(t, service.VerifyPassword(fresh, "old-password-1"))
}

func TestUserService_UpdateUser_DuplicateUsername(t *testing.T) {
	service, _ := setupUserServiceTest(t)

	_, err := service.CreateUser(CreateUserInput{Username: "taken", Password: "s3cret-password"})
	require.NoError(t, err)
	user, err := service.CreateUser(CreateUserInput{Username: "free", Password: "s3cret-password"})
	require.NoError(t, err)

	conflicting := "taken"
	_, err = service.UpdateUser(user.ID, UpdateUserInput{Username: &conflicting})
	require.ErrorIs(t, err, ErrDuplicateUser)
}

func TestUserService_DeleteUser(t *testing.T) {
	service, _ := setupUserServiceTest(t)

	user, err := service.CreateUser(CreateUserInput{
		Username: "doomed",
		Password: "s3cret-password",
	})
	require.NoError(t, err)

	require.NoError(t, service.DeleteUser(user.ID))

	_, err = service.GetUser(user.ID)
	require.ErrorIs(t, err, ErrUserNotFound)

	require.ErrorIs(t, service.DeleteUser(user.ID), ErrUserNotFound)
}

func TestUserService_ListUsers(t *testing.T) {
	service, _ := setupUserServiceTest(t)

	for _, name := range []string{"u1", "u2", "u3"} {
		_, err := service.CreateUser(CreateUserInput{Username: name, Password: "s3cret-password"})
		require.NoError(t, err)
	}

	users, total, err := service.ListUsers(utils.PaginationParams{Page: 1, Limit: 2, Offset: 0})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, users, 2)
}
