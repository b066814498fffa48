package services

import (
	"errors"
	"fmt"

	"github.com/miyabe/user-account-api/internal/models"
	"github.com/miyabe/user-account-api/internal/repository"
	"github.com/miyabe/user-account-api/internal/tokenverify"
	"gorm.io/gorm"
)

var (
	// ErrNoLinkedAccount is returned when a verified token does not match any
	// local user. Accounts are not auto-provisioned from tokens.
	ErrNoLinkedAccount = errors.New("no local account linked to this identity")
)

// TokenVerifier validates an identity token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (*tokenverify.Claims, error)
}

// TokenService composes token verification with local account lookup.
type TokenService struct {
	verifier TokenVerifier
	userRepo repository.UserRepository
}

// NewTokenService creates a new TokenService.
func NewTokenService(verifier TokenVerifier, userRepo repository.UserRepository) *TokenService {
	return &TokenService{
		verifier: verifier,
		userRepo: userRepo,
	}
}

// VerifyToken validates token and returns its claims. It neither reads nor
// writes user records.
func (s *TokenService) VerifyToken(token string) (*tokenverify.Claims, error) {
	return s.verifier.Verify(token)
}

// SocialLoginResult is the outcome of the social login pipeline.
type SocialLoginResult struct {
	IsNew bool
	User  *models.User
}

// SocialLogin verifies token and resolves it to the local user whose username
// and email match the verified claims. A token with no matching user fails
// with ErrNoLinkedAccount.
func (s *TokenService) SocialLogin(token string) (*SocialLoginResult, error) {
	claims, err := s.verifier.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.Email == "" || claims.Name == "" {
		return nil, fmt.Errorf("%w: token is missing email or name", tokenverify.ErrTokenMalformed)
	}

	user, err := s.userRepo.FindByUsernameAndEmail(claims.Name, claims.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoLinkedAccount
		}
		return nil, fmt.Errorf("failed to look up linked account: %w", err)
	}
	if !user.IsActive {
		return nil, ErrNoLinkedAccount
	}

	return &SocialLoginResult{
		IsNew: false,
		User:  user,
	}, nil
}
