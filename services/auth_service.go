package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"linkup/auth"
	"linkup/contract"
	"linkup/domain"
	"linkup/errors"
	"linkup/repositories"
)

type IAuthService interface {
	Signup(ctx context.Context, req auth.SignupRequest) (domain.User, Token, error)
	Login(ctx context.Context, req auth.LoginRequest) (domain.User, Token, error)
	Authenticate(ctx context.Context, token string) (domain.User, error)
	UpdateProfile(ctx context.Context, userID domain.UserID, dataURI string) (domain.User, error)
}

type Token string

func (t Token) String() string {
	return string(t)
}

type AuthService struct {
	log            *slog.Logger
	userRepository repositories.IUserRepository
	index          contract.IUserIndex
	images         contract.IImageService
	tokens         auth.TokenManager
}

func NewAuthService(log *slog.Logger, repo repositories.IUserRepository, index contract.IUserIndex,
	images contract.IImageService, tokens auth.TokenManager) *AuthService {
	return &AuthService{log: log, userRepository: repo, index: index, images: images, tokens: tokens}
}

func (s *AuthService) Signup(_ context.Context, req auth.SignupRequest) (domain.User, Token, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.TrimSpace(req.Email)

	// 1. Validate business rules (email format, password complexity)
	// We check this before any expensive cryptographic operation.
	if err := auth.ValidateSignup(req); err != nil {
		return domain.User{}, "", err
	}

	// 2. Hash the password using Argon2id
	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hashing failed: %w", err)
	}

	// 3. Persist the user, ErrUserAlreadyExists if email is taken
	user, err := s.userRepository.CreateUser(req.FullName, req.Email, hashedPassword)
	if err != nil {
		return domain.User{}, "", err
	}

	// 4. Make the user searchable
	if err := s.index.Index(user.ToDomain()); err != nil {
		s.log.Error("Unable to index new user", "user_id", user.ID, "error", err)
	}

	token, err := s.tokens.GenerateToken(user.ID.String())
	if err != nil {
		return domain.User{}, "", errors.ErrTokenGeneration
	}
	s.log.Info("User signed up", "user_id", user.ID)
	return user.ToDomain(), Token(token), nil
}

func (s *AuthService) Login(_ context.Context, req auth.LoginRequest) (domain.User, Token, error) {
	if err := auth.ValidateLogin(req); err != nil {
		return domain.User{}, "", err
	}

	// Generic error to prevent user enumeration
	user, err := s.userRepository.GetUserByEmail(req.Email)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return domain.User{}, "", errors.ErrInvalidCredentials
		}
		return domain.User{}, "", err
	}

	match, err := auth.ComparePassword(req.Password, user.PasswordHash)
	if err != nil || !match {
		return domain.User{}, "", errors.ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(user.ID.String())
	if err != nil {
		return domain.User{}, "", errors.ErrTokenGeneration
	}
	return user.ToDomain(), Token(token), nil
}

// Authenticate resolves a session token to an existing user.
func (s *AuthService) Authenticate(_ context.Context, token string) (domain.User, error) {
	if token == "" {
		return domain.User{}, errors.ErrMissingToken
	}
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		s.log.Debug("Token rejected", "error", err)
		return domain.User{}, errors.ErrInvalidToken
	}
	userID, ok := domain.ParseUserID(claims.UserID)
	if !ok {
		return domain.User{}, errors.ErrInvalidToken
	}
	user, err := s.userRepository.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return domain.User{}, errors.ErrInvalidToken
		}
		return domain.User{}, err
	}
	return user.ToDomain(), nil
}

// UpdateProfile uploads a new profile picture and stores its URL.
func (s *AuthService) UpdateProfile(ctx context.Context, userID domain.UserID, dataURI string) (domain.User, error) {
	if strings.TrimSpace(dataURI) == "" {
		return domain.User{}, errors.ErrMissingProfilePic
	}
	url, err := s.images.Upload(ctx, dataURI, domain.ProfilePicsFolder)
	if err != nil {
		return domain.User{}, err
	}
	user, err := s.userRepository.UpdateProfilePic(userID, url)
	if err != nil {
		return domain.User{}, err
	}
	return user.ToDomain(), nil
}
