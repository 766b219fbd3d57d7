package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"linkup/auth"
	"linkup/domain"
	"linkup/errors"
	"linkup/mocks"
	"linkup/repositories"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testSecret = "a-test-secret-that-is-long-enough"

type authFixture struct {
	service *AuthService
	repo    *mocks.MockIUserRepository
	index   *mocks.MockIUserIndex
	images  *mocks.MockIImageService
	tokens  auth.TokenManager
}

func newAuthFixture(t *testing.T) authFixture {
	ctrl := gomock.NewController(t)
	f := authFixture{
		repo:   mocks.NewMockIUserRepository(ctrl),
		index:  mocks.NewMockIUserIndex(ctrl),
		images: mocks.NewMockIImageService(ctrl),
		tokens: auth.NewTokenManager(testSecret, 24*time.Hour),
	}
	f.service = NewAuthService(logs.GetLoggerFromLevel(slog.LevelDebug), f.repo, f.index, f.images, f.tokens)
	return f
}

func TestAuthService_Signup(t *testing.T) {
	ctx := context.Background()

	t.Run("should sign up and index the user when input is valid", func(t *testing.T) {
		req := require.New(t)
		f := newAuthFixture(t)
		created := repositories.User{ID: domain.UserID(uuid.NewString()), FullName: "Alice", Email: "alice@example.com"}

		// Expect CreateUser to be called with a hashed password (not the plain one)
		f.repo.EXPECT().
			CreateUser("Alice", "alice@example.com", gomock.Not("ComplexPass123!")).
			Return(created, nil).
			Times(1)
		f.index.EXPECT().Index(created.ToDomain()).Return(nil).Times(1)

		user, token, err := f.service.Signup(ctx, auth.SignupRequest{
			FullName: " Alice ",
			Email:    "alice@example.com",
			Password: "ComplexPass123!",
		})

		req.NoError(err)
		req.Equal(created.ToDomain(), user)
		claims, err := f.tokens.ValidateToken(token.String())
		req.NoError(err)
		req.Equal(created.ID.String(), claims.UserID)
	})

	t.Run("should fail when password complexity is not met", func(t *testing.T) {
		req := require.New(t)
		f := newAuthFixture(t)

		// Repository should NEVER be called
		f.repo.EXPECT().CreateUser(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, token, err := f.service.Signup(ctx, auth.SignupRequest{
			FullName: "Alice",
			Email:    "alice@example.com",
			Password: "simplepassword",
		})

		req.ErrorIs(err, errors.ErrInvalidPassword)
		req.ErrorIs(err, errors.ErrValidation)
		req.Empty(token)
	})

	t.Run("should fail when email already exists", func(t *testing.T) {
		req := require.New(t)
		f := newAuthFixture(t)

		f.repo.EXPECT().
			CreateUser(gomock.Any(), "duplicate@example.com", gomock.Any()).
			Return(repositories.User{}, errors.ErrUserAlreadyExists).
			Times(1)
		f.index.EXPECT().Index(gomock.Any()).Times(0)

		_, _, err := f.service.Signup(ctx, auth.SignupRequest{
			FullName: "Dup",
			Email:    "duplicate@example.com",
			Password: "ComplexPass123!",
		})

		req.ErrorIs(err, errors.ErrConflict)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("should login successfully with correct credentials", func(t *testing.T) {
		req := require.New(t)
		f := newAuthFixture(t)
		hashedPassword, err := auth.HashPassword("Secret123456!")
		req.NoError(err)
		stored := repositories.User{ID: domain.UserID(uuid.NewString()), Email: "user@example.com", PasswordHash: hashedPassword}

		f.repo.EXPECT().GetUserByEmail("user@example.com").Return(stored, nil).Times(1)

		user, token, err := f.service.Login(ctx, auth.LoginRequest{Email: "user@example.com", Password: "Secret123456!"})
		req.NoError(err)
		req.Equal(stored.ID, user.ID)
		req.NotEmpty(token)
	})

	t.Run("should return invalid credentials when password matches nothing", func(t *testing.T) {
		req := require.New(t)
		f := newAuthFixture(t)
		hashedPassword, err := auth.HashPassword("CorrectPassword123!")
		req.NoError(err)

		f.repo.EXPECT().GetUserByEmail("user@example.com").
			Return(repositories.User{PasswordHash: hashedPassword}, nil).Times(1)

		_, _, err = f.service.Login(ctx, auth.LoginRequest{Email: "user@example.com", Password: "WrongPassword123!"})
		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should return invalid credentials when user is not found", func(t *testing.T) {
		req := require.New(t)
		f := newAuthFixture(t)

		f.repo.EXPECT().GetUserByEmail("unknown@example.com").
			Return(repositories.User{}, errors.ErrUserNotFound).Times(1)

		_, _, err := f.service.Login(ctx, auth.LoginRequest{Email: "unknown@example.com", Password: "anyPassword"})
		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})
}

func TestAuthService_Authenticate(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	f := newAuthFixture(t)
	userID := domain.UserID(uuid.NewString())
	token, err := f.tokens.GenerateToken(userID.String())
	req.NoError(err)

	// Missing token
	_, err = f.service.Authenticate(ctx, "")
	req.ErrorIs(err, errors.ErrMissingToken)

	// Forged token
	forged, err := auth.NewTokenManager("another-secret", time.Hour).GenerateToken(userID.String())
	req.NoError(err)
	_, err = f.service.Authenticate(ctx, forged)
	req.ErrorIs(err, errors.ErrInvalidToken)

	// Valid token of an existing user
	f.repo.EXPECT().GetUserByID(userID).Return(repositories.User{ID: userID, FullName: "Alice"}, nil).Times(1)
	user, err := f.service.Authenticate(ctx, token)
	req.NoError(err)
	req.Equal("Alice", user.FullName)

	// Valid token of a deleted user
	f.repo.EXPECT().GetUserByID(userID).Return(repositories.User{}, errors.ErrUserNotFound).Times(1)
	_, err = f.service.Authenticate(ctx, token)
	req.ErrorIs(err, errors.ErrUnauthorized)
}

func TestAuthService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	f := newAuthFixture(t)
	userID := domain.UserID(uuid.NewString())

	_, err := f.service.UpdateProfile(ctx, userID, " ")
	req.ErrorIs(err, errors.ErrMissingProfilePic)

	f.images.EXPECT().Upload(ctx, "data:image/png;base64,AAAA", domain.ProfilePicsFolder).Return("https://cdn/p.png", nil)
	f.repo.EXPECT().UpdateProfilePic(userID, "https://cdn/p.png").Return(repositories.User{ID: userID, ProfilePic: "https://cdn/p.png"}, nil)

	user, err := f.service.UpdateProfile(ctx, userID, "data:image/png;base64,AAAA")
	req.NoError(err)
	req.Equal("https://cdn/p.png", user.ProfilePic)
}
