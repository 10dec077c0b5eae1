package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/feedback-api/internal/auth"
	"github.com/noah-isme/feedback-api/internal/dto"
	"github.com/noah-isme/feedback-api/internal/models"
	"github.com/noah-isme/feedback-api/internal/repository"
)

var (
	// ErrDuplicateRegistration indicates the username or email is already taken.
	ErrDuplicateRegistration = errors.New("username or email already registered")
	// ErrInvalidCredentials indicates an unknown username or a wrong password.
	ErrInvalidCredentials = errors.New("incorrect username or password")
	// ErrUserNotFound indicates the token subject no longer exists.
	ErrUserNotFound = errors.New("user not found")
)

const tokenTypeBearer = "bearer"

// AuthService exposes registration, login and profile lookups.
type AuthService interface {
	Register(ctx context.Context, req dto.RegisterRequest) (dto.TokenResponse, error)
	Login(ctx context.Context, req dto.LoginRequest) (dto.TokenResponse, error)
	Me(ctx context.Context, userID string) (dto.UserProfileResponse, error)
}

type authService struct {
	users     repository.UserRepository
	tokens    *auth.TokenManager
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAuthService constructs the credential workflow.
func NewAuthService(users repository.UserRepository, tokens *auth.TokenManager, validate *validator.Validate, logger zerolog.Logger) AuthService {
	return &authService{
		users:     users,
		tokens:    tokens,
		validator: validate,
		logger:    logger.With().Str("component", "auth_service").Logger(),
	}
}

func (s *authService) Register(ctx context.Context, req dto.RegisterRequest) (dto.TokenResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Role = strings.ToLower(strings.TrimSpace(req.Role))
	if err := s.validator.Struct(req); err != nil {
		return dto.TokenResponse{}, err
	}

	role := models.RoleAdmin
	if req.Role != "" {
		role = models.UserRole(req.Role)
	}

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, req.Username, req.Email)
	if err != nil {
		return dto.TokenResponse{}, err
	}
	if exists {
		return dto.TokenResponse{}, ErrDuplicateRegistration
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		return dto.TokenResponse{}, err
	}

	user := models.User{
		Username:       req.Username,
		Email:          req.Email,
		HashedPassword: hashed,
		Role:           role,
	}
	if err := s.users.Create(ctx, &user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.TokenResponse{}, ErrDuplicateRegistration
		}
		return dto.TokenResponse{}, err
	}

	s.logger.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Str("email", maskEmailAddress(user.Email)).Msg("user registered")

	return s.issue(user)
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (dto.TokenResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := s.validator.Struct(req); err != nil {
		return dto.TokenResponse{}, err
	}

	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TokenResponse{}, ErrInvalidCredentials
		}
		return dto.TokenResponse{}, err
	}

	if !auth.VerifyPassword(req.Password, user.HashedPassword) {
		return dto.TokenResponse{}, ErrInvalidCredentials
	}

	return s.issue(user)
}

func (s *authService) Me(ctx context.Context, userID string) (dto.UserProfileResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserProfileResponse{}, ErrUserNotFound
		}
		return dto.UserProfileResponse{}, err
	}

	return dto.UserProfileResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     string(user.Role),
	}, nil
}

func (s *authService) issue(user models.User) (dto.TokenResponse, error) {
	token, err := s.tokens.Issue(user.ID, string(user.Role))
	if err != nil {
		return dto.TokenResponse{}, err
	}

	return dto.TokenResponse{
		AccessToken: token,
		TokenType:   tokenTypeBearer,
		Role:        string(user.Role),
		UserID:      user.ID,
	}, nil
}
