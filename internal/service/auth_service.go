package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mailflow/mailflow/internal/auth"
	"github.com/mailflow/mailflow/internal/config"
	"github.com/mailflow/mailflow/internal/logger"
	"github.com/mailflow/mailflow/internal/model"
	"github.com/mailflow/mailflow/internal/repository"
)

// Common service errors
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountNotActive   = errors.New("account is not active")
	ErrEmailAlreadyExists = errors.New("email already registered")
	ErrPasswordTooWeak    = errors.New("password does not meet requirements")
)

// AuthService handles authentication business logic
type AuthService struct {
	userRepo    *repository.UserRepository
	tokenSvc    *auth.TokenService
	argonParams *auth.Argon2Params
	cfg         *config.Config
	log         *logger.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(userRepo *repository.UserRepository, tokenSvc *auth.TokenService, cfg *config.Config, log *logger.Logger) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		tokenSvc: tokenSvc,
		argonParams: auth.NewParams(
			cfg.Security.Password.Argon2Memory,
			cfg.Security.Password.Argon2Iterations,
			cfg.Security.Password.Argon2Parallelism,
		),
		cfg: cfg,
		log: log.WithComponent("auth_service"),
	}
}

// RegisterRequest contains the data for registering a new user
type RegisterRequest struct {
	Email       string
	Password    string
	DisplayName string
}

// RegisterResponse contains the response from a registration
type RegisterResponse struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Status string `json:"status"`
}

// Register creates a new user account
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	if !isValidEmail(req.Email) {
		return nil, fmt.Errorf("invalid email format")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, ErrEmailAlreadyExists
	}

	if err := auth.ValidatePassword(req.Password, s.cfg.Security.Password.MinLength); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPasswordTooWeak, err.Error())
	}

	passwordHash, err := auth.HashPassword(req.Password, s.argonParams)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           generateID("usr"),
		Email:        email,
		PasswordHash: passwordHash,
		Status:       model.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	profile := &model.UserProfile{
		UserID:      user.ID,
		DisplayName: defaultString(req.DisplayName, localPart(email)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.userRepo.CreateWithProfile(ctx, user, profile); err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	s.log.Info().Str("user_id", user.ID).Msg("user registered")

	return &RegisterResponse{
		UserID: user.ID,
		Email:  user.Email,
		Status: string(user.Status),
	}, nil
}

// LoginResponse contains the issued session for a verified identity
type LoginResponse struct {
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int    `json:"expiresIn"`
}

// Login verifies the user's credentials, refreshes the profile record, and
// issues an access token
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		s.log.Debug().Str("user_id", user.ID).Msg("password mismatch")
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive() {
		return nil, ErrAccountNotActive
	}

	now := time.Now()
	if err := s.userRepo.RecordLogin(ctx, user.ID, now); err != nil {
		// Bookkeeping only; a successful login still stands.
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to record login time")
	}

	profile, err := s.userRepo.GetProfile(ctx, user.ID)
	if errors.Is(err, repository.ErrNotFound) {
		profile = &model.UserProfile{
			UserID:      user.ID,
			DisplayName: localPart(user.Email),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.userRepo.UpsertProfile(ctx, profile); err != nil {
			s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to create profile on login")
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	token, err := s.tokenSvc.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	s.log.Info().Str("user_id", user.ID).Msg("user logged in")

	return &LoginResponse{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: profile.DisplayName,
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.tokenSvc.AccessTokenTTL().Seconds()),
	}, nil
}

// GetCurrentUser loads the user and profile for an authenticated user ID
func (s *AuthService) GetCurrentUser(ctx context.Context, userID string) (*model.User, *model.UserProfile, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}
	profile, err := s.userRepo.GetProfile(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return user, profile, nil
}

func isValidEmail(email string) bool {
	_, err := mail.ParseAddress(strings.TrimSpace(email))
	return err == nil
}

// localPart derives a default display name from the email address
func localPart(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func generateID(prefix string) string {
	return prefix + "_" + uuid.New().String()
}
