package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Togather-Foundation/rsvp/internal/audit"
	"github.com/Togather-Foundation/rsvp/internal/auth"
	"github.com/Togather-Foundation/rsvp/internal/domain/ids"
	"github.com/Togather-Foundation/rsvp/internal/domain/validate"
	"github.com/Togather-Foundation/rsvp/internal/sanitize"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// TokenIssuer mints bearer credentials for an authenticated user.
type TokenIssuer interface {
	Generate(subject, name string) (string, error)
}

type RegisterParams struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

var errPasswordTooLong = ValidationError{
	Field:   "password",
	Message: fmt.Sprintf("must be at most %d bytes", auth.MaxPasswordBytes),
}

type LoginParams struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Session is the result of a successful register or login.
type Session struct {
	User  User
	Token string
}

// Service handles registration, login and identity lookups.
type Service struct {
	repo        Repository
	tokens      TokenIssuer
	auditLogger *audit.Logger
	bcryptCost  int
	logger      zerolog.Logger
	validator   *validator.Validate

	// dummyHash is compared against when the email is unknown so login
	// latency does not reveal which emails are registered.
	dummyHash string
}

func NewService(repo Repository, tokens TokenIssuer, auditLogger *audit.Logger, bcryptCost int, logger zerolog.Logger) *Service {
	dummy, _ := auth.HashPassword("not-a-real-password", bcryptCost)
	return &Service{
		repo:        repo,
		tokens:      tokens,
		auditLogger: auditLogger,
		bcryptCost:  bcryptCost,
		logger:      logger.With().Str("component", "users").Logger(),
		validator:   validate.New(),
		dummyHash:   dummy,
	}
}

// Register creates a user and returns a session for it.
//
// Returns ValidationError for missing or malformed fields and ErrEmailTaken
// when the email is already registered.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*Session, error) {
	params.Name = sanitize.Text(params.Name)
	params.Email = normalizeEmail(params.Email)

	if err := s.check(params); err != nil {
		return nil, err
	}
	// The tag's max counts characters; bcrypt's limit is in bytes.
	if len(params.Password) > auth.MaxPasswordBytes {
		return nil, errPasswordTooLong
	}

	hash, err := auth.HashPassword(params.Password, s.bcryptCost)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return nil, errPasswordTooLong
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, CreateParams{
		ID:           ids.NewUUID(),
		Name:         params.Name,
		Email:        params.Email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.Generate(user.ID, user.Name)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID).Msg("user registered")
	s.auditLogger.LogSuccess(ctx, audit.ActionUserRegistered, user.ID, "user", user.ID, nil)

	return &Session{User: *user, Token: token}, nil
}

// Login verifies credentials. Unknown email and wrong password both yield
// ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, params LoginParams) (*Session, error) {
	params.Email = normalizeEmail(params.Email)
	if err := s.check(params); err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByEmail(ctx, params.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			_ = auth.CheckPassword(s.dummyHash, params.Password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := auth.CheckPassword(user.PasswordHash, params.Password); err != nil {
		s.logger.Debug().Str("user_id", user.ID).Msg("password mismatch")
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID, user.Name)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{User: *user, Token: token}, nil
}

// Get returns the user with the given id.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	if ids.ValidateUUID(id) != nil {
		return nil, ErrUserNotFound
	}
	user, err := s.repo.GetUserByID(ctx, strings.ToLower(strings.TrimSpace(id)))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *Service) check(params any) error {
	err := s.validator.Struct(params)
	if err == nil {
		return nil
	}
	if field, msg, ok := validate.FirstFailure(err); ok {
		return ValidationError{Field: field, Message: msg}
	}
	return fmt.Errorf("validate: %w", err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
