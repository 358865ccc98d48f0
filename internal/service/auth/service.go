package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"webshop/internal/domain"
	"webshop/internal/logger"
	tokenrepo "webshop/internal/repository/token"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var validate = validator.New()

var errInvalidCredentials = fmt.Errorf("invalid email or password: %w", domain.ErrUnauthorized)

type userRepo interface {
	Create(ctx context.Context, u domain.User) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// Options configures token signing and lifetimes.
type Options struct {
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Service handles registration, login and token verification.
type Service struct {
	users       userRepo
	tokens      *tokenManager
	secret      []byte
	accessTTL   time.Duration
	passwordMin int
	now         func() time.Time
	logger      *logger.Logger
}

func New(users userRepo, tokens tokenrepo.Repository, opts Options, log *logger.Logger) *Service {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 24 * time.Hour
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 30 * 24 * time.Hour
	}
	return &Service{
		users:       users,
		tokens:      newTokenManager(tokens, opts.RefreshTTL),
		secret:      []byte(opts.JWTSecret),
		accessTTL:   opts.AccessTTL,
		passwordMin: 6,
		now:         time.Now,
		logger:      logger.OrNop(log).With("service", "auth"),
	}
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// RegisterInput captures the fields accepted at signup.
type RegisterInput struct {
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Address  domain.Address `json:"address"`
}

// Session is the result of a successful register, login or refresh.
type Session struct {
	User         *domain.User `json:"user"`
	AccessToken  string       `json:"token"`
	RefreshToken string       `json:"refreshToken,omitempty"`
	ExpiresIn    int          `json:"expiresIn"`
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("name required: %w", domain.ErrInvalidArgument)
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := validate.Var(email, "required,email"); err != nil {
		return nil, fmt.Errorf("valid email required: %w", domain.ErrInvalidArgument)
	}
	password := in.Password
	if len(password) < s.passwordMin {
		return nil, fmt.Errorf("password must be at least %d characters: %w", s.passwordMin, domain.ErrInvalidArgument)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u, err := s.users.Create(ctx, domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hashed),
		Role:         domain.RoleUser,
		Address:      in.Address,
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, fmt.Errorf("user with this email already exists: %w", domain.ErrAlreadyExists)
		}
		return nil, err
	}
	s.logger.Info("user registered", "user_id", u.ID)
	return s.startSession(ctx, u)
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, errInvalidCredentials
	}
	return s.startSession(ctx, u)
}

// Refresh exchanges a valid refresh token for a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	userID, ok := s.tokens.Validate(ctx, refreshToken, s.now())
	if !ok {
		return nil, fmt.Errorf("invalid refresh token: %w", domain.ErrUnauthorized)
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("invalid refresh token: %w", domain.ErrUnauthorized)
		}
		return nil, err
	}
	access, err := s.accessToken(u)
	if err != nil {
		return nil, err
	}
	return &Session{User: u, AccessToken: access, ExpiresIn: int(s.accessTTL.Seconds())}, nil
}

// Me returns the account behind an authenticated principal.
func (s *Service) Me(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

// Authenticate verifies an access token and returns the caller it was issued to.
func (s *Service) Authenticate(tokenString string) (domain.Principal, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(tokenString, &c, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid || c.Subject == "" {
		return domain.Principal{}, fmt.Errorf("invalid or expired token: %w", domain.ErrUnauthorized)
	}
	return domain.Principal{UserID: c.Subject, Role: domain.Role(c.Role)}, nil
}

func (s *Service) startSession(ctx context.Context, u *domain.User) (*Session, error) {
	access, err := s.accessToken(u)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.Issue(ctx, u.ID, s.now())
	if err != nil {
		return nil, err
	}
	return &Session{User: u, AccessToken: access, RefreshToken: refresh, ExpiresIn: int(s.accessTTL.Seconds())}, nil
}

func (s *Service) accessToken(u *domain.User) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	})
	return token.SignedString(s.secret)
}

// PurgeExpired deletes refresh tokens past their expiry.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.tokens.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		s.logger.Warn("purge expired tokens failed", "error", err)
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired refresh tokens purged", "count", n)
	}
	return n, nil
}
