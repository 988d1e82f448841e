package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"mithai/internal/models"
	"mithai/internal/repositories"
)

// Claims is the payload of a bearer token.
type Claims struct {
	ID    uint        `json:"id"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
	jwt.RegisteredClaims
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token string          `json:"token"`
	User  models.Identity `json:"user"`
}

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo    repositories.UserRepository
	jwtSecret   []byte
	tokenTTL    time.Duration
	adminMarker string
	bcryptCost  int
	log         zerolog.Logger
	now         func() time.Time
}

// AuthOption customizes an AuthService.
type AuthOption func(*AuthService)

// WithTokenTTL sets how long issued tokens stay valid.
func WithTokenTTL(ttl time.Duration) AuthOption {
	return func(s *AuthService) { s.tokenTTL = ttl }
}

// WithAdminMarker sets the email substring that grants the admin role at
// registration. An empty marker makes every registration a plain user.
func WithAdminMarker(marker string) AuthOption {
	return func(s *AuthService) { s.adminMarker = marker }
}

// WithBcryptCost overrides bcrypt.DefaultCost.
func WithBcryptCost(cost int) AuthOption {
	return func(s *AuthService) { s.bcryptCost = cost }
}

// WithAuthLogger attaches a logger.
func WithAuthLogger(log zerolog.Logger) AuthOption {
	return func(s *AuthService) { s.log = log }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, jwtSecret string, opts ...AuthOption) *AuthService {
	s := &AuthService{
		userRepo:    userRepo,
		jwtSecret:   []byte(jwtSecret),
		tokenTTL:    24 * time.Hour,
		adminMarker: "admin",
		bcryptCost:  bcrypt.DefaultCost,
		log:         zerolog.Nop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AssignRole derives the role a new registration receives.
func (s *AuthService) AssignRole(email string) models.Role {
	if s.adminMarker != "" && strings.Contains(email, s.adminMarker) {
		return models.RoleAdmin
	}
	return models.RoleUser
}

// Register creates a user and logs them in.
func (s *AuthService) Register(ctx context.Context, email, password string) (*AuthResult, error) {
	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil, models.ErrEmailTaken
	} else if !errors.Is(err, models.ErrUserNotFound) {
		return nil, err
	}

	user, err := s.createUser(ctx, email, password, s.AssignRole(email))
	if err != nil {
		return nil, err
	}
	s.log.Info().Uint("user_id", user.ID).Str("role", string(user.Role)).Msg("user registered")
	return s.issue(user)
}

// Login checks the password against the stored hash and issues a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, models.ErrInvalidCredential
	}
	return s.issue(user)
}

// EnsureUser creates the user with the given role unless the email exists.
// It reports whether a user was created.
func (s *AuthService) EnsureUser(ctx context.Context, email, password string, role models.Role) (bool, error) {
	_, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, models.ErrUserNotFound) {
		return false, err
	}
	if _, err := s.createUser(ctx, email, password, role); err != nil {
		if errors.Is(err, models.ErrEmailTaken) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *AuthService) createUser(ctx context.Context, email, password string, role models.Role) (*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &models.User{Email: email, Password: string(hashed), Role: role}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	identity := user.Identity()
	token, err := s.IssueToken(identity)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: identity}, nil
}

// IssueToken signs a token for the identity.
func (s *AuthService) IssueToken(identity models.Identity) (string, error) {
	now := s.now()
	claims := Claims{
		ID:    identity.ID,
		Email: identity.Email,
		Role:  identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return signed, nil
}

// Authenticate validates a bearer token. A missing token is
// ErrUnauthenticated; a malformed, forged or expired one is ErrForbidden.
func (s *AuthService) Authenticate(tokenString string) (models.Identity, error) {
	if tokenString == "" {
		return models.Identity{}, models.ErrUnauthenticated
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		s.log.Debug().Err(err).Msg("token rejected")
		return models.Identity{}, fmt.Errorf("%w: invalid token: %w", models.ErrForbidden, err)
	}
	return models.Identity{ID: claims.ID, Email: claims.Email, Role: claims.Role}, nil
}

// RequireRole fails with ErrForbidden unless the identity holds role.
func (s *AuthService) RequireRole(identity models.Identity, role models.Role) error {
	if identity.Role != role {
		return fmt.Errorf("%w: %s privileges required", models.ErrForbidden, role)
	}
	return nil
}
