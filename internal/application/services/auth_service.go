package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/keladiary/core/internal/domain/entities"
	"github.com/keladiary/core/internal/infrastructure/config"
	"github.com/keladiary/core/internal/infrastructure/logger"
	"github.com/keladiary/core/internal/ports"
)

// Claims represents the JWT claims
type Claims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// AuthService is the local account mock: a registry of hashed passwords plus
// the single signed-in session.
type AuthService struct {
	mu    sync.RWMutex
	user  *entities.User
	token string

	kv         ports.KVStore
	registry   slot[[]entities.RegisteredUser]
	jwtConfig  config.JWTConfig
	bcryptCost int
	logger     *logger.Logger
	opts       options
}

// NewAuthService creates a signed-out service. Call Restore to resume a
// stored session.
func NewAuthService(kv ports.KVStore, jwtConfig config.JWTConfig, bcryptCost int, log *logger.Logger, opts ...Option) *AuthService {
	o := buildOptions(opts)
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	log = log.WithComponent("auth")
	return &AuthService{
		kv:         kv,
		registry:   newSlot[[]entities.RegisteredUser](kv, ports.KeyRegisteredUsers, log, o.metrics),
		jwtConfig:  jwtConfig,
		bcryptCost: bcryptCost,
		logger:     log,
		opts:       o,
	}
}

// Register adds an account and signs it in.
func (s *AuthService) Register(ctx context.Context, req ports.RegisterRequest) (*ports.AuthResponse, error) {
	if err := recordValidator.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrValidation, err)
	}
	email := normalizeEmail(req.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.usersLocked(ctx)
	if err != nil {
		return nil, err
	}
	if email == entities.DemoEmail {
		return nil, entities.ErrEmailTaken
	}
	for _, u := range users {
		if u.Email == email {
			return nil, entities.ErrEmailTaken
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.opts.clock()
	user := entities.User{
		ID:        now.UnixMilli(),
		Username:  req.Username,
		Email:     email,
		CreatedAt: now,
	}
	users = append(users, entities.RegisteredUser{
		Email:        email,
		PasswordHash: string(hash),
		UserData:     user,
	})
	if err := s.registry.save(ctx, users); err != nil {
		return nil, err
	}

	s.logger.Infow("User registered successfully", "user_id", user.ID, "email", user.Email)
	return s.signInLocked(ctx, user)
}

// Login accepts the demo account or any registered account.
func (s *AuthService) Login(ctx context.Context, req ports.LoginRequest) (*ports.AuthResponse, error) {
	if err := recordValidator.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrValidation, err)
	}
	email := normalizeEmail(req.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if email == entities.DemoEmail && req.Password == entities.DemoPassword {
		s.logger.Infow("Demo account signed in")
		return s.signInLocked(ctx, entities.DemoUser(s.opts.clock()))
	}

	users, err := s.usersLocked(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Email != email {
			continue
		}
		if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
			s.logger.Warnw("Login attempt with invalid password", "email", email, "user_id", u.UserData.ID)
			return nil, entities.ErrInvalidCredentials
		}
		s.logger.Infow("User logged in successfully", "user_id", u.UserData.ID, "email", email)
		return s.signInLocked(ctx, u.UserData)
	}

	s.logger.Warnw("Login attempt with non-existent email", "email", email)
	return nil, entities.ErrInvalidCredentials
}

// Logout forgets the signed-in session.
func (s *AuthService) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked(ctx)
}

// Restore resumes the stored session. Unreadable or expired state is cleared.
func (s *AuthService) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, okToken, err := s.kv.Get(ctx, ports.KeyAuthToken)
	if err != nil {
		return fmt.Errorf("failed to read auth token: %w", err)
	}
	rawUser, okUser, err := s.kv.Get(ctx, ports.KeyAuthUser)
	if err != nil {
		return fmt.Errorf("failed to read auth user: %w", err)
	}
	if !okToken || !okUser {
		return nil
	}

	var user entities.User
	if err := json.Unmarshal(rawUser, &user); err != nil {
		s.logger.Warnw("Stored user unreadable, signing out", "error", err)
		return s.clearLocked(ctx)
	}
	if _, err := s.parseToken(string(token)); err != nil {
		s.logger.Infow("Stored token no longer valid, signing out", "error", err)
		return s.clearLocked(ctx)
	}

	s.user = &user
	s.token = string(token)
	return nil
}

// CurrentUser returns the signed-in user, or nil.
func (s *AuthService) CurrentUser() *entities.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// IsAuthenticated reports whether a session is active.
func (s *AuthService) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.token != ""
}

// ValidateToken validates a JWT token and returns the claims
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	return s.parseToken(tokenString)
}

func (s *AuthService) parseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtConfig.Secret), nil
	}, jwt.WithTimeFunc(s.opts.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", entities.ErrUnauthorized)
	}
	return claims, nil
}

func (s *AuthService) signInLocked(ctx context.Context, user entities.User) (*ports.AuthResponse, error) {
	token, err := s.generateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	rawUser, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user: %w", err)
	}
	if err := s.kv.Set(ctx, ports.KeyAuthToken, []byte(token)); err != nil {
		return nil, fmt.Errorf("failed to store auth token: %w", err)
	}
	if err := s.kv.Set(ctx, ports.KeyAuthUser, rawUser); err != nil {
		return nil, fmt.Errorf("failed to store auth user: %w", err)
	}

	s.user = &user
	s.token = token
	return &ports.AuthResponse{
		User:      user,
		Token:     token,
		ExpiresIn: int64(s.jwtConfig.ExpiresIn.Seconds()),
	}, nil
}

// generateAccessToken creates a JWT access token
func (s *AuthService) generateAccessToken(user entities.User) (string, error) {
	now := s.opts.now()
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtConfig.ExpiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.jwtConfig.Issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtConfig.Secret))
}

func (s *AuthService) usersLocked(ctx context.Context) ([]entities.RegisteredUser, error) {
	users, _, err := s.registry.load(ctx)
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (s *AuthService) clearLocked(ctx context.Context) error {
	s.user = nil
	s.token = ""
	for _, key := range []string{ports.KeyAuthToken, ports.KeyAuthUser} {
		if err := s.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
