package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Strob0t/taskpad/internal/config"
	"github.com/Strob0t/taskpad/internal/domain"
	"github.com/Strob0t/taskpad/internal/domain/user"
	"github.com/Strob0t/taskpad/internal/port/database"
)

// ErrInvalidCredentials is returned by Login for an unknown email or a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService handles registration, login and JWT access tokens.
type AuthService struct {
	store  database.Store
	cfg    *config.Auth
	secret []byte
	now    func() time.Time
}

// NewAuthService creates a new authentication service.
func NewAuthService(store database.Store, cfg *config.Auth) *AuthService {
	return &AuthService{
		store:  store,
		cfg:    cfg,
		secret: []byte(cfg.JWTSecret),
		now:    time.Now,
	}
}

// Register creates a new user with a bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, req *user.CreateRequest) (*user.User, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &user.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: string(hash),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Login authenticates a user and returns an access token.
func (s *AuthService) Login(ctx context.Context, req user.LoginRequest) (*user.LoginResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	u, err := s.store.GetUserByEmail(ctx, user.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issue(u)
}

// IssueToken mints an access token for an existing user without a password.
// It backs the admin CLI and must not be exposed over HTTP.
func (s *AuthService) IssueToken(ctx context.Context, email string) (*user.LoginResponse, error) {
	u, err := s.store.GetUserByEmail(ctx, user.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

func (s *AuthService) issue(u *user.User) (*user.LoginResponse, error) {
	token, err := s.signJWT(u)
	if err != nil {
		return nil, fmt.Errorf("sign jwt: %w", err)
	}
	return &user.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int(s.cfg.AccessTokenExpiry.Seconds()),
		User:        *u,
	}, nil
}

// GetUser returns a user by ID.
func (s *AuthService) GetUser(ctx context.Context, id string) (*user.User, error) {
	return s.store.GetUser(ctx, id)
}

// ValidateAccessToken verifies a JWT and returns the claims.
func (s *AuthService) ValidateAccessToken(tokenStr string) (*user.TokenClaims, error) {
	return s.verifyJWT(tokenStr)
}

// --- JWT implementation (HS256 with stdlib) ---

// jwtHeader is the fixed base64url-encoded header for HS256.
var jwtHeader = base64URLEncode([]byte(`{"alg":"HS256","typ":"JWT"}`))

func (s *AuthService) signJWT(u *user.User) (string, error) {
	now := s.now()
	claims := user.TokenClaims{
		UserID:   u.ID,
		Email:    u.Email,
		Name:     u.Name,
		JTI:      uuid.NewString(),
		IssuedAt: now.Unix(),
		Expiry:   now.Add(s.cfg.AccessTokenExpiry).Unix(),
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}

	signingInput := jwtHeader + "." + base64URLEncode(payload)
	return signingInput + "." + s.sign(signingInput), nil
}

func (s *AuthService) sign(input string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(input))
	return base64URLEncode(mac.Sum(nil))
}

func (s *AuthService) verifyJWT(tokenStr string) (*user.TokenClaims, error) {
	parts := strings.SplitN(tokenStr, ".", 3)
	if len(parts) != 3 {
		return nil, errors.New("malformed token")
	}
	if parts[0] != jwtHeader {
		return nil, errors.New("unsupported token header")
	}

	expected := s.sign(parts[0] + "." + parts[1])
	if !hmac.Equal([]byte(parts[2]), []byte(expected)) {
		return nil, errors.New("invalid signature")
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	var claims user.TokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("unmarshal claims: %w", err)
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no subject")
	}
	if claims.Expired(s.now()) {
		return nil, errors.New("token expired")
	}
	return &claims, nil
}

func base64URLEncode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}
