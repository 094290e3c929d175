// Package user defines the account model used for authentication.
package user

import (
	"net/mail"
	"strings"
	"time"

	"github.com/Strob0t/taskpad/internal/domain"
)

// LocalUserID is the built-in account every request acts as when
// authentication is disabled.
const LocalUserID = "00000000-0000-0000-0000-000000000000"

const (
	MinPasswordLength = 8
	MaxNameLength     = 100
)

// User is a registered account. Tasks are scoped to it.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Local returns the single-user account used when auth is off.
func Local() *User {
	return &User{ID: LocalUserID, Email: "local@localhost", Name: "Local User"}
}

// IsLocal reports whether u is the built-in local account.
func (u *User) IsLocal() bool { return u != nil && u.ID == LocalUserID }

// NormalizeEmail lowercases and trims an address so lookups are case-insensitive.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CreateRequest registers a new account.
type CreateRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"` //nolint:gosec // request field, not a hardcoded secret
}

// Normalize trims the name and normalizes the email in place.
func (r *CreateRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
	r.Name = strings.TrimSpace(r.Name)
}

// Validate returns a *domain.FieldError for the first bad field.
func (r *CreateRequest) Validate() error {
	switch {
	case r.Email == "":
		return domain.Invalid("email", "email is required")
	case !validEmail(r.Email):
		return domain.Invalid("email", "invalid email format")
	case r.Name == "":
		return domain.Invalid("name", "name is required")
	case len(r.Name) > MaxNameLength:
		return domain.Invalid("name", "name too long (max %d chars)", MaxNameLength)
	case r.Password == "":
		return domain.Invalid("password", "password is required")
	case len(r.Password) < MinPasswordLength:
		return domain.Invalid("password", "password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// LoginRequest authenticates by email and password.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"` //nolint:gosec // request field, not a hardcoded secret
}

func (r *LoginRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return domain.Invalid("email", "email is required")
	}
	if r.Password == "" {
		return domain.Invalid("password", "password is required")
	}
	return nil
}

// LoginResponse carries the access token. ExpiresIn is in seconds.
type LoginResponse struct {
	AccessToken string `json:"access_token"` //nolint:gosec // response field, not a hardcoded secret
	ExpiresIn   int    `json:"expires_in"`
	User        User   `json:"user"`
}

// TokenClaims is the JWT payload.
type TokenClaims struct {
	UserID   string `json:"sub"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	JTI      string `json:"jti"`
	IssuedAt int64  `json:"iat"`
	Expiry   int64  `json:"exp"`
}

// Expired reports whether the token is past its exp claim at now.
func (c *TokenClaims) Expired(now time.Time) bool {
	return now.Unix() >= c.Expiry
}

// User returns the account the claims describe.
func (c *TokenClaims) User() *User {
	return &User{ID: c.UserID, Email: c.Email, Name: c.Name}
}

// validEmail accepts a bare address only, not "Name <addr>".
func validEmail(s string) bool {
	a, err := mail.ParseAddress(s)
	return err == nil && a.Address == s
}
