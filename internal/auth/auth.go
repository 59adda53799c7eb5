// Package auth issues and checks the bearer tokens that guard the admin API.
// Accounts come from configuration; passwords are stored as bcrypt hashes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	DefaultTokenTTL = 7 * 24 * time.Hour
	bcryptCost      = 12
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// User is a configured account.
type User struct {
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
}

type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Service authenticates configured users and signs HS256 tokens.
type Service struct {
	secret []byte
	ttl    time.Duration
	users  map[string]User
	now    func() time.Time
}

func NewService(secret string, ttl time.Duration, users []User) *Service {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	byEmail := make(map[string]User, len(users))
	for _, u := range users {
		if u.Role == "" {
			u.Role = RoleUser
		}
		byEmail[normalizeEmail(u.Email)] = u
	}
	return &Service{secret: []byte(secret), ttl: ttl, users: byEmail, now: time.Now}
}

// Login checks a password and returns a signed token for the user.
func (s *Service) Login(email, password string) (string, User, error) {
	u, ok := s.users[normalizeEmail(email)]
	if !ok || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", User{}, ErrInvalidCredentials
	}
	tok, err := s.Issue(u)
	if err != nil {
		return "", User{}, err
	}
	return tok, u, nil
}

func (s *Service) Issue(u User) (string, error) {
	now := s.now()
	claims := &Claims{
		Email: u.Email,
		Role:  u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

func (s *Service) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	c, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return c, nil
}

// HashPassword produces the hash stored in the users section of the config.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type claimsKey struct{}

// WithClaims stores verified claims in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFrom returns the claims placed by the middleware, if any.
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}
