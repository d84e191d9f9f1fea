package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleOwner    Role = "owner"
)

var rank = map[Role]int{RoleEmployee: 1, RoleManager: 2, RoleOwner: 3}

func (r Role) Valid() bool { return rank[r] > 0 }

// AtLeast reports whether r carries every capability of min.
func (r Role) AtLeast(min Role) bool { return r.Valid() && rank[r] >= rank[min] }

// Principal is the capability a request carries: who acts, and with which role.
type Principal struct {
	UserID string
	Role   Role
}

// Allow returns ErrForbidden when p's role ranks below min.
func (p Principal) Allow(min Role) error {
	if !p.Role.AtLeast(min) {
		return fmt.Errorf("%w: %s requires %s", ErrForbidden, p.Role, min)
	}
	return nil
}

type Tokens struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Tokens{Secret: []byte(secret), TTL: ttl}
}

func (t *Tokens) Issue(p Principal) (string, error) {
	if _, err := uuid.Parse(p.UserID); err != nil {
		return "", fmt.Errorf("user id must be a uuid: %w", err)
	}
	if !p.Role.Valid() {
		return "", fmt.Errorf("unknown role %q", p.Role)
	}
	now := t.now()
	claims := jwt.MapClaims{
		"sub":  p.UserID,
		"role": string(p.Role),
		"typ":  "access",
		"iat":  now.Unix(),
		"exp":  now.Add(t.TTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Secret)
}

func (t *Tokens) Parse(token string) (Principal, error) {
	parsed, err := jwt.Parse(token, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.Secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return Principal{}, fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, fmt.Errorf("%w: invalid claims", ErrUnauthorized)
	}
	if typ, _ := claims["typ"].(string); typ != "access" {
		return Principal{}, fmt.Errorf("%w: invalid token type", ErrUnauthorized)
	}
	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	p := Principal{UserID: sub, Role: Role(role)}
	if _, err := uuid.Parse(p.UserID); err != nil || !p.Role.Valid() {
		return Principal{}, fmt.Errorf("%w: invalid subject", ErrUnauthorized)
	}
	return p, nil
}

// FromHeader parses an "Authorization: Bearer <token>" value.
func (t *Tokens) FromHeader(h string) (Principal, error) {
	parts := strings.SplitN(strings.TrimSpace(h), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return Principal{}, fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
	}
	return t.Parse(strings.TrimSpace(parts[1]))
}

func (t *Tokens) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}
