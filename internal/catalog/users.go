package catalog

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/alkuinvito/kasirin/internal/auth"
)

func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	var out []User
	err := s.DB.WithContext(ctx).Order("email").Find(&out).Error
	return out, err
}

func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	if !isUUID(id) {
		return nil, fmt.Errorf("%w: user", ErrNotFound)
	}
	var u User
	if err := s.DB.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, email, name string, role auth.Role) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, invalid("email is invalid")
	}
	if !role.Valid() {
		return nil, invalid("unknown role %q", role)
	}
	u := &User{ID: uuid.NewString(), Email: email, Name: strings.TrimSpace(name), Role: string(role)}
	if err := s.DB.WithContext(ctx).Create(u).Error; err != nil {
		return nil, translate(err, "user")
	}
	return u, nil
}

// SetRole changes another user's role. Owners cannot change their own role.
func (s *Store) SetRole(ctx context.Context, actor auth.Principal, id string, role auth.Role) (*User, error) {
	if !role.Valid() {
		return nil, invalid("unknown role %q", role)
	}
	if id == actor.UserID {
		return nil, fmt.Errorf("%w: cannot change your own role", auth.ErrForbidden)
	}
	if !isUUID(id) {
		return nil, fmt.Errorf("%w: user", ErrNotFound)
	}
	res := s.DB.WithContext(ctx).Model(&User{}).Where("id = ?", id).Update("role", string(role))
	if err := notFoundIfNone(res, "user"); err != nil {
		return nil, err
	}
	return s.GetUser(ctx, id)
}
