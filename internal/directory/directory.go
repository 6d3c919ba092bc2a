// Package directory is the portal's user directory and the pluggable
// authenticators that resolve credentials against it.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"portal/api/internal/rbac"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
)

type User struct {
	ID     string    `json:"id" yaml:"id"`
	Name   string    `json:"name" yaml:"name"`
	Email  string    `json:"email" yaml:"email"`
	Role   rbac.Role `json:"role" yaml:"role"`
	Avatar string    `json:"avatar,omitempty" yaml:"avatar"`
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Domain   string `json:"domain"`
}

// Authenticator resolves credentials to a directory user. A mismatch is
// reported as ErrInvalidCredentials; any other error is a failure of the
// authenticator itself.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (User, error)
}

// Directory is the manageable user list behind the RBAC tab.
type Directory struct {
	mu    sync.RWMutex
	users []User
}

func New(users []User) (*Directory, error) {
	seen := make(map[string]struct{}, len(users))
	for _, u := range users {
		if u.ID == "" {
			return nil, errors.New("directory user with empty id")
		}
		if _, dup := seen[u.ID]; dup {
			return nil, fmt.Errorf("duplicate directory user %q", u.ID)
		}
		if !u.Role.Valid() {
			return nil, fmt.Errorf("directory user %q: unknown role %q", u.ID, u.Role)
		}
		seen[u.ID] = struct{}{}
	}
	return &Directory{users: append([]User(nil), users...)}, nil
}

func (d *Directory) List() []User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]User(nil), d.users...)
}

func (d *Directory) Get(id string) (User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, u := range d.users {
		if u.ID == id {
			return u, true
		}
	}
	return User{}, false
}

// FirstByRole returns the first user, in directory order, holding role.
func (d *Directory) FirstByRole(role rbac.Role) (User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, u := range d.users {
		if u.Role == role {
			return u, true
		}
	}
	return User{}, false
}

func (d *Directory) UpdateRole(id string, role rbac.Role) (User, error) {
	if !role.Valid() {
		return User{}, fmt.Errorf("update role: unknown role %q", role)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.users {
		if d.users[i].ID == id {
			d.users[i].Role = role
			return d.users[i], nil
		}
	}
	return User{}, fmt.Errorf("update role %q: %w", id, ErrUserNotFound)
}

// wait simulates directory latency. It returns early with ctx.Err().
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
