package directory

import (
	"context"
	"strings"
	"time"

	"portal/api/internal/rbac"
)

// RoleMatch is the demo authenticator. It ignores the password and picks the
// first directory user whose role matches a keyword in the username. It does
// not authenticate anyone and must only run in demo deployments.
type RoleMatch struct {
	dir     *Directory
	latency time.Duration
}

func NewRoleMatch(dir *Directory, latency time.Duration) *RoleMatch {
	return &RoleMatch{dir: dir, latency: latency}
}

func (m *RoleMatch) Authenticate(ctx context.Context, creds Credentials) (User, error) {
	if err := wait(ctx, m.latency); err != nil {
		return User{}, err
	}
	user, ok := m.dir.FirstByRole(ClassifyUsername(creds.Username))
	if !ok {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// ClassifyUsername maps "admin" and "editor" substrings to their roles and
// everything else to Viewer.
func ClassifyUsername(username string) rbac.Role {
	name := strings.ToLower(username)
	switch {
	case strings.Contains(name, "admin"):
		return rbac.RoleAdmin
	case strings.Contains(name, "editor"):
		return rbac.RoleEditor
	default:
		return rbac.RoleViewer
	}
}
