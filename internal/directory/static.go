package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Account binds a login name and bcrypt hash to a directory user.
type Account struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"passwordHash"`
	UserID       string `yaml:"userId"`
}

// Static checks exact usernames and bcrypt passwords. Roles come from the
// directory at login time so RBAC updates apply to the next login.
type Static struct {
	dir      *Directory
	accounts map[string]Account
	latency  time.Duration
	dummy    []byte
}

func NewStatic(dir *Directory, accounts []Account, latency time.Duration) (*Static, error) {
	s := &Static{dir: dir, accounts: make(map[string]Account, len(accounts)), latency: latency}
	for _, a := range accounts {
		if _, ok := dir.Get(a.UserID); !ok {
			return nil, fmt.Errorf("account %q: %w", a.Username, ErrUserNotFound)
		}
		if _, err := bcrypt.Cost([]byte(a.PasswordHash)); err != nil {
			return nil, fmt.Errorf("account %q: %w", a.Username, err)
		}
		s.accounts[a.Username] = a
	}
	// Compared against for unknown usernames so both paths cost one bcrypt.
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-password"), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("hash placeholder: %w", err)
	}
	s.dummy = dummy
	return s, nil
}

func (s *Static) Authenticate(ctx context.Context, creds Credentials) (User, error) {
	if err := wait(ctx, s.latency); err != nil {
		return User{}, err
	}
	account, ok := s.accounts[creds.Username]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(s.dummy, []byte(creds.Password))
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(creds.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, fmt.Errorf("compare password: %w", err)
	}
	user, ok := s.dir.Get(account.UserID)
	if !ok {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// HashPassword produces the passwordHash stored for an Account.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
