package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Remote authenticates against the auth server's POST /api/login.
type Remote struct {
	baseURL string
	client  *http.Client
}

func NewRemote(baseURL string, timeout time.Duration) *Remote {
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type remoteLoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	User    User   `json:"user"`
	Message string `json:"message"`
}

func (r *Remote) Authenticate(ctx context.Context, creds Credentials) (User, error) {
	body, err := json.Marshal(creds)
	if err != nil {
		return User{}, fmt.Errorf("encode login: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/login", bytes.NewReader(body))
	if err != nil {
		return User{}, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return User{}, fmt.Errorf("auth server login: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		_, _ = io.Copy(io.Discard, resp.Body)
		return User{}, ErrInvalidCredentials
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return User{}, fmt.Errorf("auth server login: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var payload remoteLoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return User{}, fmt.Errorf("decode login response: %w", err)
	}
	if !payload.Success || payload.User.ID == "" {
		return User{}, ErrInvalidCredentials
	}
	if !payload.User.Role.Valid() {
		return User{}, fmt.Errorf("auth server returned unknown role %q", payload.User.Role)
	}
	return payload.User, nil
}
