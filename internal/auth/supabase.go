package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/campaign-dashboard/internal/pkg/httpretry"
)

// SupabaseVerifier validates tokens by calling GET {url}/auth/v1/user.
type SupabaseVerifier struct {
	baseURL string
	anonKey string
	client  httpretry.HTTPDoer
}

// NewSupabaseVerifier creates a remote verifier. client may be nil.
func NewSupabaseVerifier(baseURL, anonKey string, client httpretry.HTTPDoer) *SupabaseVerifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &SupabaseVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		client:  client,
	}
}

type supabaseUser struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	EmailConfirmedAt string `json:"email_confirmed_at"`
}

// Verify implements Verifier.
func (v *SupabaseVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", v.anonKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity provider unreachable: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("identity provider returned %d", resp.StatusCode)
	}

	var u supabaseUser
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("parse user: %w", err)
	}
	if u.ID == "" {
		return nil, ErrInvalidToken
	}
	if u.EmailConfirmedAt == "" {
		return nil, ErrEmailUnconfirmed
	}
	return &Identity{UserID: u.ID, Email: u.Email}, nil
}
