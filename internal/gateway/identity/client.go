package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/arklim/practicum-auth/internal/core/domain"
	"github.com/arklim/practicum-auth/internal/core/port"
	"github.com/arklim/practicum-auth/internal/infra/config"
)

// Client talks to the external identity service over its REST API. The
// service owns credential verification, token issuance and revocation; this
// client only moves JSON across the boundary.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient constructs a gateway client from settings.
func NewClient(cfg config.IdentitySettings, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	User        *struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"msg"`
}

// ExchangeCredentials performs the password grant and returns the identity
// plus the revocable session token.
func (c *Client) ExchangeCredentials(ctx context.Context, creds port.Credentials) (*domain.Identity, string, error) {
	payload := map[string]string{
		"email":    creds.Email,
		"password": creds.Password,
	}

	status, body, err := c.post(ctx, "/token?grant_type=password", "", payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, "", fmt.Errorf("decode token response: %w", err)
	}

	switch {
	case status == http.StatusOK:
	case status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusUnprocessableEntity:
		return nil, "", domain.ErrInvalidCredentials
	default:
		return nil, "", fmt.Errorf("token endpoint returned status %d", status)
	}

	identity, err := identityFromResponse(resp)
	if err != nil {
		return nil, "", err
	}

	return identity, resp.AccessToken, nil
}

// Revoke invalidates the session token on the backend.
func (c *Client) Revoke(ctx context.Context, token string) error {
	status, _, err := c.post(ctx, "/logout", token, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return fmt.Errorf("logout endpoint returned status %d", status)
	}
	return nil
}

// SignUp creates a new account.
func (c *Client) SignUp(ctx context.Context, input port.SignUpInput) (*domain.Identity, error) {
	payload := map[string]any{
		"email":    input.Email,
		"password": input.Password,
		"data": map[string]string{
			"full_name": input.FullName,
		},
	}

	status, body, err := c.post(ctx, "/signup", "", payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode signup response: %w", err)
	}

	if status != http.StatusOK && status != http.StatusCreated {
		message := resp.Message
		if message == "" {
			message = resp.ErrorDescription
		}
		return nil, fmt.Errorf("signup endpoint returned status %d: %s", status, message)
	}

	return identityFromResponse(resp)
}

func (c *Client) post(ctx context.Context, path, bearer string, payload any) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}

	return resp.StatusCode, body, nil
}

// identityFromResponse takes the identity from the user payload, falling
// back to the access token claims. The token is not verified here; signature
// validation is the identity service's concern and the claims are only mined
// for the opaque id and email.
func identityFromResponse(resp tokenResponse) (*domain.Identity, error) {
	if resp.User != nil && resp.User.ID != "" {
		return &domain.Identity{ID: resp.User.ID, Email: resp.User.Email}, nil
	}

	if resp.AccessToken == "" {
		return nil, fmt.Errorf("token response carries no identity")
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(resp.AccessToken, claims); err != nil {
		return nil, fmt.Errorf("parse access token claims: %w", err)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("access token carries no subject")
	}
	email, _ := claims["email"].(string)

	return &domain.Identity{ID: sub, Email: email}, nil
}

var _ port.IdentityGateway = (*Client)(nil)
