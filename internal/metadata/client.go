package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"elsa-fe/internal/domain"
)

// Client is the HTTP collaborator that serves static session metadata and
// credential issuance. Every authenticated call carries the bearer token;
// the realtime channel is handled elsewhere.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpc:   &http.Client{Timeout: timeout},
	}
}

// SessionByCode fetches the descriptor for a session code.
func (c *Client) SessionByCode(ctx context.Context, code string) (domain.SessionDescriptor, error) {
	var desc domain.SessionDescriptor
	if err := c.getJSON(ctx, "/quiz/code/"+url.PathEscape(code), &desc); err != nil {
		return domain.SessionDescriptor{}, err
	}
	return desc, nil
}

// Participants fetches the current roster for a session ID.
func (c *Client) Participants(ctx context.Context, sessionID string) ([]domain.Participant, error) {
	var roster []domain.Participant
	if err := c.getJSON(ctx, "/quiz/"+url.PathEscape(sessionID)+"/participants", &roster); err != nil {
		return nil, err
	}
	return roster, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login exchanges credentials for a bearer token. The endpoint takes a
// form-encoded body, matching the auth collaborator's OAuth-style contract.
func Login(ctx context.Context, baseURL, username, password string, timeout time.Duration) (string, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(baseURL, "/")+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	return doTokenRequest(req, timeout)
}

// Signup registers a new account and returns its bearer token.
func Signup(ctx context.Context, baseURL, email, password string, timeout time.Duration) (string, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", fmt.Errorf("encode signup body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(baseURL, "/")+"/signup", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build signup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return doTokenRequest(req, timeout)
}

func doTokenRequest(req *http.Request, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpc := &http.Client{Timeout: timeout}
	resp, err := httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", domain.ErrUnauthenticated
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("auth request failed: status %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode auth response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("auth response missing access_token")
	}
	return tr.AccessToken, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	if c.token == "" {
		return domain.ErrUnauthenticated
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.ErrUnauthenticated
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrSessionNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request %s failed: status %d: %s", endpoint, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}
