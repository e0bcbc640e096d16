// Package remote is the HTTP client for the OpenVote backend. Every failure
// leaves this package as an *apperr.DomainError.
package remote

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

	"github.com/apex/log"
	"github.com/google/uuid"

	"openvote/dashboard/internal/apperr"
	"openvote/dashboard/internal/legal"
	"openvote/dashboard/internal/report"
)

const requestIDHeader = "X-Request-ID"

// TokenSource yields the bearer credential, empty when there is none.
type TokenSource func() string

type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
}

func New(baseURL string, timeout time.Duration, token TokenSource) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		token:      token,
	}
}

// SetTokenSource replaces the credential source. The dashboard wires the
// session manager in after both are built.
func (c *Client) SetTokenSource(token TokenSource) {
	c.token = token
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a token. A 400 or 401 is an
// ErrAuthentication carrying the server's reason.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var out loginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", credentials{username, password}, &out, false)
	if err != nil {
		if de, ok := apperr.As(err); ok && (de.Status == http.StatusUnauthorized || de.Status == http.StatusBadRequest) {
			return "", &apperr.DomainError{Kind: apperr.ErrAuthentication, Code: "INVALID_CREDENTIALS", Message: de.Message, Status: de.Status}
		}
		return "", err
	}
	if out.Token == "" {
		return "", apperr.New(apperr.ErrAuthentication, "EMPTY_TOKEN", "the server returned no token")
	}
	return out.Token, nil
}

// Register creates an account. A 400 is an ErrValidation.
func (c *Client) Register(ctx context.Context, username, password string) error {
	err := c.do(ctx, http.MethodPost, "/auth/register", credentials{username, password}, nil, false)
	if de, ok := apperr.As(err); ok && de.Status == http.StatusBadRequest {
		return &apperr.DomainError{Kind: apperr.ErrValidation, Code: "REGISTRATION_REJECTED", Message: de.Message, Status: de.Status}
	}
	return err
}

// FetchReports lists reports, optionally restricted to one status.
func (c *Client) FetchReports(ctx context.Context, status report.Status) ([]report.Record, error) {
	path := "/reports"
	if status != report.StatusAny {
		path += "?" + url.Values{"status": {string(status)}}.Encode()
	}
	var out []report.Record
	if err := c.do(ctx, http.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateStatus(ctx context.Context, reportID string, status report.Status) error {
	body := struct {
		Status string `json:"status"`
	}{string(status)}
	return c.do(ctx, http.MethodPatch, "/reports/"+url.PathEscape(reportID), body, nil, true)
}

func (c *Client) Qualify(ctx context.Context, reportID string) ([]legal.Match, error) {
	var out struct {
		Matches []legal.Match `json:"matches"`
	}
	if err := c.do(ctx, http.MethodPost, "/admin/reports/"+url.PathEscape(reportID)+"/qualify", nil, &out, true); err != nil {
		return nil, err
	}
	return out.Matches, nil
}

type ActivationToken struct {
	Token    string `json:"activation_token"`
	Role     string `json:"role"`
	RegionID string `json:"region_id"`
}

func (c *Client) GenerateToken(ctx context.Context, role, regionID string) (ActivationToken, error) {
	body := struct {
		Role     string `json:"role"`
		RegionID string `json:"region_id"`
	}{role, regionID}
	var out ActivationToken
	if err := c.do(ctx, http.MethodPost, "/admin/generate-token", body, &out, true); err != nil {
		return ActivationToken{}, err
	}
	return out, nil
}

type User struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Role        string     `json:"role"`
	RegionID    string     `json:"region_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var out struct {
		Users []User `json:"users"`
		Total int    `json:"total"`
	}
	if err := c.do(ctx, http.MethodGet, "/admin/users", nil, &out, true); err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (c *Client) UpdateUser(ctx context.Context, userID, role, regionID string) error {
	body := struct {
		Role     string `json:"role"`
		RegionID string `json:"region_id"`
	}{role, regionID}
	return c.do(ctx, http.MethodPatch, "/admin/users/"+url.PathEscape(userID), body, nil, true)
}

func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodDelete, "/admin/users/"+url.PathEscape(userID), nil, nil, true)
}

type errorBody struct {
	Error string `json:"error"`
}

// do sends one request. With authed set, the bearer credential is attached
// and a 401 becomes ErrAuthorizationExpired; every other failure is
// ErrTransientNetwork.
func (c *Client) do(ctx context.Context, method, path string, in, out any, authed bool) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return apperr.Wrap(apperr.ErrValidation, "BAD_REQUEST_BODY", "could not encode request", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return apperr.Wrap(apperr.ErrTransientNetwork, "BAD_REQUEST", "could not build request", err)
	}
	reqID := uuid.NewString()
	req.Header.Set(requestIDHeader, reqID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed && c.token != nil {
		if token := c.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.ErrTransientNetwork, "NETWORK", "the server could not be reached", err)
	}
	defer resp.Body.Close()

	entry := log.WithFields(log.Fields{
		"method":     method,
		"path":       path,
		"status":     resp.StatusCode,
		"request_id": reqID,
		"took":       time.Since(start).String(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		msg := serverMessage(raw, resp.StatusCode)
		entry.WithField("error", msg).Debug("remote: request failed")
		if authed && resp.StatusCode == http.StatusUnauthorized {
			return &apperr.DomainError{Kind: apperr.ErrAuthorizationExpired, Code: "UNAUTHORIZED", Message: msg, Status: resp.StatusCode}
		}
		return &apperr.DomainError{
			Kind:    apperr.ErrTransientNetwork,
			Code:    fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message: msg,
			Status:  resp.StatusCode,
		}
	}
	entry.Debug("remote: request done")

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &apperr.DomainError{
			Kind:    apperr.ErrTransientNetwork,
			Code:    "BAD_RESPONSE",
			Message: "could not decode the server response",
			Status:  resp.StatusCode,
			Err:     err,
		}
	}
	return nil
}

// serverMessage prefers the backend's {"error": "..."} text.
func serverMessage(raw []byte, status int) string {
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err == nil && eb.Error != "" {
		return eb.Error
	}
	if text := strings.TrimSpace(string(raw)); text != "" && len(text) <= 200 {
		return text
	}
	return http.StatusText(status)
}
