// Package remote is the HTTP client for the LifeLog REST backend. It
// implements the create/update/delete trio per syncable table that the
// sync engine dispatches to.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/kimhsiao/lifelog/backend/internal/errors"
	"github.com/kimhsiao/lifelog/backend/internal/logging"
	syncpkg "github.com/kimhsiao/lifelog/backend/internal/sync"
)

// DefaultTimeout is the per-request HTTP timeout.
const DefaultTimeout = 10 * time.Second

// maxBodyLen bounds how much of an error response is kept.
const maxBodyLen = 1 << 10

// maxResponseSize bounds how much of any response body is read.
const maxResponseSize = 1 << 20

// TokenSource supplies the bearer token for each request. An empty token
// sends no Authorization header.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed bearer token.
type StaticToken string

// Token returns the token.
func (t StaticToken) Token() string { return string(t) }

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// UserID is sent on deletes, which carry no payload.
	UserID     int64
	Tokens     TokenSource
	HTTPClient *http.Client
}

// Client talks to the REST backend.
type Client struct {
	base   *url.URL
	http   *http.Client
	tokens TokenSource
	userID int64
}

var _ syncpkg.Remote = (*Client)(nil)

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, apperrors.New(apperrors.ErrConfigInvalid, "remote base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, apperrors.Newf(apperrors.ErrConfigInvalid, "invalid remote base URL %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	tokens := cfg.Tokens
	if tokens == nil {
		tokens = StaticToken("")
	}

	return &Client{base: base, http: httpClient, tokens: tokens, userID: cfg.UserID}, nil
}

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// classify maps a response status to an error code.
func classify(status int) apperrors.ErrorCode {
	switch {
	case status == http.StatusUnauthorized:
		return apperrors.ErrRemoteUnauthorized
	case status >= 400 && status < 500:
		return apperrors.ErrRemoteRejected
	default:
		return apperrors.ErrRemoteUnavailable
	}
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func userQuery(userID int64) url.Values {
	return url.Values{"user_id": []string{strconv.FormatInt(userID, 10)}}
}

// do sends one request and returns the response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInvalid, "encode request body", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.Wrap(apperrors.ErrSyncTimeout, method+" "+path, err)
		}
		return nil, apperrors.Wrap(apperrors.ErrRemoteUnavailable, method+" "+path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRemoteUnavailable, "read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(data))
		if len(snippet) > maxBodyLen {
			snippet = snippet[:maxBodyLen]
		}
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: snippet}
		code := classify(resp.StatusCode)
		if code == apperrors.ErrRemoteUnauthorized {
			logging.Warn("Remote rejected credentials", map[string]interface{}{
				"method": method,
				"path":   path,
			})
		}
		return nil, apperrors.Wrap(code, method+" "+path, statusErr)
	}

	logging.Debug("Remote call succeeded", map[string]interface{}{
		"method": method,
		"path":   path,
		"status": resp.StatusCode,
	})
	return data, nil
}

// remoteID extracts the "id" field of a create response. The backend
// returns numeric ids; strings are accepted too. The record was created
// once the status is 2xx, so an unreadable id is logged and dropped.
func remoteID(path string, data []byte) string {
	if len(bytes.TrimSpace(data)) == 0 {
		return ""
	}
	var resp struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		logging.Warn("Create response carries no readable id", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return ""
	}
	raw := bytes.TrimSpace(resp.ID)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		logging.Warn("Create response id is neither string nor number", map[string]interface{}{
			"path": path,
			"id":   string(raw),
		})
		return ""
	}
	return n.String()
}
