package loadtest

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

	"github.com/golang-jwt/jwt/v5"

	model "github.com/okian/gradeboard/internal/domain/model"
)

const (
	tokenLifetime = time.Hour
	tokenIssuer   = "gradectl"
)

// Outcome is the result of posting one submission.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeAccepted
	OutcomeDuplicate
)

// Client talks to a running gradeboard over HTTP.
type Client struct {
	base   string
	http   *http.Client
	bearer string
}

// NewClient creates a client for baseURL. When secret is set, every
// POST /results carries an HS256 bearer token signed with it.
func NewClient(baseURL string, timeout time.Duration, secret string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}
	c := &Client{base: u.String(), http: &http.Client{Timeout: timeout}}
	if secret != "" {
		now := time.Now()
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
		})
		signed, err := tok.SignedString([]byte(secret))
		if err != nil {
			return nil, fmt.Errorf("sign token: %w", err)
		}
		c.bearer = "Bearer " + signed
	}
	return c, nil
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodGet, "/healthz", nil, "")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// Submit posts one submission to /results.
func (c *Client) Submit(ctx context.Context, sub model.Submission) (Outcome, error) {
	body, err := json.Marshal(sub)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("marshal submission: %w", err)
	}
	resp, err := c.send(ctx, http.MethodPost, "/results", body, c.bearer)
	if err != nil {
		return OutcomeFailed, err
	}
	defer func() { _ = resp.Body.Close() }()

	_, _ = io.Copy(io.Discard, resp.Body)
	switch resp.StatusCode {
	case http.StatusAccepted:
		return OutcomeAccepted, nil
	case http.StatusOK:
		return OutcomeDuplicate, nil
	default:
		return OutcomeFailed, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
}

// Summary fetches GET /assessments/{id}/summary.
func (c *Client) Summary(ctx context.Context, id model.ID) (Summary, error) {
	var out Summary
	err := c.getJSON(ctx, "/assessments/"+url.PathEscape(id.String())+"/summary", &out)
	return out, err
}

// Report fetches GET /assessments/{id}/report in the given format and
// returns the raw body.
func (c *Client) Report(ctx context.Context, id model.ID, format string) ([]byte, error) {
	path := "/assessments/" + url.PathEscape(id.String()) + "/report"
	if format != "" {
		path += "?format=" + url.QueryEscape(format)
	}
	resp, err := c.send(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.send(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, auth string) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}
