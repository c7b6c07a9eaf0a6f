package grader

import (
	"net/http"
	"time"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithDefaultRubric sets the rubric sent when an upload carries none.
func WithDefaultRubric(rubric string) Option {
	return func(c *Client) {
		if rubric != "" {
			c.defaultRubric = rubric
		}
	}
}
