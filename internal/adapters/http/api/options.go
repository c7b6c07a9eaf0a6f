package api

import "github.com/okian/gradeboard/pkg/logger"

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithIngestSecret requires an HS256 bearer token on POST /results.
// An empty secret leaves the endpoint open.
func WithIngestSecret(secret string) Option {
	return func(s *Server) {
		if secret != "" {
			s.auth = newTokenVerifier(secret)
		}
	}
}

// WithCORSOrigins sets the allowed CORS origins.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

// WithMaxUploadBytes caps the multipart body accepted by the upload route.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithMaxResultBytes caps the JSON body accepted by POST /results.
func WithMaxResultBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxResultBytes = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}
