package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/eboda/ride-hail-realtime/pkg/logger"
)

type (
	// TokenVerifier validates a JWT and returns the identity it carries.
	TokenVerifier interface {
		Verify(token string) (userID uuid.UUID, role string, err error)
	}

	Middleware struct {
		verifier TokenVerifier
		limiter  *RateLimiter
		log      logger.Logger
	}
)

func NewMiddleware(verifier TokenVerifier, limiter *RateLimiter, log logger.Logger) *Middleware {
	return &Middleware{
		verifier: verifier,
		limiter:  limiter,
		log:      log,
	}
}

type requestIDKey struct{}

// RequestIDFromContext returns the request id injected by RequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
