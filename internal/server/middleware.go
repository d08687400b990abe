package server

import (
	"context"
	"crypto/subtle"
	"strings"

	"reviewsync/internal/service"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
)

// Operations that spend provider credits or rewrite stored data.
var protectedOperations = map[string]bool{
	service.OperationReviewSyncOnboard:  true,
	service.OperationReviewSyncIngest:   true,
	service.OperationReviewSyncAnnotate: true,
}

func requiresAuth(_ context.Context, operation string) bool {
	return protectedOperations[operation]
}

// AuthMiddleware validates the Bearer token. An empty token disables the check.
func AuthMiddleware(token string) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			if token == "" {
				return handler(ctx, req)
			}
			tr, ok := transport.FromServerContext(ctx)
			if !ok {
				return nil, errors.Unauthorized("UNAUTHORIZED", "missing transport info")
			}

			authHeader := tr.RequestHeader().Get("Authorization")
			if authHeader == "" {
				return nil, errors.Unauthorized("UNAUTHORIZED", "missing Authorization header")
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				return nil, errors.Unauthorized("UNAUTHORIZED", "invalid Authorization header format")
			}
			if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
				return nil, errors.Unauthorized("UNAUTHORIZED", "invalid token")
			}
			return handler(ctx, req)
		}
	}
}
