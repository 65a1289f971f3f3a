package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "vendorkyc/pkg/domain"
	dErrors "vendorkyc/pkg/domain-errors"
	"vendorkyc/pkg/platform/httputil"
	request "vendorkyc/pkg/platform/middleware/request"
	"vendorkyc/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	Subject string
	Role    string
	Actor   string
	JTI     string
}

// RequireAuth validates the bearer token and places the principal in the
// request context. Vendor tokens populate the vendor ID; reviewer tokens only
// the actor and role.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := request.GetRequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			ctx, err = withPrincipal(ctx, claims)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - bad principal",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims"))
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func withPrincipal(ctx context.Context, claims *JWTClaims) (context.Context, error) {
	role := requestcontext.Role(claims.Role)
	actor := claims.Actor
	if actor == "" {
		actor = claims.Subject
	}
	switch role {
	case requestcontext.RoleVendor:
		vendorID, err := id.ParseVendorID(claims.Subject)
		if err != nil {
			return ctx, err
		}
		ctx = requestcontext.WithVendorID(ctx, vendorID)
	case requestcontext.RoleReviewer:
		if _, err := id.ParseReviewerID(claims.Subject); err != nil {
			return ctx, err
		}
	default:
		return ctx, dErrors.New(dErrors.CodeUnauthorized, "unknown role")
	}
	ctx = requestcontext.WithRole(ctx, role)
	ctx = requestcontext.WithActor(ctx, actor)
	return ctx, nil
}

// RequireRole rejects principals whose role differs from role.
func RequireRole(role requestcontext.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requestcontext.PrincipalRole(r.Context()) != role {
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
