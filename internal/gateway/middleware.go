package gateway

import (
	"context"
	"net/http"

	"github.com/lanternhq/lantern/internal/auth"
	"github.com/lanternhq/lantern/internal/model"
	"github.com/lanternhq/lantern/internal/web"
)

type contextKey string

const contextKeyIdentity contextKey = "identity"

// IdentityFromContext returns the authenticated identity for the request.
// Handlers behind the authenticate middleware can rely on it being set.
func IdentityFromContext(ctx context.Context) auth.Identity {
	if id, ok := ctx.Value(contextKeyIdentity).(auth.Identity); ok {
		return id
	}
	return auth.Identity{UserID: "anonymous", Role: auth.RoleAnonymous}
}

// authenticate resolves the bearer credential to an identity and stores it
// in the request context. A missing credential is allowed through as
// anonymous; a present-but-invalid one is rejected with 401.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := web.BearerToken(r)
		if !ok {
			web.WriteError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "malformed Authorization header")
			return
		}

		identity, err := s.authn.Authenticate(token)
		if err != nil {
			s.logger.Warn("authentication rejected",
				"request_id", web.RequestIDFromContext(r.Context()),
				"client_ip", web.ClientIP(r),
			)
			web.WriteError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "Invalid authentication token")
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyIdentity, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
