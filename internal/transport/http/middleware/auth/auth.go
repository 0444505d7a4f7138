package auth

import (
	"context"
	"net/http"
	"strconv"

	"github.com/joel710/agriflow/internal/service/models/principal"
	"github.com/joel710/agriflow/internal/transport/http/respond"
)

type contextKey struct{}

// The identity gateway in front of this service authenticates the session and
// forwards the principal in these headers.
const (
	HeaderUserID = "X-User-Id"
	HeaderRole   = "X-User-Role"
)

type errorBody struct {
	Error string `json:"error"`
}

// NewAuthMiddleware extracts the authenticated principal from the request
// headers and stores it in the context. Requests without a valid principal are
// rejected with 401.
func NewAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(r.Header.Get(HeaderUserID), 10, 64)
		if err != nil || userID <= 0 {
			respond.JSON(w, http.StatusUnauthorized, errorBody{Error: "missing or invalid principal"})

			return
		}

		role, err := principal.ParseRole(r.Header.Get(HeaderRole))
		if err != nil {
			respond.JSON(w, http.StatusUnauthorized, errorBody{Error: "missing or invalid role"})

			return
		}

		ctx := context.WithValue(r.Context(), contextKey{}, principal.Principal{
			UserID: userID,
			Role:   role,
		})

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext returns the principal stored by the middleware.
func FromContext(ctx context.Context) (principal.Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(principal.Principal)

	return p, ok
}
