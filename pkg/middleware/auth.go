package middleware

import (
	"net/http"
	"strings"

	"github.com/tiendalabs/tienda/pkg/auth"
	"github.com/tiendalabs/tienda/pkg/rbac"
	"github.com/tiendalabs/tienda/pkg/response"
	"github.com/tiendalabs/tienda/pkg/session"
)

// Authenticate resolves the caller's identity and stores it in the request
// context. Two credentials are accepted, in order:
//
//  1. A Bearer JWT in the Authorization header (API clients).
//  2. The server-side session cookie (browser clients).
//
// Requests without credentials pass through unauthenticated; use RequireAuth
// or RequireCapability on routes that need a caller.
func Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := identityFromBearer(r); ok {
			r = r.WithContext(auth.WithIdentity(r.Context(), id))
			next.ServeHTTP(w, r)
			return
		}
		if id, ok := identityFromSession(r); ok {
			r = r.WithContext(auth.WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func identityFromBearer(r *http.Request) (auth.Identity, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return auth.Identity{}, false
	}
	claims, err := auth.ValidateToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return auth.Identity{}, false
	}
	return claims.Identity(), true
}

func identityFromSession(r *http.Request) (auth.Identity, bool) {
	sess := session.FromCtx(r)
	if sess == nil {
		return auth.Identity{}, false
	}
	email, ok := sess.GetString("email")
	if !ok || email == "" {
		return auth.Identity{}, false
	}
	userID, _ := sess.GetString("user_id")
	role, _ := sess.GetString("role")
	cartID, _ := sess.GetString("cart_id")
	return auth.Identity{
		UserID: userID,
		Email:  email,
		Role:   rbac.Role(role),
		CartID: cartID,
	}, true
}

// RequireAuth rejects requests that carry no authenticated identity.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.FromCtx(r.Context()); !ok {
			response.Unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireCapability rejects callers whose role does not grant the capability.
// Unauthenticated requests get a 401, authenticated-but-unentitled a 403.
func RequireCapability(cap rbac.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.FromCtx(r.Context())
			if !ok {
				response.Unauthorized(w)
				return
			}
			if !rbac.Can(id.Role, cap) {
				response.Forbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects callers whose role is not one of the given roles.
func RequireRole(roles ...rbac.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.FromCtx(r.Context())
			if !ok {
				response.Unauthorized(w)
				return
			}
			for _, role := range roles {
				if id.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			response.Forbidden(w)
		})
	}
}
