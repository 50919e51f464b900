package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/shamadu25/rave-queue-sub001/internal/models"
	"github.com/shamadu25/rave-queue-sub001/internal/store"
)

type authContextKey struct{}

// AuthMiddleware resolves the session token to a staff profile. Kiosk and
// display endpoints stay public; everything else requires a valid session.
func AuthMiddleware(entryStore store.EntryStore, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicEndpoint(r) {
			next.ServeHTTP(w, r)
			return
		}
		sessionID := sessionIDFromRequest(r)
		if sessionID == "" {
			writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "missing session")
			return
		}
		session, err := entryStore.GetSession(r.Context(), sessionID)
		if err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "invalid session")
				return
			}
			writeError(w, requestIDFromRequest(r), http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		profile, err := entryStore.GetProfile(r.Context(), session.UserID)
		if err != nil {
			writeError(w, requestIDFromRequest(r), http.StatusInternalServerError, "internal_error", "profile lookup failed")
			return
		}
		ctx := context.WithValue(r.Context(), authContextKey{}, profile)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func profileFromContext(ctx context.Context) (models.Profile, bool) {
	value := ctx.Value(authContextKey{})
	if value == nil {
		return models.Profile{}, false
	}
	profile, ok := value.(models.Profile)
	if !ok {
		return models.Profile{}, false
	}
	return profile, true
}

func sessionIDFromRequest(r *http.Request) string {
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	return strings.TrimSpace(r.Header.Get("X-Session-ID"))
}

func requestIDFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Request-ID"))
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

func isPublicEndpoint(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/metrics", "/api/display":
		return true
	case "/api/entries":
		// Kiosks create entries without a staff session.
		return r.Method == http.MethodPost
	case "/api/departments":
		return r.Method == http.MethodGet
	default:
		if strings.HasPrefix(r.URL.Path, "/realtime") {
			return true
		}
		return r.Method == http.MethodOptions
	}
}
