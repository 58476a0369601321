package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mtlprog/taskgate/internal/domain"
)

type contextKey string

const (
	// ContextKeyProfile is the key for storing the caller's profile in request context.
	ContextKeyProfile contextKey = "profile"
)

// ProfileGetter loads the profile a token refers to.
type ProfileGetter interface {
	GetProfile(ctx context.Context, profileID string) (*domain.Profile, error)
}

// AuthMiddleware handles Bearer token authentication.
type AuthMiddleware struct {
	tokens   *TokenCodec
	profiles ProfileGetter
}

// NewAuthMiddleware creates a new AuthMiddleware.
func NewAuthMiddleware(tokens *TokenCodec, profiles ProfileGetter) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:   tokens,
		profiles: profiles,
	}
}

// Authenticate validates the Bearer token and adds the caller's profile to the request context.
// The role always comes from the profile store, never from the token.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Extract Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "missing authorization header", http.StatusUnauthorized)
			return
		}

		// Parse Bearer token
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
			return
		}

		token := strings.TrimSpace(parts[1])
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		profileID, err := m.tokens.Verify(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		profile, err := m.profiles.GetProfile(r.Context(), profileID)
		if err != nil {
			if errors.Is(err, domain.ErrProfileNotFound) {
				http.Error(w, "unknown profile", http.StatusUnauthorized)
				return
			}
			slog.Error("failed to load profile", "profile_id", profileID, "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyProfile, profile)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetProfileFromContext retrieves the authenticated profile from request context.
func GetProfileFromContext(ctx context.Context) (*domain.Profile, error) {
	profile, ok := ctx.Value(ContextKeyProfile).(*domain.Profile)
	if !ok || profile == nil {
		return nil, domain.ErrProfileNotFound
	}
	return profile, nil
}

// GetActorFromContext returns the authenticated caller as a workflow actor.
func GetActorFromContext(ctx context.Context) (domain.Actor, error) {
	profile, err := GetProfileFromContext(ctx)
	if err != nil {
		return domain.Actor{}, err
	}
	return domain.ActorFromProfile(profile), nil
}
