package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"
)

// User is an authenticated caller
type User struct {
	ID    string
	Email string
}

// Authenticator verifies bearer tokens
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*User, error)
}

// SupabaseAuth verifies Supabase access tokens against the auth API
type SupabaseAuth struct {
	client *supabase.Client
}

// NewSupabaseAuth creates an authenticator for the project at url
func NewSupabaseAuth(url, anonKey string) (*SupabaseAuth, error) {
	if url == "" || anonKey == "" {
		return nil, errors.New("supabase url and anon key are required")
	}
	client, err := supabase.NewClient(url, anonKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &SupabaseAuth{client: client}, nil
}

// Authenticate resolves token to its user
func (a *SupabaseAuth) Authenticate(ctx context.Context, token string) (*User, error) {
	resp, err := a.client.Auth.WithToken(token).GetUser()
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return &User{ID: resp.ID.String(), Email: resp.Email}, nil
}

type userKey struct{}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// authenticate attaches the token's user to the request context. Without
// an authenticator, or without a token when auth is optional, the request
// passes through and user_id comes from the query.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			next.ServeHTTP(w, r)
			return
		}

		token := bearerToken(r)
		if token == "" {
			if s.config.RequireAuth {
				respondAPIError(w, &APIError{Status: http.StatusUnauthorized, Err: "Unauthorized", Code: CodeUnauthorized, Message: "A bearer token is required"})
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		user, err := s.auth.Authenticate(r.Context(), token)
		if err != nil {
			s.logger.Info("token rejected", zap.Error(err))
			respondAPIError(w, &APIError{Status: http.StatusUnauthorized, Err: "Unauthorized", Code: CodeUnauthorized, Message: "Invalid or expired token"})
			return
		}

		if s.store != nil && user.Email != "" {
			if err := s.store.SyncProfile(r.Context(), user.ID, user.Email); err != nil {
				s.logger.Warn("failed to sync profile", zap.String("user_id", user.ID), zap.Error(err))
			}
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	})
}

// userID returns the caller's id. An authenticated caller may only name
// themselves in ?user_id.
func userID(r *http.Request) (string, *APIError) {
	query := strings.TrimSpace(r.URL.Query().Get("user_id"))

	if user, ok := r.Context().Value(userKey{}).(*User); ok {
		if query != "" && query != user.ID {
			return "", &APIError{Status: http.StatusForbidden, Err: "Forbidden", Code: CodeForbidden, Message: "user_id does not match the authenticated user"}
		}
		return user.ID, nil
	}

	if query == "" {
		return "", validationError("Missing user_id", "user_id is required")
	}
	return query, nil
}
