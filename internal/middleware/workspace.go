package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type workspaceKey struct{}

// Workspace makes sure every request carries a workspace handle. The handle
// lives in a cookie so a browser keeps its chats across page loads.
func Workspace(cookieName string, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handle := ""
			if c, err := r.Cookie(cookieName); err == nil {
				if _, parseErr := uuid.Parse(c.Value); parseErr == nil {
					handle = c.Value
				}
			}

			if handle == "" {
				handle = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     cookieName,
					Value:    handle,
					Path:     "/",
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(WithWorkspace(r.Context(), handle)))
		})
	}
}

// WorkspaceFromContext returns the handle installed by Workspace.
func WorkspaceFromContext(ctx context.Context) (string, bool) {
	handle, ok := ctx.Value(workspaceKey{}).(string)
	return handle, ok && handle != ""
}

// WithWorkspace returns a context carrying handle.
func WithWorkspace(ctx context.Context, handle string) context.Context {
	return context.WithValue(ctx, workspaceKey{}, handle)
}
