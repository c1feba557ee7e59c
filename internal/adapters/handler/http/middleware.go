package http

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// UserIDHeader names the caller. Authentication happens in front of this
// service.
const UserIDHeader = "X-User-ID"

func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if userID == "" {
			http.Error(w, "Unauthorized: missing "+UserIDHeader+" header", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFrom(r *http.Request) string {
	userID, _ := r.Context().Value(UserIDKey).(string)
	return userID
}
