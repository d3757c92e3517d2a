package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/and161185/dispatch/internal/auth"
	"github.com/and161185/dispatch/internal/errs"
	"github.com/and161185/dispatch/internal/model"
)

type Storage interface {
	GetStaffByID(ctx context.Context, id int64) (model.Staff, error)
}

type TokenParser interface {
	ParseToken(tokenStr string) (auth.Claims, error)
}

type contextKey string

const StaffContextKey contextKey = "staff"

func StaffFromContext(ctx context.Context) (model.Staff, bool) {
	staff, ok := ctx.Value(StaffContextKey).(model.Staff)
	return staff, ok
}

func AuthMiddleware(store Storage, tm TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := tm.ParseToken(tokenStr)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			staff, err := store.GetStaffByID(r.Context(), claims.StaffID)
			if err != nil {
				if errors.Is(err, errs.ErrStaffNotFound) {
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			if !staff.IsActive {
				http.Error(w, "staff account disabled", http.StatusForbidden)
				return
			}

			noteStaff(r.Context(), staff.ID)
			ctx := context.WithValue(r.Context(), StaffContextKey, staff)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
