package middleware

import (
	"context"
	"net/http"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type requestInfoKey struct{}

// requestInfo is filled in by handlers further down the chain.
type requestInfo struct {
	staffID int64
}

func noteStaff(ctx context.Context, staffID int64) {
	if info, ok := ctx.Value(requestInfoKey{}).(*requestInfo); ok {
		info.staffID = staffID
	}
}

// LogMiddleware writes one line per request. Bodies are never logged:
// the login endpoint carries passwords.
func LogMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			info := &requestInfo{}
			r = r.WithContext(context.WithValue(r.Context(), requestInfoKey{}, info))

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []any{
				"method", r.Method,
				"uri", r.RequestURI,
				"status", status,
				"size", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chiMiddleware.GetReqID(r.Context()),
			}
			if info.staffID != 0 {
				fields = append(fields, "staff_id", info.staffID)
			}

			if status >= http.StatusInternalServerError {
				logger.Errorw("request failed", fields...)
				return
			}
			logger.Infow("request", fields...)
		})
	}
}
