package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/and161185/dispatch/internal/auth"
	"github.com/and161185/dispatch/internal/model"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core).Sugar()

	body := `{"login":"anna","password":"secret"}`
	req := httptest.NewRequest(http.MethodPost, "/api/staff/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()

	handler := LogMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("response"))
	}))

	handler.ServeHTTP(rr, req)

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "POST", fields["method"])
	require.Equal(t, "/api/staff/login", fields["uri"])
	require.EqualValues(t, http.StatusCreated, fields["status"])
	require.EqualValues(t, len("response"), fields["size"])
	require.NotContains(t, entries[0].Message, "secret")
	for _, v := range fields {
		if s, ok := v.(string); ok {
			require.NotContains(t, s, "secret")
		}
	}
}

func TestLogMiddlewareServerError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	handler := LogMiddleware(zap.New(core).Sugar())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/orders/1/history", nil))

	require.Equal(t, 1, logs.FilterMessage("request failed").Len())
}

func TestLogMiddlewareRecordsStaff(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	tm := auth.NewTokenManager("test-secret", time.Hour)
	staff := model.Staff{ID: 7, Login: "logist", Role: "logist", IsActive: true}
	token, err := tm.GenerateToken(staff)
	require.NoError(t, err)

	store := &mockStorage{GetStaffFunc: func(ctx context.Context, id int64) (model.Staff, error) {
		return staff, nil
	}}
	inner := AuthMiddleware(store, tm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler := LogMiddleware(zap.New(core).Sugar())(inner)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/1/history", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	require.EqualValues(t, 7, entries[0].ContextMap()["staff_id"])
}
