package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/and161185/dispatch/internal/auth"
	"github.com/and161185/dispatch/internal/errs"
	"github.com/and161185/dispatch/internal/model"
	"github.com/stretchr/testify/require"
)

type mockStorage struct {
	GetStaffFunc func(ctx context.Context, id int64) (model.Staff, error)
}

func (m *mockStorage) GetStaffByID(ctx context.Context, id int64) (model.Staff, error) {
	return m.GetStaffFunc(ctx, id)
}

func TestAuthMiddleware(t *testing.T) {
	tm := auth.NewTokenManager("test-secret", time.Hour)
	validToken, err := tm.GenerateToken(model.Staff{ID: 1, Login: "logist", Role: "logist"})
	require.NoError(t, err)

	tests := []struct {
		name           string
		authHeader     string
		storage        Storage
		expectedStatus int
	}{
		{
			name:           "no header",
			authHeader:     "",
			storage:        &mockStorage{},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "invalid token",
			authHeader:     "Bearer invalidtoken",
			storage:        &mockStorage{},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:       "staff not found",
			authHeader: "Bearer " + validToken,
			storage: &mockStorage{
				GetStaffFunc: func(ctx context.Context, id int64) (model.Staff, error) {
					return model.Staff{}, errs.ErrStaffNotFound
				},
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:       "storage error",
			authHeader: "Bearer " + validToken,
			storage: &mockStorage{
				GetStaffFunc: func(ctx context.Context, id int64) (model.Staff, error) {
					return model.Staff{}, errors.New("some db error")
				},
			},
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:       "disabled",
			authHeader: "Bearer " + validToken,
			storage: &mockStorage{
				GetStaffFunc: func(ctx context.Context, id int64) (model.Staff, error) {
					return model.Staff{ID: 1, Login: "logist"}, nil
				},
			},
			expectedStatus: http.StatusForbidden,
		},
		{
			name:       "ok",
			authHeader: "Bearer " + validToken,
			storage: &mockStorage{
				GetStaffFunc: func(ctx context.Context, id int64) (model.Staff, error) {
					return model.Staff{ID: id, Login: "logist", IsActive: true}, nil
				},
			},
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			rr := httptest.NewRecorder()
			mw := AuthMiddleware(tt.storage, tm)
			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				staff, ok := StaffFromContext(r.Context())
				require.True(t, ok)
				require.Equal(t, int64(1), staff.ID)
				w.WriteHeader(http.StatusOK)
			}))

			handler.ServeHTTP(rr, req)

			require.Equal(t, tt.expectedStatus, rr.Code)
		})
	}
}
