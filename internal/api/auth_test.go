package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/npezzotti/chat-relay/internal/analytics"
	"github.com/npezzotti/chat-relay/internal/cache"
	"github.com/npezzotti/chat-relay/internal/config"
	"github.com/npezzotti/chat-relay/internal/database"
	"github.com/npezzotti/chat-relay/internal/testutil"
)

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:          []byte("0123456789abcdef0123456789abcdef"),
		TokenExpireMinutes: 60,
		RateLimitRequests:  100,
		RateLimitWindowSec: 60,
		ServerAddr:         ":0",
	}
}

func newTestApp(t *testing.T, mockRepo *database.MockRelayRepository, mockCache *cache.MockRelayCache) *AdminApp {
	logger := testutil.TestLogger(t)
	an := analytics.NewService(logger, mockRepo, mockCache)
	return NewAdminApp(http.NewServeMux(), logger, mockRepo, mockCache, an, nil, testConfig())
}

func adminUser(t *testing.T, password string) database.AdminUser {
	t.Helper()
	hash, err := HashPassword(password)
	assert.NoError(t, err)

	return database.AdminUser{
		Id:           1,
		Username:     "admin",
		PasswordHash: hash,
		IsSuperuser:  true,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestLogin(t *testing.T) {
	user := adminUser(t, "password")

	tcases := []struct {
		name         string
		body         any
		mockUser     database.AdminUser
		mockErr      error
		expectedCode int
	}{
		{
			name:         "successful login",
			body:         LoginRequest{Username: "admin", Password: "password"},
			mockUser:     user,
			expectedCode: http.StatusOK,
		},
		{
			name:         "wrong password",
			body:         LoginRequest{Username: "admin", Password: "nope"},
			mockUser:     user,
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "unknown user",
			body:         LoginRequest{Username: "admin", Password: "password"},
			mockErr:      database.ErrNotFound,
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "missing fields",
			body:         LoginRequest{Username: "admin"},
			expectedCode: http.StatusUnprocessableEntity,
		},
		{
			name:         "invalid json",
			body:         "not json",
			expectedCode: http.StatusBadRequest,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockRelayRepository{}
			mockCache := &cache.MockRelayCache{}
			defer mockRepo.AssertExpectations(t)

			if tc.expectedCode != http.StatusBadRequest && tc.expectedCode != http.StatusUnprocessableEntity {
				mockRepo.On("GetAdminByUsername", "admin").Return(tc.mockUser, tc.mockErr).Once()
			}
			if tc.expectedCode == http.StatusOK {
				mockCache.On("StoreSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(nil).Once()
				mockRepo.On("TouchAdminLogin", 1).Return(nil).Once()
			}

			app := newTestApp(t, mockRepo, mockCache)

			var buf bytes.Buffer
			json.NewEncoder(&buf).Encode(tc.body)
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", &buf)

			app.login(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code, "expected status code to match")

			if tc.expectedCode == http.StatusOK {
				var resp TokenResponse
				assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
				assert.NotEmpty(t, resp.AccessToken, "expected an access token")
				assert.Equal(t, "bearer", resp.TokenType)
				assert.Equal(t, 3600, resp.ExpiresIn)
				assert.Equal(t, "admin", resp.UserInfo.Username)
			}
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	user := adminUser(t, "password")

	t.Run("valid token with live session", func(t *testing.T) {
		mockRepo := &database.MockRelayRepository{}
		mockCache := &cache.MockRelayCache{}
		defer mockCache.AssertExpectations(t)

		app := newTestApp(t, mockRepo, mockCache)
		token, err := app.createToken(user)
		assert.NoError(t, err)

		session := &cache.Session{
			UserId:    1,
			Username:  "admin",
			ExpiresAt: time.Now().Add(time.Hour),
		}
		mockCache.On("GetSession", mock.Anything, cache.HashToken(token)).Return(session, nil).Once()
		mockCache.On("AllowRequest", mock.Anything, "admin", 100, time.Minute).Return(true, nil).Once()

		var called bool
		handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			called = true
			got, ok := SessionFrom(r.Context())
			assert.True(t, ok, "expected session in context")
			assert.Equal(t, "admin", got.Username)
		})

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		handler(rr, req)

		assert.True(t, called, "expected handler to run")
	})

	t.Run("missing header", func(t *testing.T) {
		mockRepo := &database.MockRelayRepository{}
		mockCache := &cache.MockRelayCache{}

		app := newTestApp(t, mockRepo, mockCache)
		handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not run")
		})

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		handler(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("revoked session", func(t *testing.T) {
		mockRepo := &database.MockRelayRepository{}
		mockCache := &cache.MockRelayCache{}
		defer mockCache.AssertExpectations(t)

		app := newTestApp(t, mockRepo, mockCache)
		token, err := app.createToken(user)
		assert.NoError(t, err)

		mockCache.On("GetSession", mock.Anything, cache.HashToken(token)).Return(nil, nil).Once()

		handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not run")
		})

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		handler(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code, "expected a signed token without a session to be rejected")
	})

	t.Run("rate limited", func(t *testing.T) {
		mockRepo := &database.MockRelayRepository{}
		mockCache := &cache.MockRelayCache{}
		defer mockCache.AssertExpectations(t)

		app := newTestApp(t, mockRepo, mockCache)
		token, err := app.createToken(user)
		assert.NoError(t, err)

		session := &cache.Session{UserId: 1, Username: "admin", ExpiresAt: time.Now().Add(time.Hour)}
		mockCache.On("GetSession", mock.Anything, cache.HashToken(token)).Return(session, nil).Once()
		mockCache.On("AllowRequest", mock.Anything, "admin", 100, time.Minute).Return(false, nil).Once()

		handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not run")
		})

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		handler(rr, req)

		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		mockRepo := &database.MockRelayRepository{}
		mockCache := &cache.MockRelayCache{}

		app := newTestApp(t, mockRepo, mockCache)
		handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not run")
		})

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		handler(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
