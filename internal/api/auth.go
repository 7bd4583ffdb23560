package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"golang.org/x/crypto/bcrypt"

	"github.com/npezzotti/chat-relay/internal/cache"
	"github.com/npezzotti/chat-relay/internal/database"
	"github.com/npezzotti/chat-relay/internal/types"
)

const (
	subClaim       = "sub"
	userIdClaim    = "user_id"
	superuserClaim = "is_superuser"
	iatClaim       = "iat"
	expClaim       = "exp"
)

type contextKey string

const sessionKey contextKey = "session"

func SessionFrom(ctx context.Context) (*cache.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*cache.Session)
	return s, ok
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	ExpiresIn   int             `json:"expires_in"`
	UserInfo    types.AdminUser `json:"user_info"`
}

func HashPassword(passwd string) (string, error) {
	passwdHash, err := bcrypt.GenerateFromPassword([]byte(passwd), bcrypt.DefaultCost)
	return string(passwdHash), err
}

func verifyPassword(passwdHash, passwd string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(passwdHash), []byte(passwd))
	return err == nil
}

func (s *AdminApp) createToken(user database.AdminUser) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		subClaim:       user.Username,
		userIdClaim:    user.Id,
		superuserClaim: user.IsSuperuser,
		iatClaim:       now.Unix(),
		expClaim:       now.Add(s.tokenExpiry).Unix(),
	})

	return token.SignedString(s.signingKey)
}

func (s *AdminApp) verifyToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("missing authorization header")
	}

	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", fmt.Errorf("malformed authorization header")
	}

	return token, nil
}

// authMiddleware requires a valid signed token with a live session
// record in the cache, then applies the per-user request rate limit.
func (s *AdminApp) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			errResp := NewUnauthorizedError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		if _, err := s.verifyToken(token); err != nil {
			s.log.Printf("verify token: %v", err)
			errResp := NewUnauthorizedError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		session, err := s.cache.GetSession(r.Context(), cache.HashToken(token))
		if err != nil {
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		if session == nil || time.Now().After(session.ExpiresAt) {
			// revoked or expired session: token signature alone is not
			// enough
			errResp := NewUnauthorizedError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		allowed, err := s.cache.AllowRequest(r.Context(), session.Username, s.rateLimitRequests, s.rateLimitWindow)
		if err != nil {
			s.log.Printf("request rate limit: %v", err)
		} else if !allowed {
			errResp := NewTooManyRequestsError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		ctx = context.WithValue(ctx, sessionKey, session)
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")

		next(w, r.WithContext(ctx))
	}
}

func (s *AdminApp) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&lr); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if lr.Username == "" || lr.Password == "" {
		errResp := NewUnprocessableError("username and password are required")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetAdminByUsername(lr.Username)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrNotFound) {
			errResp = NewUnauthorizedError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !verifyPassword(user.PasswordHash, lr.Password) {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	resp, err := s.issueSession(r.Context(), user)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.TouchAdminLogin(user.Id); err != nil {
		s.log.Println("touch admin login:", err)
	}

	s.writeJson(w, http.StatusOK, resp)
}

func (s *AdminApp) issueSession(ctx context.Context, user database.AdminUser) (TokenResponse, error) {
	token, err := s.createToken(user)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("sign token: %w", err)
	}

	now := time.Now()
	session := cache.Session{
		UserId:      user.Id,
		Username:    user.Username,
		IsSuperuser: user.IsSuperuser,
		IssuedAt:    now,
		ExpiresAt:   now.Add(s.tokenExpiry),
	}

	if err := s.cache.StoreSession(ctx, cache.HashToken(token), session, s.tokenExpiry); err != nil {
		return TokenResponse{}, fmt.Errorf("store session: %w", err)
	}

	return TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(s.tokenExpiry.Seconds()),
		UserInfo: types.AdminUser{
			Id:          user.Id,
			Username:    user.Username,
			IsSuperuser: user.IsSuperuser,
			CreatedAt:   user.CreatedAt,
			LastLogin:   user.LastLogin,
		},
	}, nil
}

func (s *AdminApp) logout(w http.ResponseWriter, r *http.Request) {
	token, err := bearerToken(r)
	if err != nil {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.cache.DeleteSession(r.Context(), cache.HashToken(token)); err != nil {
		s.log.Println("delete session:", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *AdminApp) refresh(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetAdminByUsername(session.Username)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrNotFound) {
			errResp = NewUnauthorizedError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	resp, err := s.issueSession(r.Context(), user)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// drop the previous token's session record; without it the
	// middleware rejects that token from now on
	if token, err := bearerToken(r); err == nil {
		if err := s.cache.DeleteSession(r.Context(), cache.HashToken(token)); err != nil {
			s.log.Println("delete session:", err)
		}
	}

	s.writeJson(w, http.StatusOK, resp)
}

func (s *AdminApp) me(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetAdminByUsername(session.Username)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrNotFound) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, types.AdminUser{
		Id:          user.Id,
		Username:    user.Username,
		IsSuperuser: user.IsSuperuser,
		CreatedAt:   user.CreatedAt,
		LastLogin:   user.LastLogin,
	})
}
