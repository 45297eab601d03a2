// Package auth issues and verifies the signed session credential carried by
// the session_token cookie.
package auth

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionDuration is the validity window of a session token. Tokens are
// re-issued on every login and registration, never silently refreshed.
const SessionDuration = 7 * 24 * time.Hour

// CookieName is the session cookie set on login and registration.
const CookieName = "session_token"

var ErrInvalidToken = errors.New("invalid session token")

// SignToken creates an HS256 session token with the user id as subject.
func SignToken(userID int64, secret []byte) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(SessionDuration)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// VerifyToken validates a session token and returns the user id it carries.
func VerifyToken(tokenString string, secret []byte) (int64, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, err
	}
	if !token.Valid {
		return 0, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return userID, nil
}

// SessionCookie builds the HTTP-only, same-site-lax cookie carrying the token.
func SessionCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   false,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(SessionDuration / time.Second),
	}
}
