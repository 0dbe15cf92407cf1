package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	UsernameKey contextKey = "username"
)

func GetUserID(ctx context.Context) string {
	v, _ := ctx.Value(UserIDKey).(string)
	return v
}

func GetUsername(ctx context.Context) string {
	v, _ := ctx.Value(UsernameKey).(string)
	return v
}

// GenerateJWT issues an HS256 token carrying the user id as subject.
func GenerateJWT(userID, username, secret string, expiry time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      userID,
		"username": username,
		"iat":      now.Unix(),
		"exp":      now.Add(expiry).Unix(),
	})
	return token.SignedString([]byte(secret))
}

func parseToken(tokenStr, secret string) (userID, username string, err error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", "", jwt.ErrTokenUnverifiable
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", jwt.ErrTokenInvalidClaims
	}

	userID, _ = claims["sub"].(string)
	username, _ = claims["username"].(string)
	if userID == "" {
		return "", "", jwt.ErrTokenInvalidClaims
	}
	return userID, username, nil
}

// Auth is the huma middleware guarding registered operations. It validates
// the Bearer token and stashes the principal on the request context.
func Auth(jwtSecret string) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		auth := ctx.Header("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			writeUnauthorized(ctx, "authentication required")
			return
		}

		userID, username, err := parseToken(strings.TrimPrefix(auth, "Bearer "), jwtSecret)
		if err != nil {
			writeUnauthorized(ctx, "invalid token")
			return
		}

		echoCtx := humaecho.Unwrap(ctx)
		r := echoCtx.Request()
		newCtx := context.WithValue(r.Context(), UserIDKey, userID)
		newCtx = context.WithValue(newCtx, UsernameKey, username)
		echoCtx.SetRequest(r.WithContext(newCtx))
		next(ctx)
	}
}

// EchoAuth is the same guard for routes registered directly on echo, which
// bypass huma (multipart upload, file download).
func EchoAuth(jwtSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}

			userID, username, err := parseToken(strings.TrimPrefix(auth, "Bearer "), jwtSecret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			r := c.Request()
			newCtx := context.WithValue(r.Context(), UserIDKey, userID)
			newCtx = context.WithValue(newCtx, UsernameKey, username)
			c.SetRequest(r.WithContext(newCtx))
			return next(c)
		}
	}
}

func writeUnauthorized(ctx huma.Context, msg string) {
	ctx.SetStatus(http.StatusUnauthorized)
	ctx.SetHeader("Content-Type", "application/json")
	_ = json.NewEncoder(ctx.BodyWriter()).Encode(huma.ErrorModel{
		Title:  http.StatusText(http.StatusUnauthorized),
		Status: http.StatusUnauthorized,
		Detail: msg,
	})
}
