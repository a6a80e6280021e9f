package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"checkout-service/internal/logging"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"log/slog"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

type Auth struct {
	secret []byte
}

func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

// Require parses the bearer token and stores user id and role in the
// gin context. Token issuance lives in the auth service; this side only
// verifies HMAC signatures.
func (a *Auth) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.authenticate(c) {
			return
		}
		c.Next()
	}
}

// RequireAdmin additionally gates on the admin role claim.
func (a *Auth) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.authenticate(c) {
			return
		}
		if c.GetUint64(ctxRole) != 1 {
			unauth(c)
			return
		}
		c.Next()
	}
}

func (a *Auth) authenticate(c *gin.Context) bool {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		unauth(c)
		return false
	}

	raw := strings.TrimPrefix(auth, "Bearer ")
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	}, jwt.WithLeeway(30*time.Second))
	if err != nil || !token.Valid {
		unauth(c)
		return false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		unauth(c)
		return false
	}

	uid, ok := claimUint(claims, "id")
	if !ok || uid == 0 {
		unauth(c)
		return false
	}

	c.Set(ctxUserID, uid)
	role, _ := claimUint(claims, "role")
	c.Set(ctxRole, role)
	return true
}

func claimUint(claims jwt.MapClaims, name string) (uint64, bool) {
	switch v := claims[name].(type) {
	case float64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}

func unauth(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
}

func userID(c *gin.Context) uint64 {
	return c.GetUint64(ctxUserID)
}

// Logging injects a request-scoped logger and logs one line per request.
func Logging(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header("X-Request-Id", reqID)

		l := base.With(
			"req_id", reqID,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"remote", c.ClientIP(),
		)
		logging.With(c, l)
		c.Request = c.Request.WithContext(logging.WithCtx(c.Request.Context(), l))

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"status", status,
			"dur_ms", time.Since(start).Milliseconds(),
			"resp_bytes", c.Writer.Size(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}
		if status >= http.StatusBadRequest {
			l.Error("http_request", attrs...)
			return
		}
		l.Info("http_request", attrs...)
	}
}
