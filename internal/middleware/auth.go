package middleware

import (
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/project-management-api/internal/auth"
	"github.com/yukikurage/project-management-api/internal/constants"
	apierrors "github.com/yukikurage/project-management-api/internal/errors"
	"github.com/yukikurage/project-management-api/internal/logger"
)

// TokenVerifier checks a session token and returns its claims
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// RequireAuth authenticates the caller from a Bearer token, the Clerk
// __session cookie, or a previously verified server session. A token always
// wins over the cached session, and the cached session is only honored until
// the token it was built from expires.
func RequireAuth(verifier TokenVerifier) gin.HandlerFunc {
	return requireAuth(verifier, time.Now)
}

func requireAuth(verifier TokenVerifier, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)

		if token := sessionToken(c); token != "" {
			claims, err := verifier.Verify(token)
			if err != nil {
				logger.Log.WithError(err).WithField("path", c.FullPath()).Debug("rejected session token")
				apierrors.Unauthorized(c, "Unauthorized")
				return
			}

			cacheSession(session, claims)
			c.Set(constants.ContextKeyUserID, claims.UserID)
			c.Next()
			return
		}

		userID, ok := session.Get(constants.ContextKeyUserID).(string)
		if !ok || userID == "" {
			apierrors.Unauthorized(c, "Unauthorized")
			return
		}

		expiry, _ := session.Get(constants.SessionKeyExpiry).(int64)
		if expiry == 0 || !now().Before(time.Unix(expiry, 0)) {
			session.Clear()
			if err := session.Save(); err != nil {
				logger.Log.WithError(err).Warn("failed to clear session")
			}
			apierrors.Unauthorized(c, "Unauthorized")
			return
		}

		// Store user ID in context for easy access in handlers
		c.Set(constants.ContextKeyUserID, userID)
		c.Next()
	}
}

// cacheSession remembers the verified caller until the token expires. Tokens
// without an expiry are not cached.
func cacheSession(session sessions.Session, claims *auth.Claims) {
	if claims.Expiry.IsZero() {
		return
	}
	cachedID, _ := session.Get(constants.ContextKeyUserID).(string)
	cachedExp, _ := session.Get(constants.SessionKeyExpiry).(int64)
	if cachedID == claims.UserID && cachedExp == claims.Expiry.Unix() {
		return
	}
	session.Set(constants.ContextKeyUserID, claims.UserID)
	session.Set(constants.SessionKeyExpiry, claims.Expiry.Unix())
	if err := session.Save(); err != nil {
		logger.Log.WithError(err).Warn("failed to save session")
	}
}

func sessionToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		if token, found := strings.CutPrefix(header, "Bearer "); found {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := c.Cookie(constants.ClerkSessionCookie); err == nil {
		return cookie
	}
	return ""
}

// GetUserID retrieves the current user ID from context
func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(constants.ContextKeyUserID)
	if !exists {
		return "", false
	}

	id, ok := userID.(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
