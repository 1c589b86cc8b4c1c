package session

import (
	"errors"
	"net/http"
	"time"

	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// CookieName is the session cookie.
	CookieName = "storefront.sid"
	contextKey = "storefront.session"
)

// CookieOptions control the session cookie.
type CookieOptions struct {
	TTL    time.Duration
	Secure bool
}

// Middleware loads the caller's session, creating one when the cookie is
// missing or stale, and persists it after the handler if it changed.
func Middleware(store Store, opts CookieOptions) gin.HandlerFunc {
	logger := util.GetLogger()

	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var sess *Session
		if id, err := c.Cookie(CookieName); err == nil && id != "" {
			loaded, err := store.Load(ctx, id)
			switch {
			case err == nil:
				sess = loaded
			case !errors.Is(err, ErrNotFound):
				logger.Error("Failed to load session", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
				return
			}
		}
		if sess == nil {
			sess = NewSession()
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(CookieName, sess.ID, int(opts.TTL.Seconds()), "/", "", opts.Secure, true)
		c.Set(contextKey, sess)

		c.Next()

		if sess.Dirty() {
			if err := store.Save(ctx, sess); err != nil {
				logger.Error("Failed to save session", zap.String("session_id", sess.ID), zap.Error(err))
			}
		}
	}
}

// From returns the request's session. It panics if the middleware is not installed.
func From(c *gin.Context) *Session {
	return c.MustGet(contextKey).(*Session)
}

// Commit persists the session immediately, before the response is written.
func Commit(c *gin.Context, store Store) error {
	sess := From(c)
	if !sess.Dirty() {
		return nil
	}
	return store.Save(c.Request.Context(), sess)
}
