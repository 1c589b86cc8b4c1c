package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/internal/checkout"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestMemoryStore_RoundTripAndExpiry(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	sess := NewSession()
	sess.Checkout = checkout.New("chk-1", true)
	require.NoError(t, store.Save(ctx, sess))
	assert.False(t, sess.Dirty())

	loaded, err := store.Load(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "chk-1", loaded.Checkout.CheckoutID)
	assert.Equal(t, checkout.StatusStarted, loaded.Checkout.Status)

	now = now.Add(2 * time.Hour)
	_, err = store.Load(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func newRouter(store Store, handler gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(Middleware(store, CookieOptions{TTL: time.Hour}))
	r.GET("/", handler)
	return r
}

func TestMiddleware_IssuesCookieAndReusesSession(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	var seen []string
	r := newRouter(store, func(c *gin.Context) {
		seen = append(seen, From(c).ID)
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, seen, 2)
	assert.Equal(t, seen[0], seen[1])
}

func TestMiddleware_UnknownCookieGetsFreshSession(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	var id string
	r := newRouter(store, func(c *gin.Context) {
		id = From(c).ID
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "forged"})
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.NotEqual(t, "forged", id)
	assert.NotEmpty(t, id)
}

func TestMiddleware_PersistsChanges(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	var id string
	r := newRouter(store, func(c *gin.Context) {
		sess := From(c)
		id = sess.ID
		sess.Checkout = checkout.New("chk-2", false)
		sess.MarkDirty()
		c.Status(http.StatusNoContent)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	loaded, err := store.Load(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "chk-2", loaded.Checkout.CheckoutID)
}
