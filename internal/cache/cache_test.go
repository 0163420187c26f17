package cache

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subrisk/internal/monitoring"
)

func TestCacheSetGet(t *testing.T) {
	c := NewCache(time.Minute)

	key := c.generateKey(`{"values":{"NLR":8}}`)
	c.Set(key, []byte(`{"label":"High risk"}`))

	data, found := c.Get(key)
	require.True(t, found)
	assert.Equal(t, `{"label":"High risk"}`, string(data))
	assert.Equal(t, 1, c.Size())
}

func TestCacheMiss(t *testing.T) {
	c := NewCache(time.Minute)

	_, found := c.Get("nonexistent")
	assert.False(t, found)
}

func TestCacheExpiration(t *testing.T) {
	c := NewCache(10 * time.Millisecond)

	key := c.generateKey("payload")
	c.Set(key, []byte("data"))

	_, found := c.Get(key)
	require.True(t, found)

	time.Sleep(20 * time.Millisecond)

	_, found = c.Get(key)
	assert.False(t, found, "expired item should not be served")
}

func TestCacheKeyIsStablePerBody(t *testing.T) {
	c := NewCache(time.Minute)

	a := c.generateKey(`{"values":{"NLR":8}}`)
	b := c.generateKey(`{"values":{"NLR":8}}`)
	other := c.generateKey(`{"values":{"NLR":2}}`)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, other)
}

func TestCacheClearAndDelete(t *testing.T) {
	c := NewCache(time.Minute)

	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	require.Equal(t, 2, c.Size())

	c.Delete("a")
	assert.Equal(t, 1, c.Size())

	c.Clear()
	assert.Equal(t, 0, c.Size())
}

func TestCacheStats(t *testing.T) {
	c := NewCache(30 * time.Second)

	c.Set("a", []byte("1"))

	stats := c.Stats()
	assert.Equal(t, 1, stats["total_items"])
	assert.Equal(t, 0, stats["expired_items"])
	assert.Equal(t, 1, stats["active_items"])
	assert.Equal(t, 30.0, stats["ttl_seconds"])
}

func newCachedRouter(c *Cache, metrics *monitoring.Metrics, hits *int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(c.Middleware(metrics))
	router.POST("/api/assess", func(ctx *gin.Context) {
		*hits++
		ctx.JSON(http.StatusOK, gin.H{"label": "Low risk"})
	})
	return router
}

func TestMiddlewareServesRepeatSubmissionsFromCache(t *testing.T) {
	c := NewCache(time.Minute)
	metrics := monitoring.NewMetrics()
	handlerHits := 0
	router := newCachedRouter(c, metrics, &handlerHits)

	body := `{"values":{"NLR":2}}`
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/assess", bytes.NewBufferString(body))
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"label":"Low risk"}`, w.Body.String())
	}

	assert.Equal(t, 1, handlerHits, "only the first submission should reach the handler")

	stats := metrics.GetStats()
	assert.Equal(t, int64(2), stats["cache_hits"])
	assert.Equal(t, int64(1), stats["cache_misses"])
}

func TestMiddlewareIgnoresOtherRoutes(t *testing.T) {
	c := NewCache(time.Minute)
	metrics := monitoring.NewMetrics()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(c.Middleware(metrics))
	calls := 0
	router.GET("/api/features", func(ctx *gin.Context) {
		calls++
		ctx.JSON(http.StatusOK, gin.H{})
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/features", nil)
		router.ServeHTTP(w, req)
	}

	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, c.Size())
}

func TestMiddlewareSkipsErrorResponses(t *testing.T) {
	c := NewCache(time.Minute)
	metrics := monitoring.NewMetrics()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(c.Middleware(metrics))
	router.POST("/api/assess", func(ctx *gin.Context) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "bad"})
	})

	body := `{"values":{"NLR":"oops"}}`
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/assess", bytes.NewBufferString(body))
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}

	assert.Equal(t, 0, c.Size(), "error responses are never cached")
}
