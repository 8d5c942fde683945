package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func get(r http.Handler, path, ip string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = ip + ":1234"
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(rate.Limit(1), 2))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, get(r, "/", "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, get(r, "/", "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, "/", "10.0.0.1").Code)

	// Buckets are per client.
	assert.Equal(t, http.StatusOK, get(r, "/", "10.0.0.2").Code)
}

func TestRateLimiter_Disabled(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(0, 0))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 20; i++ {
		assert.Equal(t, http.StatusOK, get(r, "/", "10.0.0.1").Code)
	}
}

func TestIPRateLimiter_ReusesBucket(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(5), 1)
	assert.Same(t, l.GetLimiter("1.1.1.1"), l.GetLimiter("1.1.1.1"))
	assert.NotSame(t, l.GetLimiter("1.1.1.1"), l.GetLimiter("2.2.2.2"))
}

func TestCache(t *testing.T) {
	calls := 0
	r := gin.New()
	r.GET("/week", Cache(cache.New(time.Minute, time.Minute), time.Minute), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"date": c.Query("date"), "calls": calls})
	})

	first := get(r, "/week?date=2024-03-06", "10.0.0.1")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := get(r, "/week?date=2024-03-06", "10.0.0.1")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "application/json; charset=utf-8", second.Header().Get("Content-Type"))
	assert.Equal(t, 1, calls)

	other := get(r, "/week?date=2024-03-13", "10.0.0.1")
	assert.Equal(t, "MISS", other.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)
}

func TestCache_SkipsErrors(t *testing.T) {
	calls := 0
	r := gin.New()
	r.GET("/week", Cache(cache.New(time.Minute, time.Minute), time.Minute), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid date"})
	})

	get(r, "/week?date=bad", "10.0.0.1")
	w := get(r, "/week?date=bad", "10.0.0.1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 2, calls)
}

func TestCache_HonorsNoStore(t *testing.T) {
	calls := 0
	r := gin.New()
	r.GET("/week", Cache(cache.New(time.Minute, time.Minute), time.Minute), func(c *gin.Context) {
		calls++
		if calls == 1 {
			c.Header("Cache-Control", "private, no-store")
		}
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})

	get(r, "/week?date=2024-03-06", "10.0.0.1")
	second := get(r, "/week?date=2024-03-06", "10.0.0.1")
	assert.Equal(t, "MISS", second.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"calls":2}`, second.Body.String())

	third := get(r, "/week?date=2024-03-06", "10.0.0.1")
	assert.Equal(t, "HIT", third.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)
}
