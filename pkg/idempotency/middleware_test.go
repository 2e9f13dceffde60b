package idempotency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/roadmap-service/pkg/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(store Store, status int, calls *atomic.Int32) *gin.Engine {
	router := gin.New()
	router.Use(Middleware(Config{Store: store, Logger: logging.NewNop()}))
	router.POST("/stages/:stageId/transitions", func(c *gin.Context) {
		n := calls.Add(1)
		c.JSON(status, gin.H{"call": n})
	})
	return router
}

func post(router *gin.Engine, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/stages/RM-1-S0/transitions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(Header, key)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_ReplaysCompletedRequest(t *testing.T) {
	var calls atomic.Int32
	router := newRouter(NewMemoryStore(), http.StatusOK, &calls)

	first := post(router, "k-1", `{"action":"start"}`)
	require.Equal(t, http.StatusOK, first.Code)

	again := post(router, "k-1", `{"action":"start"}`)
	assert.Equal(t, http.StatusOK, again.Code)
	assert.JSONEq(t, first.Body.String(), again.Body.String())
	assert.Equal(t, "true", again.Header().Get(ReplayedHeader))
	assert.Equal(t, int32(1), calls.Load())

	other := post(router, "k-2", `{"action":"start"}`)
	assert.Equal(t, http.StatusOK, other.Code)
	assert.Equal(t, int32(2), calls.Load())
}

func TestMiddleware_RejectsReusedKeyWithOtherBody(t *testing.T) {
	var calls atomic.Int32
	router := newRouter(NewMemoryStore(), http.StatusOK, &calls)

	require.Equal(t, http.StatusOK, post(router, "k-1", `{"action":"start"}`).Code)
	rec := post(router, "k-1", `{"action":"approve"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "IDEMPOTENCY_KEY_REUSED")
	assert.Equal(t, int32(1), calls.Load())
}

func TestMiddleware_ServerErrorsAreNotStored(t *testing.T) {
	var calls atomic.Int32
	router := newRouter(NewMemoryStore(), http.StatusServiceUnavailable, &calls)

	post(router, "k-1", `{}`)
	post(router, "k-1", `{}`)
	assert.Equal(t, int32(2), calls.Load())
}

func TestMiddleware_WithoutKeyPassesThrough(t *testing.T) {
	var calls atomic.Int32
	router := newRouter(NewMemoryStore(), http.StatusOK, &calls)

	post(router, "", `{}`)
	post(router, "", `{}`)
	assert.Equal(t, int32(2), calls.Load())

	rec := post(router, strings.Repeat("x", maxKeyLength+1), `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMemoryStore_InFlightAndStaleLocks(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()

	rec := &Record{ID: "r1", Fingerprint: "f", LockedAt: now, ExpiresAt: now.Add(time.Hour)}
	_, acquired, err := store.Acquire(ctx, rec, now.Add(-time.Minute))
	require.NoError(t, err)
	require.True(t, acquired)

	retry := &Record{ID: "r1", Fingerprint: "f", LockedAt: now, ExpiresAt: now.Add(time.Hour)}
	stored, acquired, err := store.Acquire(ctx, retry, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.False(t, acquired)
	assert.False(t, stored.Completed())

	// lock older than the stale bound is taken over
	_, acquired, err = store.Acquire(ctx, retry, now.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, acquired)

	require.NoError(t, store.Complete(ctx, "r1", http.StatusCreated, "application/json", []byte(`{}`)))
	require.NoError(t, store.Release(ctx, "r1"))
	stored, acquired, err = store.Acquire(ctx, retry, now.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, acquired)
	assert.Equal(t, http.StatusCreated, stored.Status)
}
