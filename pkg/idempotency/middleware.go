package idempotency

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/roadmap-service/pkg/errors"
	"github.com/wms-platform/roadmap-service/pkg/logging"
	"github.com/wms-platform/roadmap-service/pkg/metrics"
	"github.com/wms-platform/roadmap-service/pkg/middleware"
)

type Config struct {
	Store   Store
	Logger  *logging.Logger
	Metrics *metrics.Metrics
	// Retention is how long an answer can be replayed, 24h when zero
	Retention time.Duration
	// LockTimeout after which an unfinished request may be taken over, 1m when zero
	LockTimeout time.Duration
	// MaxBodyBytes bounds stored answers; larger ones are not replayable
	MaxBodyBytes int

	now func() time.Time
}

// bodyRecorder copies what the handler writes
type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Middleware makes POST, PUT and PATCH requests that carry an
// Idempotency-Key replayable. A retry with the same key and body gets the
// first answer again; the same key with another body is rejected with 422;
// a retry while the first request still runs gets 409. Server errors are
// not stored so the client can retry them.
func Middleware(cfg Config) gin.HandlerFunc {
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = time.Minute
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	logger := cfg.Logger.WithComponent("idempotency")

	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(Header))
		if key == "" || !writeMethod(c.Request.Method) {
			c.Next()
			return
		}
		if err := validateKey(key); err != nil {
			middleware.AbortWithAppError(c, errors.ErrBadRequest(err.Error()))
			return
		}

		var body []byte
		if c.Request.Body != nil {
			var err error
			if body, err = io.ReadAll(c.Request.Body); err != nil {
				middleware.AbortWithAppError(c, errors.ErrBadRequest("unreadable request body"))
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		ctx := c.Request.Context()
		now := cfg.now().UTC()
		actorID := middleware.GetActor(c).ID
		rec := &Record{
			ID:          recordID(c.Request.Method, c.Request.URL.Path, actorID, key),
			Key:         key,
			Method:      c.Request.Method,
			Path:        c.Request.URL.Path,
			ActorID:     actorID,
			Fingerprint: digest(body),
			LockedAt:    now,
			ExpiresAt:   now.Add(cfg.Retention),
		}

		stored, acquired, err := cfg.Store.Acquire(ctx, rec, now.Add(-cfg.LockTimeout))
		if err != nil {
			cfg.Metrics.RecordIdempotentRequest("error")
			logger.WithError(err).ErrorContext(ctx, "Failed to acquire idempotency record", "path", rec.Path)
			middleware.AbortWithAppError(c, errors.ErrServiceUnavailable("idempotency store"))
			return
		}
		if !acquired {
			answerStored(c, cfg.Metrics, rec, stored)
			return
		}
		cfg.Metrics.RecordIdempotentRequest("miss")

		w := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		// the answer is already sent; a cancelled request must still settle the record
		ctx = context.WithoutCancel(ctx)
		status := w.Status()
		if status >= http.StatusInternalServerError || w.body.Len() > cfg.MaxBodyBytes {
			if err := cfg.Store.Release(ctx, rec.ID); err != nil {
				logger.WithError(err).WarnContext(ctx, "Failed to release idempotency record", "path", rec.Path)
			}
			return
		}
		if err := cfg.Store.Complete(ctx, rec.ID, status, w.Header().Get("Content-Type"), w.body.Bytes()); err != nil {
			logger.WithError(err).WarnContext(ctx, "Failed to store idempotent answer", "path", rec.Path, "status", status)
		}
	}
}

func answerStored(c *gin.Context, m *metrics.Metrics, rec, stored *Record) {
	switch {
	case stored.Fingerprint != rec.Fingerprint:
		m.RecordIdempotentRequest("mismatch")
		middleware.AbortWithAppError(c, errors.NewAppError("IDEMPOTENCY_KEY_REUSED",
			"Idempotency-Key was already used with a different request body", http.StatusUnprocessableEntity))
	case stored.Completed():
		m.RecordIdempotentRequest("replay")
		c.Header(ReplayedHeader, "true")
		c.Data(stored.Status, stored.ContentType, stored.Body)
		c.Abort()
	default:
		m.RecordIdempotentRequest("in_flight")
		middleware.AbortWithAppError(c, errors.ErrConflict("a request with this Idempotency-Key is still being processed"))
	}
}

func writeMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}
