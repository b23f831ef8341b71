package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/repository/redis"
)

const (
	// IdempotencyHeader is the client-chosen key of a retryable request
	IdempotencyHeader = "Idempotency-Key"
	// ReplayedHeader is set on responses served from the idempotency store
	ReplayedHeader = "Idempotent-Replayed"

	idempotencyKeyKey = "idempotency_key"
	maxKeyLength      = 255
)

// IdempotencyStore is implemented by redis.IdempotencyStore
type IdempotencyStore interface {
	Reserve(ctx context.Context, key string) (*redis.Response, error)
	Complete(ctx context.Context, key string, resp redis.Response) error
	Release(ctx context.Context, key string) error
}

// bodyRecorder keeps a copy of everything written to the client
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

// IdempotencyMiddleware replays the stored response of a request that
// already succeeded with the same Idempotency-Key. Keys are scoped to the
// user. Only 2xx responses are stored; any other outcome frees the key so
// the client can retry. Requests without a key pass straight through, and
// so does everything when the store is unreachable.
func IdempotencyMiddleware(store IdempotencyStore, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(IdempotencyHeader))
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxKeyLength {
			c.JSON(http.StatusBadRequest, gin.H{"error": "idempotency key is too long"})
			c.Abort()
			return
		}

		scoped := key
		if userID, ok := GetUserID(c); ok {
			scoped = userID.String() + ":" + key
		}

		ctx := c.Request.Context()
		stored, err := store.Reserve(ctx, scoped)
		switch {
		case stderrors.Is(err, redis.ErrInFlight):
			c.JSON(http.StatusConflict, gin.H{"error": "a request with this idempotency key is still in progress"})
			c.Abort()
			return
		case err != nil:
			logger.Warn("Idempotency store unavailable, processing request without it", zap.Error(err))
			c.Next()
			return
		case stored != nil:
			c.Header(ReplayedHeader, "true")
			c.Data(stored.Status, "application/json; charset=utf-8", stored.Body)
			c.Abort()
			return
		}

		c.Set(idempotencyKeyKey, key)
		recorder := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = recorder

		// the request context may already be canceled by the client
		bg := context.WithoutCancel(ctx)
		completed := false
		defer func() {
			if completed {
				return
			}
			if err := store.Release(bg, scoped); err != nil {
				logger.Warn("Failed to release idempotency key", zap.String("key", key), zap.Error(err))
			}
		}()

		c.Next()

		status := recorder.Status()
		if status < 200 || status >= 300 || !json.Valid(recorder.body.Bytes()) {
			return
		}
		resp := redis.Response{Status: status, Body: json.RawMessage(recorder.body.Bytes())}
		if err := store.Complete(bg, scoped, resp); err != nil {
			logger.Warn("Failed to store idempotent response", zap.String("key", key), zap.Error(err))
			return
		}
		completed = true
	}
}

// GetIdempotencyKey returns the key of the request being processed, if any
func GetIdempotencyKey(c *gin.Context) string {
	return c.GetString(idempotencyKeyKey)
}
