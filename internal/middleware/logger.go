package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"authserver/internal/domain/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const requestIDHeader = "X-Request-ID"

// RequestID propagates the caller's X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// ErrorLogger logs every request and recovers from panics. Panic details go
// to the log only; the client receives a generic 500.
func ErrorLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if recovered := recover(); recovered != nil {
				requestEvent(log.Error(), c, start).
					Str("type", "panic").
					Err(fmt.Errorf("%v", recovered)).
					Bytes("stack", debug.Stack()).
					Msg("request panic")

				auth.WriteError(c, auth.ErrInternal)
				c.Abort()
				return
			}

			status := c.Writer.Status()
			ev := log.Info()
			switch {
			case status >= http.StatusInternalServerError:
				ev = log.Error()
			case status >= http.StatusBadRequest:
				ev = log.Warn()
			}
			ev = requestEvent(ev, c, start)
			for _, err := range c.Errors {
				ev = ev.AnErr("gin_error", err.Err)
			}
			ev.Msg("request")
		}()

		c.Next()
	}
}

// requestEvent never includes the Authorization header or cookies.
func requestEvent(ev *zerolog.Event, c *gin.Context, start time.Time) *zerolog.Event {
	return ev.
		Int("status", c.Writer.Status()).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Str("client_ip", c.ClientIP()).
		Int64("user_id", c.GetInt64("user_id")).
		Str("request_id", c.GetString("request_id")).
		Dur("latency", time.Since(start))
}
