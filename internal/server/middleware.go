package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"meal-planner/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	subjectKey      = "subject"
)

// requestID propagates the caller's request ID or assigns a new one.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// accessLog logs every request and records it in the metrics store.
func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		requestID := c.GetString(requestIDKey)

		s.logger.Info("request",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"latency", latency,
			"request_id", requestID,
		)

		if s.metrics == nil {
			return
		}
		// The request context may already be cancelled once the response is written.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), time.Second)
		defer cancel()
		err := s.metrics.Record(ctx, metrics.RequestMetric{
			Method:    c.Request.Method,
			Route:     route,
			Status:    status,
			LatencyMS: latency.Milliseconds(),
			RequestID: requestID,
			Timestamp: start,
		})
		if err != nil {
			s.logger.Warn("failed to record request metric", "request_id", requestID, "error", err)
		}
	}
}

// authenticate requires a valid bearer token. When matchUser is set, the token subject
// must equal the :userId path parameter.
func (s *Server) authenticate(matchUser bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.signer == nil {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			abortWithError(c, http.StatusUnauthorized, "missing bearer token")
			return
		}

		subject, err := s.signer.Verify(token)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "invalid token")
			return
		}
		if matchUser && subject != c.Param("userId") {
			abortWithError(c, http.StatusForbidden, "token does not grant access to this user")
			return
		}

		c.Set(subjectKey, subject)
		c.Next()
	}
}

func abortWithError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
