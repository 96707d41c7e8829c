package server

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogging emits one structured line per request.
func RequestLogging(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http.access")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.Last().Error()))
			log.Warn("request failed", fields...)
			return
		}
		log.Info("request", fields...)
	}
}

type ingestRateLimitKey struct {
	CompanyID         string `json:"company_id"`
	ExternalCompanyID string `json:"external_company_id"`
}

// EventIngestRateLimit throttles event writes per company key. The body
// is peeked and restored so the handler can still bind it.
func (s *Server) EventIngestRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.ingestLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key, err := readIngestKey(c)
		if err != nil {
			s.log.Warn("rate limit read body failed", zap.Error(err))
			AbortWithError(c, newValidationError("request", "invalid_json", "request body could not be read"))
			return
		}
		if key == "" {
			// Let the handler return the proper validation error.
			c.Next()
			return
		}

		allowed, err := s.ingestLimiter.AllowCompany(ctx, key)
		if err != nil {
			s.log.Warn("rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !allowed {
			s.log.Warn("event ingest rate limit exceeded", zap.String("company_id", key))
			c.Header("Retry-After", "1")
			AbortWithError(c, ErrRateLimited)
			return
		}

		c.Next()
	}
}

func readIngestKey(c *gin.Context) (string, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", err
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
	if len(body) == 0 {
		return "", nil
	}

	var payload ingestRateLimitKey
	if err := json.Unmarshal(body, &payload); err != nil {
		// Batch bodies are arrays; fall back to the first element's key.
		var batch []ingestRateLimitKey
		if err := json.Unmarshal(body, &batch); err != nil || len(batch) == 0 {
			return "", nil
		}
		payload = batch[0]
	}

	if key := strings.TrimSpace(payload.CompanyID); key != "" {
		return key, nil
	}
	return strings.TrimSpace(payload.ExternalCompanyID), nil
}
