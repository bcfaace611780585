package api

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/habedi/totempark/db"
	"github.com/habedi/totempark/pkg/apperr"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDHeader = "X-Request-ID"
	apiKeyHeader    = "X-API-Key"

	requestIDKey = "request_id"
	sellerKey    = "seller"
)

// requestLogger tags each request with an id and writes one log event when
// it completes.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)

		c.Next()

		status := c.Writer.Status()
		var event *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			event = log.Error()
		case status >= http.StatusBadRequest:
			event = log.Warn()
		default:
			event = log.Info()
		}
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		event.Str("request_id", id).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

// recovery turns a handler panic into a 500 so one bad request cannot take
// the process down.
func recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		log.Error().
			Str("request_id", c.GetString(requestIDKey)).
			Interface("panic", recovered).
			Msg("Recovered from panic in handler")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
	})
}

// requireAPIKey checks the shared secret presented by totems.
func (s *Server) requireAPIKey(c *gin.Context) {
	key := c.GetHeader(apiKeyHeader)
	if key == "" || s.opts.TotemAPIKey == "" ||
		subtle.ConstantTimeCompare([]byte(key), []byte(s.opts.TotemAPIKey)) != 1 {
		abortWithError(c, apperr.New(apperr.Unauthorized, "Invalid or missing API Key", nil))
		return
	}
	c.Next()
}

// requireSeller resolves the bearer token to the current seller.
func (s *Server) requireSeller(c *gin.Context) {
	header := c.GetHeader("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		c.Header("WWW-Authenticate", "Bearer")
		abortWithError(c, apperr.New(apperr.Unauthorized, "Not authenticated", nil))
		return
	}
	seller, err := s.Accounts.Current(c.Request.Context(), strings.TrimSpace(token))
	if err != nil {
		if apperr.Is(err, apperr.Unauthorized) {
			c.Header("WWW-Authenticate", "Bearer")
		}
		abortWithError(c, err)
		return
	}
	c.Set(sellerKey, seller)
	c.Next()
}

func requireAdmin(c *gin.Context) {
	if !currentSeller(c).IsAdmin {
		abortWithError(c, apperr.New(apperr.Forbidden, "Admin privileges required", nil))
		return
	}
	c.Next()
}

func currentSeller(c *gin.Context) *db.Seller {
	seller, _ := c.MustGet(sellerKey).(*db.Seller)
	return seller
}

// abortWithError writes err as {"detail": ...} with its mapped status.
func abortWithError(c *gin.Context, err error) {
	status := apperr.StatusOf(err)
	detail := http.StatusText(status)
	var e *apperr.Error
	if errors.As(err, &e) && e.Message != "" {
		detail = e.Message
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", c.GetString(requestIDKey)).
			Int("status", status).
			Msg("Request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}
