package auth

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Mode selects how requests are authenticated.
type Mode string

const (
	ModeNone  Mode = "none"
	ModeToken Mode = "token"
)

// Middleware authenticates API requests with a bearer token.
type Middleware struct {
	mode        Mode
	tokenHash   string
	limiter     *RateLimiter
	logger      *zap.Logger
	publicPaths map[string]bool

	// verified holds fingerprints of tokens that already matched tokenHash.
	verified sync.Map
}

// NewMiddleware creates a new authentication middleware. limiter may be nil.
func NewMiddleware(mode Mode, tokenHash string, limiter *RateLimiter, logger *zap.Logger) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middleware{
		mode:      mode,
		tokenHash: tokenHash,
		limiter:   limiter,
		logger:    logger,
		publicPaths: map[string]bool{
			"/health":  true,
			"/ping":    true,
			"/metrics": true,
		},
	}
}

// Handler returns a Gin middleware handler that authenticates requests.
func (m *Middleware) Handler() gin.HandlerFunc {
	if m.mode != ModeToken {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		if m.publicPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if m.limiter != nil {
			if allowed, retryAfter := m.limiter.Allow(ip); !allowed {
				c.Header("Retry-After", retryAfter.String())
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
					"error":       "too many failed authentication attempts",
					"retry_after": retryAfter.String(),
				})
				return
			}
		}

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok || !m.valid(token) {
			if m.limiter != nil {
				if locked, _ := m.limiter.RecordFailure(ip); locked {
					m.logger.Warn("client locked out after failed authentication", zap.String("client_ip", ip))
				}
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
			})
			return
		}

		if m.limiter != nil {
			m.limiter.RecordSuccess(ip)
		}
		c.Next()
	}
}

func (m *Middleware) valid(token string) bool {
	fp := fingerprint(token)
	if _, ok := m.verified.Load(fp); ok {
		return true
	}
	if err := CheckToken(token, m.tokenHash); err != nil {
		return false
	}
	m.verified.Store(fp, struct{}{})
	return true
}

// bearerToken extracts the token from "Bearer <token>".
func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
