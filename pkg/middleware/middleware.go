// Package middleware holds the gin middleware chain and response helpers of
// the roadmap API.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/roadmap-service/pkg/logging"
)

// probePaths are served without request logs, traces or HTTP metrics
var probePaths = []string{"/health", "/ready", "/metrics"}

// Config holds middleware configuration
type Config struct {
	Logger         *logging.Logger
	ServiceName    string
	EnableCORS     bool
	ElevatedRoles  []string
	TrustedProxies []string
}

// DefaultConfig elevates admin and manager actors and enables CORS
func DefaultConfig(serviceName string, logger *logging.Logger) *Config {
	return &Config{
		Logger:        logger,
		ServiceName:   serviceName,
		EnableCORS:    true,
		ElevatedRoles: []string{"admin", "manager"},
	}
}

// Setup installs the standard chain: recovery, request ids, actor, request
// log, query sanitizing, CORS, content type and error rendering.
func Setup(router *gin.Engine, cfg *Config) {
	InitValidator()

	if len(cfg.TrustedProxies) > 0 {
		_ = router.SetTrustedProxies(cfg.TrustedProxies)
	}

	router.Use(
		Recovery(cfg.Logger),
		RequestIDs(),
		Actor(cfg.ElevatedRoles),
		RequestLogger(cfg.Logger, probePaths...),
		InputSanitizer(),
	)
	if cfg.EnableCORS {
		router.Use(CORS())
	}
	router.Use(ContentType(), ErrorHandler(cfg.Logger))
}

// CORS allows any origin to call the API with the actor and id headers
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, "+
			HeaderRequestID+", "+HeaderCorrelationID+", "+HeaderActorID+", "+HeaderActorRole)
		h.Set("Access-Control-Expose-Headers", HeaderRequestID+", "+HeaderCorrelationID)
		h.Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// HealthCheck answers the liveness probe
func HealthCheck(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": serviceName})
	}
}

// ReadinessCheck answers 503 while check fails
func ReadinessCheck(serviceName string, check func() error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := check(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "service": serviceName, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "service": serviceName})
	}
}

func NoRoute() gin.HandlerFunc {
	return routeError(http.StatusNotFound, "ROUTE_NOT_FOUND", "The requested resource was not found")
}

func NoMethod() gin.HandlerFunc {
	return routeError(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "The request method is not supported for this resource")
}

func routeError(status int, code, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(status, newErrorBody(c, code, message, nil))
	}
}
