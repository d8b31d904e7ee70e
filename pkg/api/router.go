// Package api exposes the scan pipeline and its providers over HTTP.
package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"menu-scan/pkg/logging"
)

var log = logging.For("api")

// RequestIDHeader carries the request ID in and out of the service.
const RequestIDHeader = "X-Request-ID"

// NewRouter builds the gin engine with every route registered.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLogger())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", RequestIDHeader},
		ExposeHeaders:   []string{RequestIDHeader},
		MaxAge:          12 * time.Hour,
	}))
	r.MaxMultipartMemory = h.maxUpload

	r.GET("/health", h.health)

	v := r.Group("/api")
	v.POST("/vision/detect", h.detect)
	v.POST("/parse", h.parse)
	v.POST("/translate", h.translate)
	v.POST("/translate/items", h.translateItems)
	v.POST("/scans", h.createScan)
	v.GET("/scans", h.listScans)
	v.GET("/scans/:id", h.getScan)

	return r
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logging.Ctx(c.Request.Context(), log).WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
		if c.Writer.Status() >= 500 {
			entry.Warn("Request failed")
			return
		}
		entry.Info("Request handled")
	}
}
