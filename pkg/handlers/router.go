package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version is reported by the root endpoint
const Version = "1.0.0"

// Routes registers every endpoint on r
func (h *Handler) Routes(r *gin.Engine) {
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "IONM Assignment Board API",
			"version": Version,
		})
	})
	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/auth/login", h.Login)

	api := r.Group("/api")
	api.Use(h.AuthMiddleware())
	{
		api.GET("/staff", h.ListStaff)
		api.PATCH("/staff/me", h.UpdateSelf)
		api.GET("/board", h.GetBoard)
	}

	// Case assignment is limited to the admin role
	admin := api.Group("")
	admin.Use(h.AdminMiddleware())
	{
		admin.PATCH("/staff/:id", h.UpdateStaff)
		admin.POST("/board/drop", h.Drop)
		admin.PUT("/board/slots/:label/duty", h.SetDuty)
		admin.POST("/board/reset", h.ResetBoard)
	}

	r.GET("/api/board/ws", QueryTokenMiddleware(), h.AuthMiddleware(), h.AdminMiddleware(), h.BoardSocket)
}

// AccessLogger is gin's request logger with query strings left out, so
// tokens passed to the socket route never reach the access log.
func AccessLogger() gin.HandlerFunc {
	return gin.LoggerWithConfig(gin.LoggerConfig{Formatter: accessLogLine})
}

func accessLogLine(p gin.LogFormatterParams) string {
	path, _, _ := strings.Cut(p.Path, "?")
	return fmt.Sprintf("[GIN] %v | %3d | %13v | %15s | %-7s %#v\n%s",
		p.TimeStamp.Format("2006/01/02 - 15:04:05"),
		p.StatusCode,
		p.Latency,
		p.ClientIP,
		p.Method,
		path,
		p.ErrorMessage,
	)
}
