package handler

import (
	"html/template"
	"net/http"

	"littlebot/internal/logger"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the HTTP surface of the bot
func NewRouter(h *SlackHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logger.GinLogMiddleware())
	r.SetHTMLTemplate(template.Must(template.ParseFS(templateFS, "templates/*.html")))

	r.POST("/listening", HandleSlackRetry(), VerifySlackSignature(h.signingSecret), h.HandleEvents)
	r.GET("/install", h.HandleInstall)
	r.GET("/thanks", h.HandleThanks)
	r.POST("/thanks", h.HandleThanks)
	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}
