package handler

import (
	"bytes"
	"io"
	"net/http"

	"littlebot/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// HandleSlackRetry is a middleware that handles Slack retry requests
func HandleSlackRetry() gin.HandlerFunc {
	return func(c *gin.Context) {
		retryNum := c.GetHeader("X-Slack-Retry-Num")
		retryReason := c.GetHeader("X-Slack-Retry-Reason")

		if retryNum != "" {
			logger.GetLogger().Info("slack retry request",
				zap.String("retry_num", retryNum),
				zap.String("retry_reason", retryReason))
			c.Header("X-Slack-No-Retry", "1")
			c.String(http.StatusOK, "ok (retry skipped)")
			c.Abort()
			return
		}
		c.Next()
	}
}

// VerifySlackSignature rejects requests whose X-Slack-Signature does not
// match the signing secret. An empty secret disables the check.
func VerifySlackSignature(signingSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if signingSecret == "" {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			logger.GetLogger().Error("failed to read request body", zap.Error(err))
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		// reattach request body for the handler
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

		sv, err := slack.NewSecretsVerifier(c.Request.Header, signingSecret)
		if err == nil {
			if _, err = sv.Write(body); err == nil {
				err = sv.Ensure()
			}
		}
		if err != nil {
			logger.GetLogger().Warn("invalid slack request signature", zap.Error(err))
			c.Header("X-Slack-No-Retry", "1")
			c.String(http.StatusUnauthorized, "invalid request signature")
			c.Abort()
			return
		}
		c.Next()
	}
}
