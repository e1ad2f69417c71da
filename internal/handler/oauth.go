package handler

import (
	"net/http"

	"littlebot/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HandleInstall renders the "Add to Slack" page
func (h *SlackHandler) HandleInstall(c *gin.Context) {
	c.HTML(http.StatusOK, "install.html", gin.H{
		"BotName":     h.botName,
		"ClientID":    h.clientID,
		"Scope":       h.scope,
		"RedirectURI": h.redirectURI,
	})
}

// HandleThanks exchanges the code Slack redirects with for the team's bot
// token and renders a confirmation page
func (h *SlackHandler) HandleThanks(c *gin.Context) {
	page := gin.H{"BotName": h.botName}

	code := c.Query("code")
	if code == "" {
		code = c.PostForm("code")
	}
	if code == "" {
		page["Error"] = "Slack did not send an authorization code."
		c.HTML(http.StatusBadRequest, "thanks.html", page)
		return
	}
	if h.installer == nil {
		page["Error"] = "Installation is not enabled for this bot."
		c.HTML(http.StatusServiceUnavailable, "thanks.html", page)
		return
	}

	teamID, err := h.installer.CompleteInstall(c.Request.Context(), code, h.redirectURI)
	if err != nil {
		logger.GetLogger().Error("failed to complete install", zap.Error(err))
		page["Error"] = "Slack did not accept the installation. Please try again."
		c.HTML(http.StatusBadGateway, "thanks.html", page)
		return
	}

	page["TeamID"] = teamID
	c.HTML(http.StatusOK, "thanks.html", page)
}
