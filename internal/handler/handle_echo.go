package handler

import (
	"context"
	"fmt"
	"strings"

	"littlebot/internal/logger"
	"littlebot/internal/model"

	"go.uber.org/zap"
)

const burningLove = " Yes, I have a burning love for bots too."

// handleEcho repeats the text back to the sender by name
func (h *SlackHandler) handleEcho(ctx context.Context, env model.Envelope) error {
	name, err := h.messenger.DisplayName(ctx, env.TeamID, env.Sender)
	if err != nil || name == "" {
		logger.GetLogger().Warn("failed to resolve display name, using user id",
			zap.String("team_id", env.TeamID),
			zap.String("user_id", env.Sender),
			zap.Error(err))
		name = env.Sender
	}

	text := fmt.Sprintf("Hi %s. You said %s.", name, env.Text)
	if strings.Contains(strings.ToLower(env.Text), "hunka hunka") {
		text += burningLove
	}
	return h.reply(ctx, env, model.KindEcho, text)
}
