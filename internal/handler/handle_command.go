package handler

import (
	"context"
	"fmt"
	"strings"

	"littlebot/internal/command"
	"littlebot/internal/logger"
	"littlebot/internal/model"

	"go.uber.org/zap"
)

// handleVersionControl runs a git command found in the text
func (h *SlackHandler) handleVersionControl(ctx context.Context, env model.Envelope) error {
	return h.runAndReply(ctx, env, model.KindGit, command.ParseVersionControl(env.Text))
}

// handleContainer runs a docker command found in the text
func (h *SlackHandler) handleContainer(ctx context.Context, env model.Envelope) error {
	return h.runAndReply(ctx, env, model.KindDocker, command.ParseContainer(env.Text))
}

// runAndReply replies with the usage message for an unrecognized command, or
// runs it and replies with its combined output. A failed run is reported in
// the reply rather than returned.
func (h *SlackHandler) runAndReply(ctx context.Context, env model.Envelope, kind model.MessageKind, m command.Match) error {
	if !m.Recognized {
		return h.reply(ctx, env, kind, m.Usage)
	}

	output, err := h.runner.Run(ctx, m.Program, m.Args...)
	text := strings.TrimRight(output, "\n")
	if err != nil {
		logger.GetLogger().Warn("command failed",
			zap.String("team_id", env.TeamID),
			zap.String("user_id", env.Sender),
			zap.String("command", m.Command()),
			zap.Error(err))
		if text != "" {
			text += "\n"
		}
		text += fmt.Sprintf("Sorry, `%s` failed: %v", m.Command(), err)
	}
	if text == "" {
		text = fmt.Sprintf("`%s` finished with no output.", m.Command())
	}
	return h.reply(ctx, env, kind, text)
}
