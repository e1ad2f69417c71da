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

// reply posts text to the sender's direct message channel and records it as
// the session's current message
func (h *SlackHandler) reply(ctx context.Context, env model.Envelope, kind model.MessageKind, text string) error {
	if env.Sender == "" {
		return fmt.Errorf("%s event has no sender to reply to", env.Type)
	}
	text = truncateMessage(text)

	return h.sessions.WithSession(ctx, env.TeamID, env.Sender, func(rec *model.SessionRecord) error {
		ts, err := h.messenger.PostMessage(ctx, rec.TeamID, rec.Channel, text, nil)
		if err != nil {
			return err
		}
		rec.Text = text
		rec.Kind = kind
		rec.Timestamp = ts
		return nil
	})
}

// sendHelp posts the help text. With onboarding set the message also carries
// fresh onboarding prompts, which later pin and share events complete.
func (h *SlackHandler) sendHelp(ctx context.Context, env model.Envelope, greeting, onboarding bool) error {
	if env.Sender == "" {
		return fmt.Errorf("%s event has no sender to reply to", env.Type)
	}
	text := h.helpText(greeting)

	return h.sessions.WithSession(ctx, env.TeamID, env.Sender, func(rec *model.SessionRecord) error {
		var attachments []model.Attachment
		if onboarding {
			rec.ResetOnboarding(h.welcome.Attachments)
			attachments = rec.Attachments()
		}
		ts, err := h.messenger.PostMessage(ctx, rec.TeamID, rec.Channel, text, attachments)
		if err != nil {
			return err
		}
		rec.Text = text
		rec.Kind = model.KindHelp
		rec.Timestamp = ts
		return nil
	})
}

// publishOnboarding re-renders the session's message after a slot changed.
// A session that never had a message gets a new one.
func (h *SlackHandler) publishOnboarding(ctx context.Context) func(rec *model.SessionRecord) error {
	return func(rec *model.SessionRecord) error {
		attachments := rec.Attachments()
		if rec.Timestamp == "" {
			logger.GetLogger().Info("no onboarding message to update, posting a new one",
				zap.String("team_id", rec.TeamID), zap.String("user_id", rec.UserID))
			ts, err := h.messenger.PostMessage(ctx, rec.TeamID, rec.Channel, rec.Text, attachments)
			if err != nil {
				return err
			}
			rec.Timestamp = ts
			return nil
		}

		ts, err := h.messenger.UpdateMessage(ctx, rec.TeamID, rec.Channel, rec.Timestamp, rec.Text, attachments)
		if err != nil {
			return err
		}
		rec.Timestamp = ts
		return nil
	}
}

func (h *SlackHandler) helpText(greeting bool) string {
	handled := []string{
		"help (this message)",
		fmt.Sprintf("docker [%s]", strings.Join(command.DockerActions, "|")),
		fmt.Sprintf("git %s", strings.Join(command.GitActions, "|")),
		"circleci <repo_name> 'last build'",
	}

	var sb strings.Builder
	if greeting {
		fmt.Fprintf(&sb, "Hello. I'm the %s bot.\n", h.botName)
	}
	sb.WriteString("I like to help. Here's what you can say to me\n")
	sb.WriteString(strings.Join(handled, "\n"))
	return sb.String()
}
