package handler

import (
	"context"
	"fmt"

	"littlebot/internal/model"
)

// handleSlotComplete checks off an onboarding slot and updates the message
// that carries it
func (h *SlackHandler) handleSlotComplete(ctx context.Context, env model.Envelope, slot model.SlotName) error {
	if env.Sender == "" {
		return fmt.Errorf("%s event has no user", env.Type)
	}
	return h.sessions.MarkAttachmentComplete(ctx, env.TeamID, env.Sender, slot, h.publishOnboarding(ctx))
}
