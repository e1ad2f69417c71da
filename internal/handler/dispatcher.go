package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"littlebot/internal/logger"
	"littlebot/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/slack-go/slack/slackevents"
	"go.uber.org/zap"
)

// ErrSecretMismatch means the payload's verification token is not ours
var ErrSecretMismatch = errors.New("invalid slack verification token")

const (
	noEventBody     = "[NO EVENT IN SLACK REQUEST] These are not the droids you're looking for."
	invalidTokenMsg = "Invalid Slack verification token"
	failedEventBody = "failed to handle event"
)

// Response is what the events endpoint answers. NoRetry asks Slack not to
// redeliver the event.
type Response struct {
	Status      int
	Body        string
	ContentType string
	NoRetry     bool
}

func textResponse(status int, body string, noRetry bool) Response {
	return Response{Status: status, Body: body, ContentType: "text/plain; charset=utf-8", NoRetry: noRetry}
}

// Dispatch validates a raw Events API payload, classifies its event and runs
// the matching handler
func (h *SlackHandler) Dispatch(ctx context.Context, body []byte) Response {
	log := logger.GetLogger()

	var payload model.EventPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error("failed to parse slack payload", zap.Error(err))
		return textResponse(http.StatusBadRequest, "failed to parse slack payload", true)
	}

	// events posted by an app are acknowledged without processing
	if payload.Event != nil && payload.BotID != "" {
		return Response{Status: http.StatusOK, ContentType: "application/json"}
	}

	if payload.Challenge != "" || payload.Type == slackevents.URLVerification {
		return textResponse(http.StatusOK, payload.Challenge, false)
	}

	if subtle.ConstantTimeCompare([]byte(payload.Token), []byte(h.verificationToken)) != 1 {
		log.Warn("rejecting slack payload",
			zap.String("team_id", payload.TeamID),
			zap.Error(ErrSecretMismatch))
		return textResponse(http.StatusForbidden, invalidTokenMsg, true)
	}

	if payload.Event == nil {
		return textResponse(http.StatusNotFound, noEventBody, true)
	}

	return h.handleEvent(ctx, payload.Envelope())
}

func (h *SlackHandler) handleEvent(ctx context.Context, env model.Envelope) Response {
	log := logger.GetLogger().With(
		zap.String("team_id", env.TeamID),
		zap.String("event_type", string(env.Type)),
		zap.String("sender", env.Sender))

	class, err := Classify(env, h.botIdentity(ctx, env.TeamID))
	if err != nil {
		log.Error("failed to classify event", zap.String("envelope", printJSON(env)), zap.Error(err))
		if err := h.sendHelp(ctx, env, false, false); err != nil {
			log.Error("failed to send help message", zap.Error(err))
			return textResponse(http.StatusOK, failedEventBody, true)
		}
		return textResponse(http.StatusOK, "Help message sent", true)
	}
	log = log.With(zap.String("intent", string(class.Intent)))
	log.Info("dispatching event")

	var (
		body    string
		noRetry bool
	)
	switch class.Intent {
	case IgnoreSelfEcho:
		return textResponse(http.StatusOK, "", true)
	case Unsupported, NoHandler:
		err = h.sendHelp(ctx, env, false, false)
		body, noRetry = "Help message sent", true
	case Echo:
		err = h.handleEcho(ctx, env)
		body = "Echo Message Sent"
	case VersionControlCommand:
		err = h.handleVersionControl(ctx, env)
		body = "Status Message Sent"
	case ContainerCommand:
		err = h.handleContainer(ctx, env)
		body = "Status Message Sent"
	case CiStatusQuery:
		err = h.handleCircleCI(ctx, env)
		body = "Status Message Sent"
	case ShareUpdate:
		err = h.handleSlotComplete(ctx, env, model.SlotShare)
		body = "Welcome message updated with shared message"
	case PinUpdate:
		err = h.handleSlotComplete(ctx, env, model.SlotPin)
		body = "Welcome message updated with pin"
	case OnboardingOrHelp:
		err = h.sendHelp(ctx, env, class.Greeting, true)
		body = "Onboarding Message Sent"
	}

	if err != nil {
		log.Error("failed to handle event", zap.Error(err))
		return textResponse(http.StatusOK, failedEventBody, true)
	}
	return textResponse(http.StatusOK, body, noRetry)
}

// HandleEvents is the gin handler for the Events API endpoint
func (h *SlackHandler) HandleEvents(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil || len(body) == 0 {
		logger.GetLogger().Error("empty request body", zap.Error(err))
		c.Header("X-Slack-No-Retry", "1")
		c.String(http.StatusBadRequest, "empty request body")
		return
	}

	resp := h.Dispatch(c.Request.Context(), body)
	if resp.NoRetry {
		c.Header("X-Slack-No-Retry", "1")
	}
	c.Data(resp.Status, resp.ContentType, []byte(resp.Body))
}
