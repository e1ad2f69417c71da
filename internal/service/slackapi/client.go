// Package slackapi is the bot's gateway to the Slack Web API. It picks the
// right bot token per team and turns every failure or malformed response into
// a model.ExternalCallError.
package slackapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"littlebot/internal/logger"
	"littlebot/internal/model"
	"littlebot/internal/storage"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// Client wraps per-team slack clients
type Client struct {
	defaultAPI *slack.Client
	teams      storage.TeamStore
	options    []slack.Option

	username  string
	iconEmoji string

	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu        sync.Mutex
	teamsByID map[string]team
	names     map[string]string
}

// team is a cached installation: the client for its token and the ids the
// bot posts under in that workspace
type team struct {
	api      *slack.Client
	identity model.BotIdentity
}

// Config holds what the client needs besides the team store
type Config struct {
	BotToken     string
	Username     string
	IconEmoji    string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client
	// SlackOptions are passed to every slack.Client, e.g. slack.OptionAPIURL in tests
	SlackOptions []slack.Option
}

// New creates a Client. Teams without a stored token use cfg.BotToken.
func New(cfg Config, teams storage.TeamStore) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	options := append([]slack.Option{slack.OptionHTTPClient(httpClient)}, cfg.SlackOptions...)
	return &Client{
		defaultAPI:   slack.New(cfg.BotToken, options...),
		teams:        teams,
		options:      options,
		username:     cfg.Username,
		iconEmoji:    cfg.IconEmoji,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient:   httpClient,
		teamsByID:    make(map[string]team),
		names:        make(map[string]string),
	}
}

// installed returns the cached installation of teamID, loading it from the
// team store on first use
func (c *Client) installed(ctx context.Context, teamID string) (team, bool) {
	if teamID == "" || c.teams == nil {
		return team{}, false
	}

	c.mu.Lock()
	t, ok := c.teamsByID[teamID]
	c.mu.Unlock()
	if ok {
		return t, true
	}

	stored, err := c.teams.GetTeam(ctx, teamID)
	if err != nil {
		if !errors.Is(err, storage.ErrTeamNotFound) {
			logger.GetLogger().Warn("failed to load team, using default bot token",
				zap.String("team_id", teamID), zap.Error(err))
		}
		return team{}, false
	}

	t = team{
		api:      slack.New(stored.BotToken, c.options...),
		identity: model.BotIdentity{UserID: stored.BotUserID, BotID: stored.BotID},
	}
	c.mu.Lock()
	c.teamsByID[teamID] = t
	c.mu.Unlock()
	return t, true
}

// api returns the client authorised for teamID
func (c *Client) api(ctx context.Context, teamID string) *slack.Client {
	if t, ok := c.installed(ctx, teamID); ok {
		return t.api
	}
	return c.defaultAPI
}

// TeamIdentity returns the bot ids recorded when teamID installed the bot.
// ok is false for teams that did not install through OAuth.
func (c *Client) TeamIdentity(ctx context.Context, teamID string) (model.BotIdentity, bool) {
	t, ok := c.installed(ctx, teamID)
	if !ok || (t.identity.UserID == "" && t.identity.BotID == "") {
		return model.BotIdentity{}, false
	}
	return t.identity, true
}

func toSlackAttachments(attachments []model.Attachment) []slack.Attachment {
	out := make([]slack.Attachment, 0, len(attachments))
	for _, a := range attachments {
		out = append(out, slack.Attachment{
			Text:       a.Text,
			Color:      a.Color,
			MarkdownIn: []string{"text"},
		})
	}
	return out
}

// PostMessage posts text (and attachments, if any) as the bot and returns
// the message timestamp
func (c *Client) PostMessage(ctx context.Context, teamID, channelID, text string, attachments []model.Attachment) (string, error) {
	options := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if c.username != "" {
		options = append(options, slack.MsgOptionUsername(c.username))
	}
	if c.iconEmoji != "" {
		options = append(options, slack.MsgOptionIconEmoji(c.iconEmoji))
	}
	if len(attachments) > 0 {
		options = append(options, slack.MsgOptionAttachments(toSlackAttachments(attachments)...))
	}

	_, timestamp, err := c.api(ctx, teamID).PostMessageContext(ctx, channelID, options...)
	if err != nil {
		return "", model.NewExternalCallError("slack", "chat.postMessage", err)
	}
	if timestamp == "" {
		return "", model.NewExternalCallError("slack", "chat.postMessage", fmt.Errorf("response has no ts"))
	}
	return timestamp, nil
}

// UpdateMessage replaces the text and attachments of an existing message and
// returns its (possibly new) timestamp
func (c *Client) UpdateMessage(ctx context.Context, teamID, channelID, timestamp, text string, attachments []model.Attachment) (string, error) {
	options := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if len(attachments) > 0 {
		options = append(options, slack.MsgOptionAttachments(toSlackAttachments(attachments)...))
	}

	_, newTimestamp, _, err := c.api(ctx, teamID).UpdateMessageContext(ctx, channelID, timestamp, options...)
	if err != nil {
		return "", model.NewExternalCallError("slack", "chat.update", err)
	}
	if newTimestamp == "" {
		newTimestamp = timestamp
	}
	return newTimestamp, nil
}

// OpenDirectMessage opens the DM channel with userID and returns its id
func (c *Client) OpenDirectMessage(ctx context.Context, teamID, userID string) (string, error) {
	channel, _, _, err := c.api(ctx, teamID).OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users: []string{userID},
	})
	if err != nil {
		return "", model.NewExternalCallError("slack", "conversations.open", err)
	}
	if channel == nil || channel.ID == "" {
		return "", model.NewExternalCallError("slack", "conversations.open", fmt.Errorf("response has no channel"))
	}
	logger.GetLogger().Debug("opened direct message",
		zap.String("team_id", teamID), zap.String("user_id", userID), zap.String("channel", channel.ID))
	return channel.ID, nil
}

// DisplayName returns the display name of userID, falling back to the real
// name and then the username. Results are cached per team.
func (c *Client) DisplayName(ctx context.Context, teamID, userID string) (string, error) {
	key := teamID + "/" + userID
	c.mu.Lock()
	name, ok := c.names[key]
	c.mu.Unlock()
	if ok {
		return name, nil
	}

	user, err := c.api(ctx, teamID).GetUserInfoContext(ctx, userID)
	if err != nil {
		return "", model.NewExternalCallError("slack", "users.info", err)
	}
	if user == nil {
		return "", model.NewExternalCallError("slack", "users.info", fmt.Errorf("response has no user"))
	}

	switch {
	case user.Profile.DisplayName != "":
		name = user.Profile.DisplayName
	case user.Profile.RealName != "":
		name = user.Profile.RealName
	default:
		name = user.Name
	}

	c.mu.Lock()
	c.names[key] = name
	c.mu.Unlock()
	return name, nil
}

// BotIdentity asks Slack who the default bot token belongs to
func (c *Client) BotIdentity(ctx context.Context) (model.BotIdentity, error) {
	resp, err := c.defaultAPI.AuthTestContext(ctx)
	if err != nil {
		return model.BotIdentity{}, model.NewExternalCallError("slack", "auth.test", err)
	}
	if resp == nil || resp.UserID == "" {
		return model.BotIdentity{}, model.NewExternalCallError("slack", "auth.test", fmt.Errorf("response has no user_id"))
	}
	return model.BotIdentity{UserID: resp.UserID, BotID: resp.BotID}, nil
}

// ChannelNames returns a name -> id map of the public channels the bot can see
func (c *Client) ChannelNames(ctx context.Context, teamID string) (map[string]string, error) {
	names := make(map[string]string)
	params := &slack.GetConversationsParameters{ExcludeArchived: true, Limit: 200}
	for {
		channels, cursor, err := c.api(ctx, teamID).GetConversationsContext(ctx, params)
		if err != nil {
			return nil, model.NewExternalCallError("slack", "conversations.list", err)
		}
		for _, ch := range channels {
			names[ch.Name] = ch.ID
		}
		if cursor == "" {
			break
		}
		params.Cursor = cursor
	}
	return names, nil
}

// CompleteInstall exchanges an OAuth code for the installing team's bot token
// and stores it with the ids the bot posts under there. It returns the team id.
func (c *Client) CompleteInstall(ctx context.Context, code, redirectURI string) (string, error) {
	if c.clientID == "" || c.clientSecret == "" || c.teams == nil {
		return "", fmt.Errorf("oauth install is not configured")
	}
	resp, err := slack.GetOAuthV2ResponseContext(ctx, c.httpClient, c.clientID, c.clientSecret, code, redirectURI)
	if err != nil {
		return "", model.NewExternalCallError("slack", "oauth.v2.access", err)
	}
	if resp == nil || resp.Team.ID == "" || resp.AccessToken == "" {
		return "", model.NewExternalCallError("slack", "oauth.v2.access", fmt.Errorf("response has no team or token"))
	}

	installed := storage.Team{
		TeamID:    resp.Team.ID,
		BotToken:  resp.AccessToken,
		BotUserID: resp.BotUserID,
	}
	// oauth.v2.access has no bot id, auth.test on the new token does
	auth, err := slack.New(resp.AccessToken, c.options...).AuthTestContext(ctx)
	if err != nil {
		logger.GetLogger().Warn("failed to resolve bot id for installed team",
			zap.String("team_id", resp.Team.ID), zap.Error(err))
	} else {
		installed.BotID = auth.BotID
		if installed.BotUserID == "" {
			installed.BotUserID = auth.UserID
		}
	}

	if err := c.teams.SaveTeam(ctx, installed); err != nil {
		return "", fmt.Errorf("failed to store bot token for team %s: %w", resp.Team.ID, err)
	}

	c.mu.Lock()
	delete(c.teamsByID, resp.Team.ID)
	c.mu.Unlock()

	logger.GetLogger().Info("team installed",
		zap.String("team_id", resp.Team.ID),
		zap.String("team_name", resp.Team.Name),
		zap.String("bot_user_id", installed.BotUserID),
		zap.String("bot_id", installed.BotID))
	return resp.Team.ID, nil
}
