// Package app wires configuration into the services and handler shared by
// the HTTP, Lambda and MCP entry points.
package app

import (
	"context"
	"fmt"
	"sort"

	"littlebot/internal/config"
	"littlebot/internal/handler"
	"littlebot/internal/logger"
	"littlebot/internal/model"
	"littlebot/internal/service/circleci"
	"littlebot/internal/service/runner"
	"littlebot/internal/service/slackapi"
	"littlebot/internal/storage"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// NewTeamStore keeps installed teams' bot tokens in S3 when a bucket is
// configured and in memory otherwise
func NewTeamStore(ctx context.Context, cfg *config.Config) (storage.TeamStore, error) {
	if cfg.TokenBucketName == "" {
		logger.GetLogger().Info("TOKEN_BUCKET_NAME not set, team tokens are kept in memory")
		return storage.NewMemoryTeamStore(), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return storage.NewS3TeamStore(s3.NewFromConfig(awsCfg), cfg.TokenBucketName, cfg.TokenEncryptKey)
}

// NewRunner returns the git/docker runner
func NewRunner(cfg *config.Config) *runner.ExecRunner {
	return runner.New(cfg.CommandDir, cfg.CommandTimeout)
}

// NewCircleCI returns nil when no CircleCI token is configured
func NewCircleCI(cfg *config.Config) *circleci.Client {
	if cfg.CircleCIToken == "" {
		return nil
	}
	return circleci.NewClient(cfg.CircleCIToken)
}

// NewHandler builds the Slack handler with every collaborator it needs
func NewHandler(ctx context.Context, cfg *config.Config) (*handler.SlackHandler, error) {
	teams, err := NewTeamStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	slackClient := slackapi.New(slackapi.Config{
		BotToken:     cfg.BotToken,
		Username:     cfg.BotName,
		IconEmoji:    cfg.BotEmoji,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	}, teams)

	identity, err := resolveIdentity(ctx, cfg, slackClient)
	if err != nil {
		return nil, err
	}
	logger.GetLogger().Info("bot identity",
		zap.String("user_id", identity.UserID),
		zap.String("bot_id", identity.BotID))

	logChannels(ctx, slackClient)

	opts := handler.Options{
		Identity:          identity,
		Identities:        slackClient,
		VerificationToken: cfg.VerificationToken,
		SigningSecret:     cfg.SigningSecret,
		BotName:           cfg.BotName,
		Messenger:         slackClient,
		Sessions:          storage.NewSessionStore(slackClient),
		Runner:            NewRunner(cfg),
		CircleCIBranch:    cfg.CircleCIBranch,
		ClientID:          cfg.ClientID,
		Scope:             cfg.BotScope,
		RedirectURI:       cfg.RedirectURI,
	}
	if cc := NewCircleCI(cfg); cc != nil {
		opts.CircleCI = cc
	}
	if cfg.InstallEnabled() {
		opts.Installer = slackClient
	}

	return handler.NewSlackHandler(opts)
}

// identitySource is the auth.test lookup resolveIdentity needs
type identitySource interface {
	BotIdentity(ctx context.Context) (model.BotIdentity, error)
}

// resolveIdentity asks Slack for the default token's bot ids. A configured
// SLACK_BOT_USER_ID takes precedence for the user id, and auth.test still
// supplies the bot id Slack stamps on the bot's own posts.
func resolveIdentity(ctx context.Context, cfg *config.Config, source identitySource) (model.BotIdentity, error) {
	resolved, err := source.BotIdentity(ctx)
	if err != nil {
		if cfg.BotUserID == "" {
			return model.BotIdentity{}, fmt.Errorf("failed to resolve bot identity: %w", err)
		}
		logger.GetLogger().Warn("failed to resolve bot id, matching own posts by user id only",
			zap.String("user_id", cfg.BotUserID), zap.Error(err))
		return model.BotIdentity{UserID: cfg.BotUserID}, nil
	}
	if cfg.BotUserID != "" {
		resolved.UserID = cfg.BotUserID
	}
	return resolved, nil
}

// logChannels logs the channels visible to the default bot token
func logChannels(ctx context.Context, client *slackapi.Client) {
	channels, err := client.ChannelNames(ctx, "")
	if err != nil {
		logger.GetLogger().Warn("failed to list channels", zap.Error(err))
		return
	}

	names := make([]string, 0, len(channels))
	for name := range channels {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		logger.GetLogger().Debug("channel", zap.String("id", channels[name]), zap.String("name", name))
	}
}
