package handler

import (
	"context"
	"embed"
	"fmt"

	"littlebot/internal/model"
	"littlebot/internal/service/circleci"
	"littlebot/internal/storage"

	"gopkg.in/yaml.v3"
)

//go:embed templates
var templateFS embed.FS

// Messenger posts to Slack on behalf of a team
type Messenger interface {
	PostMessage(ctx context.Context, teamID, channelID, text string, attachments []model.Attachment) (string, error)
	UpdateMessage(ctx context.Context, teamID, channelID, timestamp, text string, attachments []model.Attachment) (string, error)
	DisplayName(ctx context.Context, teamID, userID string) (string, error)
}

// Installer completes the OAuth install of a team
type Installer interface {
	CompleteInstall(ctx context.Context, code, redirectURI string) (string, error)
}

// IdentityResolver returns the bot ids of a team that installed the bot
// through OAuth. ok is false for teams served by the default token.
type IdentityResolver interface {
	TeamIdentity(ctx context.Context, teamID string) (model.BotIdentity, bool)
}

// CommandRunner executes an allow-listed program with an argument vector
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// BuildService answers CircleCI queries
type BuildService interface {
	ListProjects(ctx context.Context) ([]circleci.Project, error)
	Me(ctx context.Context) (*circleci.User, error)
	RecentBuilds(ctx context.Context, vcsType, username, repo, branch string, limit int) ([]circleci.Build, error)
}

// Options wires a SlackHandler. Installer, Identities and CircleCI may be nil.
// Identity is used for teams Identities does not know.
type Options struct {
	Identity          model.BotIdentity
	Identities        IdentityResolver
	VerificationToken string
	SigningSecret     string
	BotName           string

	Messenger Messenger
	Installer Installer
	Sessions  *storage.SessionStore
	Runner    CommandRunner

	CircleCI       BuildService
	CircleCIBranch string

	ClientID    string
	Scope       string
	RedirectURI string
}

// SlackHandler answers the Events API and the install pages
type SlackHandler struct {
	identity          model.BotIdentity
	identities        IdentityResolver
	verificationToken string
	signingSecret     string
	botName           string

	messenger Messenger
	installer Installer
	sessions  *storage.SessionStore
	runner    CommandRunner

	circleci       BuildService
	circleciBranch string

	clientID    string
	scope       string
	redirectURI string

	welcome welcomeTemplate
}

// welcomeTemplate is the onboarding content shipped in templates/welcome.yaml
type welcomeTemplate struct {
	Text        string                              `yaml:"text"`
	Attachments map[model.SlotName]model.Attachment `yaml:"attachments"`
}

func loadWelcome() (welcomeTemplate, error) {
	var w welcomeTemplate
	raw, err := templateFS.ReadFile("templates/welcome.yaml")
	if err != nil {
		return w, fmt.Errorf("failed to read welcome template: %w", err)
	}
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return w, fmt.Errorf("failed to parse welcome template: %w", err)
	}
	for _, slot := range model.Slots {
		if w.Attachments[slot].Text == "" {
			return w, fmt.Errorf("welcome template has no %q attachment", slot)
		}
	}
	return w, nil
}

// NewSlackHandler validates opts and loads the embedded onboarding template
func NewSlackHandler(opts Options) (*SlackHandler, error) {
	if opts.VerificationToken == "" {
		return nil, fmt.Errorf("verification token is required")
	}
	if opts.Messenger == nil || opts.Sessions == nil || opts.Runner == nil {
		return nil, fmt.Errorf("messenger, session store and runner are required")
	}

	welcome, err := loadWelcome()
	if err != nil {
		return nil, err
	}

	branch := opts.CircleCIBranch
	if branch == "" {
		branch = "master"
	}

	return &SlackHandler{
		identity:          opts.Identity,
		identities:        opts.Identities,
		verificationToken: opts.VerificationToken,
		signingSecret:     opts.SigningSecret,
		botName:           opts.BotName,
		messenger:         opts.Messenger,
		installer:         opts.Installer,
		sessions:          opts.Sessions,
		runner:            opts.Runner,
		circleci:          opts.CircleCI,
		circleciBranch:    branch,
		clientID:          opts.ClientID,
		scope:             opts.Scope,
		redirectURI:       opts.RedirectURI,
		welcome:           welcome,
	}, nil
}

// botIdentity returns the ids the bot posts under in teamID
func (h *SlackHandler) botIdentity(ctx context.Context, teamID string) model.BotIdentity {
	if h.identities != nil {
		if id, ok := h.identities.TeamIdentity(ctx, teamID); ok {
			return id
		}
	}
	return h.identity
}
