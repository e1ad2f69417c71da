package handler

import (
	"context"
	"fmt"
	"strings"

	"littlebot/internal/logger"
	"littlebot/internal/model"
	"littlebot/internal/service/circleci"

	"go.uber.org/zap"
)

// handleCircleCI answers "circleci <repo> last build" queries
func (h *SlackHandler) handleCircleCI(ctx context.Context, env model.Envelope) error {
	text, err := h.circleCIAnswer(ctx, env.Text)
	if err != nil {
		logger.GetLogger().Error("circleci query failed",
			zap.String("team_id", env.TeamID),
			zap.String("user_id", env.Sender),
			zap.Error(err))
		text = "Sorry, I could not get that information from CircleCI."
	}
	return h.reply(ctx, env, model.KindCircleCI, text)
}

func (h *SlackHandler) circleCIAnswer(ctx context.Context, incoming string) (string, error) {
	if h.circleci == nil {
		return "Sorry, CircleCI is not configured for this bot.", nil
	}

	projects, err := h.circleci.ListProjects(ctx)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(projects))
	for _, p := range projects {
		names = append(names, p.Reponame)
	}
	known := strings.Join(names, ", ")

	lower := strings.ToLower(incoming)
	var (
		project circleci.Project
		found   bool
	)
	for _, p := range projects {
		if p.Reponame != "" && strings.Contains(lower, strings.ToLower(p.Reponame)) {
			project, found = p, true
		}
	}
	if !found {
		return fmt.Sprintf("Sorry, I could not determine which repo you wanted.\nI know about these: %s", known), nil
	}
	if !strings.Contains(lower, "last build") {
		return fmt.Sprintf("I know about %s. Ask me for circleci %s 'last build'.", project.Reponame, project.Reponame), nil
	}

	username := project.Username
	if username == "" {
		me, err := h.circleci.Me(ctx)
		if err != nil {
			return "", err
		}
		username = me.Login
	}
	vcsType := project.VCSType
	if vcsType == "" {
		vcsType = "github"
	}

	builds, err := h.circleci.RecentBuilds(ctx, vcsType, username, project.Reponame, h.circleciBranch, 1)
	if err != nil {
		return "", err
	}
	if len(builds) == 0 {
		return fmt.Sprintf("Sorry, I could not get that information.\nI know about these repos: %s", known), nil
	}
	return circleci.FormatBuild(builds[0]), nil
}
