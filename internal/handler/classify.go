package handler

import (
	"errors"
	"fmt"
	"strings"

	"littlebot/internal/command"
	"littlebot/internal/model"
)

// Intent is the purpose of an inbound event and selects the handler that runs
type Intent string

const (
	IgnoreSelfEcho        Intent = "ignore_self_echo"
	Unsupported           Intent = "unsupported"
	Echo                  Intent = "echo"
	VersionControlCommand Intent = "version_control_command"
	ContainerCommand      Intent = "container_command"
	CiStatusQuery         Intent = "ci_status_query"
	ShareUpdate           Intent = "share_update"
	PinUpdate             Intent = "pin_update"
	OnboardingOrHelp      Intent = "onboarding_or_help"
	NoHandler             Intent = "no_handler"
)

// ErrUnclassified is returned for a supported event that no rule matches
var ErrUnclassified = errors.New("event matches no intent")

// Classification is the result of Classify. Greeting is only set for
// OnboardingOrHelp on team_join.
type Classification struct {
	Intent   Intent
	Greeting bool
}

// Classify picks the intent of env. Rules are evaluated in order and the
// first match wins.
func Classify(env model.Envelope, bot model.BotIdentity) (Classification, error) {
	messageLike := env.Type.IsMessageLike()
	lower := strings.ToLower(env.Text)

	switch {
	case messageLike && bot.Authored(env):
		return Classification{Intent: IgnoreSelfEcho}, nil
	case !env.Type.IsSupported():
		return Classification{Intent: Unsupported}, nil
	case messageLike && (strings.Contains(env.Text, "echo") || strings.Contains(env.Text, "hunka hunka")):
		return Classification{Intent: Echo}, nil
	case messageLike && command.DetectGit(env.Text):
		return Classification{Intent: VersionControlCommand}, nil
	case messageLike && command.DetectDocker(env.Text):
		return Classification{Intent: ContainerCommand}, nil
	case messageLike && strings.Contains(lower, "circleci"):
		return Classification{Intent: CiStatusQuery}, nil
	case messageLike && env.IsShare():
		return Classification{Intent: ShareUpdate}, nil
	case env.Type == model.EventPinAdded:
		return Classification{Intent: PinUpdate}, nil
	case messageLike && (strings.Contains(lower, "startitoff") || strings.Contains(lower, "help")):
		return Classification{Intent: OnboardingOrHelp}, nil
	case env.Type == model.EventTeamJoin:
		return Classification{Intent: OnboardingOrHelp, Greeting: true}, nil
	case messageLike:
		return Classification{Intent: NoHandler}, nil
	}
	return Classification{}, fmt.Errorf("%w: type %q", ErrUnclassified, env.Type)
}
