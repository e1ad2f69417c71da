package handler

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"littlebot/internal/model"
	"littlebot/internal/service/circleci"
	"littlebot/internal/storage"

	"github.com/stretchr/testify/require"
)

const testToken = "verify-me"

var testBot = model.BotIdentity{UserID: "U0BOT", BotID: "B0BOT"}

type sentMessage struct {
	TeamID      string
	Channel     string
	Timestamp   string
	Text        string
	Attachments []model.Attachment
}

// fakeMessenger records posts and updates and opens DM channels "D-<user>"
type fakeMessenger struct {
	mu      sync.Mutex
	posts   []sentMessage
	updates []sentMessage
	opened  int
	names   map[string]string
	postErr error
	seq     int
}

func (f *fakeMessenger) OpenDirectMessage(_ context.Context, _, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened++
	return "D-" + userID, nil
}

func (f *fakeMessenger) PostMessage(_ context.Context, teamID, channelID, text string, attachments []model.Attachment) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return "", f.postErr
	}
	f.seq++
	ts := fmt.Sprintf("100.%d", f.seq)
	f.posts = append(f.posts, sentMessage{TeamID: teamID, Channel: channelID, Timestamp: ts, Text: text, Attachments: attachments})
	return ts, nil
}

func (f *fakeMessenger) UpdateMessage(_ context.Context, teamID, channelID, timestamp, text string, attachments []model.Attachment) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, sentMessage{TeamID: teamID, Channel: channelID, Timestamp: timestamp, Text: text, Attachments: attachments})
	return timestamp, nil
}

func (f *fakeMessenger) DisplayName(_ context.Context, _, userID string) (string, error) {
	if name, ok := f.names[userID]; ok {
		return name, nil
	}
	return "", fmt.Errorf("user_not_found")
}

func (f *fakeMessenger) lastPost(t *testing.T) sentMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.posts, "nothing was posted")
	return f.posts[len(f.posts)-1]
}

type runCall struct {
	Name string
	Args []string
}

type fakeRunner struct {
	calls  []runCall
	output string
	err    error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	f.calls = append(f.calls, runCall{Name: name, Args: args})
	return f.output, f.err
}

type fakeBuilds struct {
	projects  []circleci.Project
	builds    []circleci.Build
	login     string
	err       error
	requested []string
}

func (f *fakeBuilds) ListProjects(context.Context) ([]circleci.Project, error) {
	return f.projects, f.err
}

func (f *fakeBuilds) Me(context.Context) (*circleci.User, error) {
	return &circleci.User{Login: f.login}, nil
}

func (f *fakeBuilds) RecentBuilds(_ context.Context, vcsType, username, repo, branch string, limit int) ([]circleci.Build, error) {
	f.requested = append(f.requested, fmt.Sprintf("%s/%s/%s@%s#%d", vcsType, username, repo, branch, limit))
	return f.builds, nil
}

type fakeInstaller struct {
	code string
	err  error
}

func (f *fakeInstaller) CompleteInstall(_ context.Context, code, _ string) (string, error) {
	f.code = code
	if f.err != nil {
		return "", f.err
	}
	return "T2", nil
}

// fakeIdentities maps installed teams to the bot ids they were installed with
type fakeIdentities map[string]model.BotIdentity

func (f fakeIdentities) TeamIdentity(_ context.Context, teamID string) (model.BotIdentity, bool) {
	id, ok := f[teamID]
	return id, ok
}

type testDeps struct {
	messenger *fakeMessenger
	runner    *fakeRunner
	builds    *fakeBuilds
	installer *fakeInstaller
	sessions  *storage.SessionStore
}

func newTestHandler(t *testing.T, overrides ...func(*Options)) (*SlackHandler, *testDeps) {
	t.Helper()
	deps := &testDeps{
		messenger: &fakeMessenger{names: map[string]string{"U1": "Elvis"}},
		runner:    &fakeRunner{},
		builds:    &fakeBuilds{},
		installer: &fakeInstaller{},
	}
	deps.sessions = storage.NewSessionStore(deps.messenger)

	opts := Options{
		Identity:          testBot,
		VerificationToken: testToken,
		BotName:           "littlebot",
		Messenger:         deps.messenger,
		Installer:         deps.installer,
		Sessions:          deps.sessions,
		Runner:            deps.runner,
		CircleCI:          deps.builds,
		ClientID:          "client-id",
		Scope:             "chat:write",
	}
	for _, override := range overrides {
		override(&opts)
	}

	h, err := NewSlackHandler(opts)
	require.NoError(t, err)
	return h, deps
}
