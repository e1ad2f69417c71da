package slackapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"littlebot/internal/model"
	"littlebot/internal/storage"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSlack is a minimal Web API that records what it was sent
type fakeSlack struct {
	mu       sync.Mutex
	calls    map[string]int
	forms    map[string]url.Values
	tokens   map[string]string
	handlers map[string]string
}

func newFakeSlack() *fakeSlack {
	return &fakeSlack{
		calls:  map[string]int{},
		forms:  map[string]url.Values{},
		tokens: map[string]string{},
		handlers: map[string]string{
			"chat.postMessage":   `{"ok":true,"channel":"D1","ts":"111.222"}`,
			"chat.update":        `{"ok":true,"channel":"D1","ts":"111.333","text":"x"}`,
			"conversations.open": `{"ok":true,"channel":{"id":"D1"}}`,
			"users.info":         `{"ok":true,"user":{"id":"U1","name":"elvis","profile":{"display_name":"The King","real_name":"Elvis Presley"}}}`,
			"auth.test":          `{"ok":true,"user_id":"U0BOT","bot_id":"B0BOT","team_id":"T1"}`,
			"conversations.list": `{"ok":true,"channels":[{"id":"C1","name":"general"},{"id":"C2","name":"random"}],"response_metadata":{"next_cursor":""}}`,
			"oauth.v2.access":    `{"ok":true,"access_token":"xoxb-team-two","team":{"id":"T2","name":"Two"},"bot_user_id":"U0BOT"}`,
		},
	}
}

func (f *fakeSlack) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	_ = r.ParseForm()

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		token = r.Form.Get("token")
	}

	f.mu.Lock()
	f.calls[method]++
	f.forms[method] = r.Form
	f.tokens[method] = token
	body, ok := f.handlers[method]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		_, _ = w.Write([]byte(`{"ok":false,"error":"unknown_method"}`))
		return
	}
	_, _ = w.Write([]byte(body))
}

func (f *fakeSlack) set(method, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = body
}

func (f *fakeSlack) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// rewriteTransport sends every request to the test server, so package level
// calls with a hard-coded Slack URL reach the fake too
type rewriteTransport struct {
	target *url.URL
}

func (rt rewriteTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r2 := r.Clone(r.Context())
	r2.URL.Scheme = rt.target.Scheme
	r2.URL.Host = rt.target.Host
	r2.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(r2)
}

func newTestClient(t *testing.T, teams storage.TeamStore) (*Client, *fakeSlack) {
	t.Helper()
	fake := newFakeSlack()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	target, err := url.Parse(srv.URL)
	require.NoError(t, err)

	c := New(Config{
		BotToken:     "xoxb-default",
		Username:     "littlebot",
		IconEmoji:    ":robot_face:",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		HTTPClient:   &http.Client{Transport: rewriteTransport{target: target}},
		SlackOptions: []slack.Option{slack.OptionAPIURL(srv.URL + "/api/")},
	}, teams)
	return c, fake
}

func TestClient_PostMessage(t *testing.T) {
	c, fake := newTestClient(t, storage.NewMemoryTeamStore())

	ts, err := c.PostMessage(context.Background(), "T1", "D1", "hello", []model.Attachment{{Text: "pin me", Color: "#f00"}})
	require.NoError(t, err)
	assert.Equal(t, "111.222", ts)

	form := fake.forms["chat.postMessage"]
	assert.Equal(t, "D1", form.Get("channel"))
	assert.Equal(t, "hello", form.Get("text"))
	assert.Equal(t, "littlebot", form.Get("username"))
	assert.Equal(t, ":robot_face:", form.Get("icon_emoji"))

	var attachments []slack.Attachment
	require.NoError(t, json.Unmarshal([]byte(form.Get("attachments")), &attachments))
	require.Len(t, attachments, 1)
	assert.Equal(t, "pin me", attachments[0].Text)
	assert.Equal(t, "xoxb-default", fake.tokens["chat.postMessage"])
}

func TestClient_PostMessageFailure(t *testing.T) {
	c, fake := newTestClient(t, storage.NewMemoryTeamStore())
	fake.set("chat.postMessage", `{"ok":false,"error":"channel_not_found"}`)

	_, err := c.PostMessage(context.Background(), "T1", "D1", "hello", nil)
	var extErr *model.ExternalCallError
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, "chat.postMessage", extErr.Op)
}

func TestClient_UsesTeamToken(t *testing.T) {
	teams := storage.NewMemoryTeamStore()
	require.NoError(t, teams.SaveTeam(context.Background(), storage.Team{TeamID: "T2", BotToken: "xoxb-team-two"}))
	c, fake := newTestClient(t, teams)

	_, err := c.PostMessage(context.Background(), "T2", "D1", "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "xoxb-team-two", fake.tokens["chat.postMessage"])
}

func TestClient_UpdateMessage(t *testing.T) {
	c, fake := newTestClient(t, storage.NewMemoryTeamStore())

	ts, err := c.UpdateMessage(context.Background(), "T1", "D1", "111.222", "updated", []model.Attachment{{Text: "done"}})
	require.NoError(t, err)
	assert.Equal(t, "111.333", ts)
	assert.Equal(t, "111.222", fake.forms["chat.update"].Get("ts"))
	assert.Equal(t, "updated", fake.forms["chat.update"].Get("text"))
}

func TestClient_OpenDirectMessage(t *testing.T) {
	c, fake := newTestClient(t, storage.NewMemoryTeamStore())

	channel, err := c.OpenDirectMessage(context.Background(), "T1", "U1")
	require.NoError(t, err)
	assert.Equal(t, "D1", channel)
	assert.Equal(t, "U1", fake.forms["conversations.open"].Get("users"))

	fake.set("conversations.open", `{"ok":true}`)
	_, err = c.OpenDirectMessage(context.Background(), "T1", "U1")
	var extErr *model.ExternalCallError
	require.True(t, errors.As(err, &extErr))
}

func TestClient_DisplayNameIsCached(t *testing.T) {
	c, fake := newTestClient(t, storage.NewMemoryTeamStore())

	name, err := c.DisplayName(context.Background(), "T1", "U1")
	require.NoError(t, err)
	assert.Equal(t, "The King", name)

	name, err = c.DisplayName(context.Background(), "T1", "U1")
	require.NoError(t, err)
	assert.Equal(t, "The King", name)
	assert.Equal(t, 1, fake.count("users.info"))
}

func TestClient_DisplayNameFallsBackToRealName(t *testing.T) {
	c, fake := newTestClient(t, storage.NewMemoryTeamStore())
	fake.set("users.info", `{"ok":true,"user":{"id":"U1","name":"elvis","profile":{"real_name":"Elvis Presley"}}}`)

	name, err := c.DisplayName(context.Background(), "T1", "U1")
	require.NoError(t, err)
	assert.Equal(t, "Elvis Presley", name)
}

func TestClient_BotIdentity(t *testing.T) {
	c, _ := newTestClient(t, storage.NewMemoryTeamStore())

	id, err := c.BotIdentity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.BotIdentity{UserID: "U0BOT", BotID: "B0BOT"}, id)
}

func TestClient_ChannelNames(t *testing.T) {
	c, _ := newTestClient(t, storage.NewMemoryTeamStore())

	names, err := c.ChannelNames(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"general": "C1", "random": "C2"}, names)
}

func TestClient_CompleteInstall(t *testing.T) {
	teams := storage.NewMemoryTeamStore()
	c, fake := newTestClient(t, teams)
	fake.set("oauth.v2.access", `{"ok":true,"access_token":"xoxb-team-two","team":{"id":"T2","name":"Two"},"bot_user_id":"U2BOT"}`)
	fake.set("auth.test", `{"ok":true,"user_id":"U2BOT","bot_id":"B2BOT","team_id":"T2"}`)

	teamID, err := c.CompleteInstall(context.Background(), "the-code", "")
	require.NoError(t, err)
	assert.Equal(t, "T2", teamID)
	assert.Equal(t, "the-code", fake.forms["oauth.v2.access"].Get("code"))
	assert.Equal(t, "xoxb-team-two", fake.tokens["auth.test"])

	stored, err := teams.GetTeam(context.Background(), "T2")
	require.NoError(t, err)
	assert.Equal(t, storage.Team{TeamID: "T2", BotToken: "xoxb-team-two", BotUserID: "U2BOT", BotID: "B2BOT"}, stored)

	_, err = c.PostMessage(context.Background(), "T2", "D1", "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "xoxb-team-two", fake.tokens["chat.postMessage"])

	id, ok := c.TeamIdentity(context.Background(), "T2")
	require.True(t, ok)
	assert.Equal(t, model.BotIdentity{UserID: "U2BOT", BotID: "B2BOT"}, id)
}

func TestClient_CompleteInstallWithoutBotID(t *testing.T) {
	teams := storage.NewMemoryTeamStore()
	c, fake := newTestClient(t, teams)
	fake.set("auth.test", `{"ok":false,"error":"invalid_auth"}`)

	_, err := c.CompleteInstall(context.Background(), "the-code", "")
	require.NoError(t, err)

	stored, err := teams.GetTeam(context.Background(), "T2")
	require.NoError(t, err)
	assert.Equal(t, "U0BOT", stored.BotUserID)
	assert.Empty(t, stored.BotID)
}

func TestClient_TeamIdentity(t *testing.T) {
	teams := storage.NewMemoryTeamStore()
	require.NoError(t, teams.SaveTeam(context.Background(), storage.Team{TeamID: "T2", BotToken: "xoxb-2", BotUserID: "U2BOT", BotID: "B2BOT"}))
	require.NoError(t, teams.SaveTeam(context.Background(), storage.Team{TeamID: "T3", BotToken: "xoxb-3"}))
	c, _ := newTestClient(t, teams)

	id, ok := c.TeamIdentity(context.Background(), "T2")
	require.True(t, ok)
	assert.Equal(t, model.BotIdentity{UserID: "U2BOT", BotID: "B2BOT"}, id)

	_, ok = c.TeamIdentity(context.Background(), "T3")
	assert.False(t, ok, "a team stored without ids has no identity of its own")

	_, ok = c.TeamIdentity(context.Background(), "T1")
	assert.False(t, ok)
}

func TestClient_CompleteInstallRejected(t *testing.T) {
	c, fake := newTestClient(t, storage.NewMemoryTeamStore())
	fake.set("oauth.v2.access", `{"ok":false,"error":"invalid_code"}`)

	_, err := c.CompleteInstall(context.Background(), "bad", "")
	assert.Error(t, err)
}
