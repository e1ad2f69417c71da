package circleci

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"littlebot/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("circle-token", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
}

func TestClient_ListProjects(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects", r.URL.Path)
		assert.Equal(t, "circle-token", r.Header.Get("Circle-Token"))
		_, _ = w.Write([]byte(`[{"reponame":"HB_Littlebot","username":"hodolizer","vcs_type":"github"}]`))
	})

	projects, err := c.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "HB_Littlebot", projects[0].Reponame)
	assert.Equal(t, "hodolizer", projects[0].Username)
}

func TestClient_Me(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"login":"hodolizer"}`))
	})
	user, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hodolizer", user.Login)
}

func TestClient_MeWithoutLogin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	_, err := c.Me(context.Background())
	var extErr *model.ExternalCallError
	require.True(t, errors.As(err, &extErr))
}

func TestClient_RecentBuilds(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/project/github/hodolizer/HB_Littlebot/tree/master", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[{"platform":"2.0","build_url":"https://circleci.com/gh/x/1","build_num":42,"outcome":"success",
			"all_commit_details":[{"subject":"fix build","committer_name":"Hodo","committer_date":"2018-10-01","commit_url":"https://github.com/x/c/1"}]}]`))
	})

	builds, err := c.RecentBuilds(context.Background(), "github", "hodolizer", "HB_Littlebot", "master", 1)
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, 42, builds[0].BuildNum)
	require.Len(t, builds[0].AllCommitDetails, 1)
	assert.Equal(t, "fix build", builds[0].AllCommitDetails[0].Subject)
}

func TestClient_ErrorStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	})
	_, err := c.ListProjects(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestClient_UnexpectedShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"projects":"nope"}`))
	})
	_, err := c.ListProjects(context.Background())
	var extErr *model.ExternalCallError
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, "projects", extErr.Op)
}

func TestFormatBuild(t *testing.T) {
	out := FormatBuild(Build{
		Platform:   "2.0",
		BuildURL:   "https://circleci.com/gh/x/1",
		AuthorName: "Hodo",
		BuildNum:   7,
		AllCommitDetails: []CommitDetail{
			{Subject: "first"},
		},
	})
	assert.Contains(t, out, "Build Number: 7")
	assert.Contains(t, out, "Outcome: Not found")
	assert.Contains(t, out, "Commit Subject: first")
	assert.Contains(t, out, "Committer Name: Not found")
}
