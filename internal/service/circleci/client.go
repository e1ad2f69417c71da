// Package circleci is a small client for the CircleCI v1.1 REST API: followed
// projects, the token owner, and recent builds of a branch.
package circleci

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"littlebot/internal/model"
)

const defaultBaseURL = "https://circleci.com/api/v1.1"

// Project is a project the token owner follows
type Project struct {
	Reponame string `json:"reponame"`
	Username string `json:"username"`
	VCSURL   string `json:"vcs_url"`
	VCSType  string `json:"vcs_type"`
}

// User is the token owner
type User struct {
	Login string `json:"login"`
	Name  string `json:"name"`
}

// CommitDetail is one commit included in a build
type CommitDetail struct {
	Subject       string `json:"subject"`
	CommitterName string `json:"committer_name"`
	CommitterDate string `json:"committer_date"`
	CommitURL     string `json:"commit_url"`
}

// Build is a summary of one build
type Build struct {
	Platform         string         `json:"platform"`
	BuildURL         string         `json:"build_url"`
	CommitterDate    string         `json:"committer_date"`
	AuthorName       string         `json:"author_name"`
	BuildNum         int            `json:"build_num"`
	Outcome          string         `json:"outcome"`
	Branch           string         `json:"branch"`
	AllCommitDetails []CommitDetail `json:"all_commit_details"`
}

// Client calls the CircleCI API with a personal token
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL points the client at another API root
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a CircleCI client
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListProjects returns the projects the token owner follows
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := c.get(ctx, "projects", "/projects", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// Me returns the token owner
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.get(ctx, "me", "/me", nil, &user); err != nil {
		return nil, err
	}
	if user.Login == "" {
		return nil, model.NewExternalCallError("circleci", "me", fmt.Errorf("response has no login"))
	}
	return &user, nil
}

// RecentBuilds returns the most recent builds of branch, newest first
func (c *Client) RecentBuilds(ctx context.Context, vcsType, username, repo, branch string, limit int) ([]Build, error) {
	if vcsType == "" {
		vcsType = "github"
	}
	path := fmt.Sprintf("/project/%s/%s/%s/tree/%s",
		url.PathEscape(vcsType), url.PathEscape(username), url.PathEscape(repo), url.PathEscape(branch))
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", fmt.Sprint(limit))
	}
	var builds []Build
	if err := c.get(ctx, "recent builds", path, query, &builds); err != nil {
		return nil, err
	}
	return builds, nil
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return model.NewExternalCallError("circleci", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Circle-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.NewExternalCallError("circleci", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return model.NewExternalCallError("circleci", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return model.NewExternalCallError("circleci", op, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return model.NewExternalCallError("circleci", op, fmt.Errorf("unexpected response: %w", err))
	}
	return nil
}

// FormatBuild renders a build for a chat reply
func FormatBuild(b Build) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Build Version: %s\n", b.Platform)
	fmt.Fprintf(&sb, "Build URL: %s\n", b.BuildURL)
	fmt.Fprintf(&sb, "Commit Date: %s\n", b.CommitterDate)
	fmt.Fprintf(&sb, "Author Name: %s\n", b.AuthorName)
	fmt.Fprintf(&sb, "Build Number: %d\n", b.BuildNum)
	fmt.Fprintf(&sb, "Outcome: %s\n", orNotFound(b.Outcome))
	for _, commit := range b.AllCommitDetails {
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "Commit Subject: %s\n", orNotFound(commit.Subject))
		fmt.Fprintf(&sb, "Committer Name: %s\n", orNotFound(commit.CommitterName))
		fmt.Fprintf(&sb, "Commit Date: %s\n", orNotFound(commit.CommitterDate))
		fmt.Fprintf(&sb, "Commit URL: %s\n", orNotFound(commit.CommitURL))
	}
	return sb.String()
}

func orNotFound(s string) string {
	if s == "" {
		return "Not found"
	}
	return s
}
