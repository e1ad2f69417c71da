package mcpserver

import (
	"context"
	"fmt"

	"littlebot/internal/service/circleci"

	"github.com/mark3labs/mcp-go/server"
)

// Runner executes an allow-listed program with an argument vector
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// BuildService answers CircleCI queries
type BuildService interface {
	ListProjects(ctx context.Context) ([]circleci.Project, error)
	Me(ctx context.Context) (*circleci.User, error)
	RecentBuilds(ctx context.Context, vcsType, username, repo, branch string, limit int) ([]circleci.Build, error)
}

// Deps are the services the tools call. CircleCI may be nil, in which case
// circleci_last_build is not registered.
type Deps struct {
	Runner   Runner
	CircleCI BuildService
	Branch   string
}

// NewServer creates a new MCP server instance
func NewServer(deps Deps) (*server.MCPServer, error) {
	if deps.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if deps.Branch == "" {
		deps.Branch = "master"
	}

	s := server.NewMCPServer(
		"littlebot",
		"1.0.0",
	)

	if err := registerCommandTools(s, &tools{deps: deps}); err != nil {
		return nil, err
	}

	return s, nil
}

// Serve starts the MCP server
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
