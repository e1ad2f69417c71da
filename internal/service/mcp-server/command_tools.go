package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"littlebot/internal/command"
	"littlebot/internal/logger"
	"littlebot/internal/service/circleci"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

type tools struct {
	deps Deps
}

// parsedCommand is the parse_command result
type parsedCommand struct {
	Recognized bool     `json:"recognized"`
	Program    string   `json:"program,omitempty"`
	Action     string   `json:"action,omitempty"`
	Args       []string `json:"args,omitempty"`
	Command    string   `json:"command,omitempty"`
	Usage      string   `json:"usage,omitempty"`
}

// registerCommandTools registers the bot's command tools with the server
func registerCommandTools(s *server.MCPServer, t *tools) error {
	parseTool := mcp.NewTool("parse_command",
		mcp.WithDescription("Parse a chat message into the git or docker command the bot would run"),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Free-form message text, e.g. 'please git status now'"),
		),
	)

	runTool := mcp.NewTool("run_command",
		mcp.WithDescription("Run the git or docker command found in a chat message and return its output"),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Free-form message text containing 'git <action>' or 'docker <action>'"),
		),
	)

	s.AddTool(parseTool, t.handleParseCommand)
	s.AddTool(runTool, t.handleRunCommand)

	if t.deps.CircleCI != nil {
		buildTool := mcp.NewTool("circleci_last_build",
			mcp.WithDescription("Get the most recent CircleCI build of a followed repository"),
			mcp.WithString("repo",
				mcp.Required(),
				mcp.Description("Repository name, matched case-insensitively"),
			),
		)
		s.AddTool(buildTool, t.handleLastBuild)
	}

	return nil
}

func stringArg(request mcp.CallToolRequest, name string) (string, error) {
	args, _ := any(request.Params.Arguments).(map[string]any)
	v, ok := args[name].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("invalid %s parameter", name)
	}
	return v, nil
}

// parse picks the parser by the program named in the text
func parse(text string) command.Match {
	if command.DetectGit(text) {
		return command.ParseVersionControl(text)
	}
	if command.DetectDocker(text) {
		return command.ParseContainer(text)
	}
	return command.Match{Usage: command.GitUsage() + "\n" + command.DockerUsage()}
}

func (t *tools) handleParseCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := stringArg(request, "text")
	if err != nil {
		return nil, err
	}

	m := parse(text)
	result := parsedCommand{
		Recognized: m.Recognized,
		Program:    m.Program,
		Action:     m.Action,
		Args:       m.Args,
		Usage:      m.Usage,
	}
	if m.Recognized {
		result.Command = m.Command()
	}

	jsonResult, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %v", err)
	}
	return mcp.NewToolResultText(string(jsonResult)), nil
}

func (t *tools) handleRunCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := stringArg(request, "text")
	if err != nil {
		return nil, err
	}

	m := parse(text)
	if !m.Recognized {
		return mcp.NewToolResultError(m.Usage), nil
	}

	output, err := t.deps.Runner.Run(ctx, m.Program, m.Args...)
	if err != nil {
		logger.GetLogger().Warn("command failed", zap.String("command", m.Command()), zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("%s\n`%s` failed: %v", output, m.Command(), err)), nil
	}
	return mcp.NewToolResultText(output), nil
}

func (t *tools) handleLastBuild(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo, err := stringArg(request, "repo")
	if err != nil {
		return nil, err
	}

	projects, err := t.deps.CircleCI.ListProjects(ctx)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, p := range projects {
		names = append(names, p.Reponame)
		if !strings.EqualFold(p.Reponame, repo) {
			continue
		}

		username := p.Username
		if username == "" {
			me, err := t.deps.CircleCI.Me(ctx)
			if err != nil {
				return nil, err
			}
			username = me.Login
		}
		vcsType := p.VCSType
		if vcsType == "" {
			vcsType = "github"
		}

		builds, err := t.deps.CircleCI.RecentBuilds(ctx, vcsType, username, p.Reponame, t.deps.Branch, 1)
		if err != nil {
			return nil, err
		}
		if len(builds) == 0 {
			return mcp.NewToolResultError(fmt.Sprintf("no builds of %s on %s", p.Reponame, t.deps.Branch)), nil
		}
		return mcp.NewToolResultText(circleci.FormatBuild(builds[0])), nil
	}

	return mcp.NewToolResultError(fmt.Sprintf("unknown repo %q, known repos: %s", repo, strings.Join(names, ", "))), nil
}
