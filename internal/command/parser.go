// Package command extracts git and docker sub-commands from chat text.
//
// Parsers never build shell strings. A recognized Match carries an argv that
// is handed to the runner as discrete arguments.
package command

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

var (
	GitActions    = []string{"status", "add", "commit"}
	DockerActions = []string{"image", "container"}

	gitPattern    = regexp.MustCompile(`\bgit\s(\w+)`)
	dockerPattern = regexp.MustCompile(`\bdocker\s(\w+)`)
	messageFlag   = regexp.MustCompile(`(?:^|\s)-m(?:\s|$)`)

	// detection only; the parsers decide whether the command is usable
	detectGit    = regexp.MustCompile(`\bgit\s`)
	detectDocker = regexp.MustCompile(`\bdocker\s`)
)

// Match is the result of parsing. When Recognized is false only Usage is set.
type Match struct {
	Recognized bool
	Program    string
	Action     string
	// Argument is the text that follows the action, as the user should read it
	Argument string
	Args     []string
	Usage    string
}

// Command renders the match the way it would be typed on a terminal
func (m Match) Command() string {
	if !m.Recognized {
		return ""
	}
	return strings.TrimRight(m.Program+" "+m.Action+m.Argument, " ")
}

func unrecognized(usage string) Match {
	return Match{Usage: usage}
}

// DetectGit reports whether text contains a standalone "git " token
func DetectGit(text string) bool {
	return detectGit.MatchString(text)
}

// DetectDocker reports whether text contains a standalone "docker " token
func DetectDocker(text string) bool {
	return detectDocker.MatchString(text)
}

// GitUsage is posted when a git command cannot be understood
func GitUsage() string {
	return fmt.Sprintf("I'm sorry. I don't understand your git command.\n"+
		"I understand git [%s] if you would like to try one of those.\n"+
		"Commit also requires a -m commit_message", strings.Join(GitActions, "|"))
}

// DockerUsage is posted when a docker command cannot be understood
func DockerUsage() string {
	return fmt.Sprintf("I'm sorry. I don't understand your docker command. "+
		"I understand docker [%s] if you would like to try one of those.", strings.Join(DockerActions, "|"))
}

// ParseVersionControl extracts the git action following "git ".
//
// add always targets the whole directory. commit needs a -m flag after the
// action; the rest of the text after the flag is the message.
func ParseVersionControl(text string) Match {
	loc := gitPattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return unrecognized(GitUsage())
	}
	action := text[loc[2]:loc[3]]
	if !slices.Contains(GitActions, action) {
		return unrecognized(GitUsage())
	}

	m := Match{Recognized: true, Program: "git", Action: action}
	switch action {
	case "status":
		m.Args = []string{"status"}
	case "add":
		m.Argument = " ."
		m.Args = []string{"add", "."}
	case "commit":
		rest := text[loc[1]:]
		flag := messageFlag.FindStringIndex(rest)
		if flag == nil {
			return unrecognized("commit requires a message.\n" + GitUsage())
		}
		msg := strings.TrimLeft(rest[flag[1]:], " \t")
		if strings.TrimSpace(msg) == "" {
			return unrecognized("commit requires a message.\n" + GitUsage())
		}
		m.Argument = fmt.Sprintf(" -m %q", msg)
		m.Args = []string{"commit", "-m", msg}
	}
	return m
}

// CommitMessage returns the commit message of a recognized commit match
func (m Match) CommitMessage() string {
	if m.Action != "commit" || len(m.Args) < 3 {
		return ""
	}
	return m.Args[2]
}

// ParseContainer extracts the docker action following "docker ". Only the
// top-level action is checked; the remainder is passed through and the
// docker CLI rejects anything it does not know.
func ParseContainer(text string) Match {
	loc := dockerPattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return unrecognized(DockerUsage())
	}
	action := text[loc[2]:loc[3]]
	if !slices.Contains(DockerActions, action) {
		return unrecognized(DockerUsage())
	}
	remainder := text[loc[1]:]
	return Match{
		Recognized: true,
		Program:    "docker",
		Action:     action,
		Argument:   remainder,
		Args:       append([]string{action}, strings.Fields(remainder)...),
	}
}
