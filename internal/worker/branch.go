package worker

import (
	"fmt"
	"strings"
)

const branchPrefix = "backspace/"

// BranchName derives the task branch from the prompt: lowercased, spaces and
// slashes become dashes, dots are dropped, capped at 50 characters.
func BranchName(prompt string) string {
	slug := strings.ToLower(prompt)
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.ReplaceAll(slug, ".", "")
	slug = strings.ReplaceAll(slug, "/", "-")
	slug = strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' {
			return r
		}
		return -1
	}, slug)
	if len(slug) > 50 {
		slug = slug[:50]
	}
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "task"
	}
	return branchPrefix + slug
}

// CommitMessage documents the session on the commit so the timeline is
// recoverable from git history alone.
func CommitMessage(cfg Config, status string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Implement: %s\n\n", cfg.Prompt)
	fmt.Fprintf(&b, "Session: %s\n", cfg.SessionID)
	if s := strings.TrimSpace(status); s != "" {
		fmt.Fprintf(&b, "\nChanges:\n%s\n", s)
	}
	return b.String()
}

// PullRequestBody renders the PR description for gh.
func PullRequestBody(cfg Config, branch, status string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Automated change\n\n")
	fmt.Fprintf(&b, "**Task**: %s\n\n", cfg.Prompt)
	fmt.Fprintf(&b, "**Session**: %s\n", cfg.SessionID)
	fmt.Fprintf(&b, "**Branch**: %s\n\n", branch)
	changed := strings.TrimSpace(status)
	if changed == "" {
		changed = "No file changes detected"
	}
	fmt.Fprintf(&b, "**Files changed**:\n```\n%s\n```\n", changed)
	return b.String()
}
