// Package worker runs one dispatched coding task to completion: clone the
// repository, let the coding agent edit it on a task branch, commit, push
// and open a pull request. Every notable step is reported as an event under
// the task's session; the terminal "success" or "error" event is the only
// completion signal anyone ever gets.
package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"tiny-backspace/internal/eventstore"
)

// Config describes one task handed to a worker by the dispatcher.
type Config struct {
	SessionID string
	RepoURL   string
	Prompt    string
	// BaseBranch is the pull request target; defaults to main.
	BaseBranch string
}

type execFunc func(ctx context.Context, dir, name string, args ...string) (string, error)

// Runner executes the task pipeline against a store.
type Runner struct {
	store  eventstore.Store
	agent  Agent
	logger *log.Logger
	exec   execFunc
}

// NewRunner returns a Runner reporting through the given store and editing
// through the given agent.
func NewRunner(store eventstore.Store, agent Agent, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{store: store, agent: agent, logger: logger, exec: runCommand}
}

func runCommand(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// Run executes the full pipeline. Failures after a successful dispatch are
// the worker's own to report: each one becomes a terminal "error" event
// before the error is returned to the process exit path.
func (r *Runner) Run(ctx context.Context, cfg Config) error {
	if cfg.BaseBranch == "" {
		cfg.BaseBranch = "main"
	}

	r.emit(ctx, cfg, "status", "Setting up workspace", nil)
	dir, err := os.MkdirTemp("", "backspace-*")
	if err != nil {
		return r.fail(ctx, cfg, "workspace setup failed", err)
	}
	defer os.RemoveAll(dir)
	repoPath := filepath.Join(dir, "repo")

	r.emit(ctx, cfg, "git_clone", "Cloning repository: "+cfg.RepoURL, nil)
	if out, err := r.exec(ctx, "", "git", "clone", cfg.RepoURL, repoPath); err != nil {
		return r.fail(ctx, cfg, "clone failed: "+strings.TrimSpace(out), err)
	}
	r.emit(ctx, cfg, "repo_ready", "Repository cloned and configured", nil)

	branch := BranchName(cfg.Prompt)
	if out, err := r.exec(ctx, repoPath, "git", "checkout", "-b", branch); err != nil {
		return r.fail(ctx, cfg, "branch creation failed: "+strings.TrimSpace(out), err)
	}
	r.emit(ctx, cfg, "branch_created", "Created branch: "+branch, map[string]interface{}{"branch": branch})

	r.emit(ctx, cfg, "claude_start", "Starting coding agent: "+cfg.Prompt, nil)
	report := func(typ, message string) {
		r.emit(ctx, cfg, typ, message, nil)
	}
	if err := r.agent.Run(ctx, repoPath, cfg.Prompt, report); err != nil {
		return r.fail(ctx, cfg, "coding agent failed", err)
	}

	status, err := r.exec(ctx, repoPath, "git", "status", "--porcelain")
	if err != nil {
		return r.fail(ctx, cfg, "status check failed", err)
	}
	message := CommitMessage(cfg, status)
	if strings.TrimSpace(status) != "" {
		changed := len(strings.Split(strings.TrimSpace(status), "\n"))
		r.emit(ctx, cfg, "changes_found", fmt.Sprintf("Found %d changed files", changed), nil)
		if out, err := r.exec(ctx, repoPath, "git", "add", "-A"); err != nil {
			return r.fail(ctx, cfg, "staging failed: "+strings.TrimSpace(out), err)
		}
		if out, err := r.exec(ctx, repoPath, "git", "commit", "-m", message); err != nil {
			return r.fail(ctx, cfg, "commit failed: "+strings.TrimSpace(out), err)
		}
		r.emit(ctx, cfg, "git_command", "Committed changes on "+branch, nil)
	} else {
		r.emit(ctx, cfg, "no_changes", "No changes detected; recording empty commit", nil)
		if out, err := r.exec(ctx, repoPath, "git", "commit", "--allow-empty", "-m", message); err != nil {
			return r.fail(ctx, cfg, "commit failed: "+strings.TrimSpace(out), err)
		}
	}

	if out, err := r.exec(ctx, repoPath, "git", "push", "origin", branch); err != nil {
		return r.fail(ctx, cfg, "push failed: "+strings.TrimSpace(out), err)
	}
	r.emit(ctx, cfg, "git_command", "Pushed branch "+branch, nil)

	prURL, err := r.exec(ctx, repoPath, "gh", "pr", "create",
		"--title", "Backspace: "+cfg.Prompt,
		"--body", PullRequestBody(cfg, branch, status),
		"--base", cfg.BaseBranch)
	if err != nil {
		return r.fail(ctx, cfg, "pull request creation failed: "+strings.TrimSpace(prURL), err)
	}
	prURL = strings.TrimSpace(prURL)
	r.emit(ctx, cfg, "pr_created", "Opened pull request: "+prURL, map[string]interface{}{"prUrl": prURL})
	r.emit(ctx, cfg, "success", "Task completed: "+prURL, map[string]interface{}{
		"prUrl":  prURL,
		"branch": branch,
	})
	return nil
}

// emit reports one step. Telemetry loss must never abort the task, so append
// failures are logged and swallowed here.
func (r *Runner) emit(ctx context.Context, cfg Config, typ, message string, data map[string]interface{}) {
	if _, err := r.store.Append(ctx, typ, message, cfg.SessionID, data); err != nil {
		r.logger.Println("worker dropping event", typ, err)
	}
}

func (r *Runner) fail(ctx context.Context, cfg Config, message string, err error) error {
	r.emit(ctx, cfg, "error", fmt.Sprintf("%s: %v", message, err), nil)
	return fmt.Errorf("%s: %w", message, err)
}
