package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
)

// Agent is the boundary to the external coding agent. It edits the checkout
// in place and narrates its progress through report; whether the edits are
// any good is its business, not ours.
type Agent interface {
	Run(ctx context.Context, repoDir, prompt string, report func(typ, message string)) error
}

// CommandAgent shells out to a configured agent command inside the checkout.
// The prompt is passed in the BACKSPACE_PROMPT environment variable and each
// stdout line becomes a "claude_response" event.
type CommandAgent struct {
	Command string
}

func (a *CommandAgent) Run(ctx context.Context, repoDir, prompt string, report func(typ, message string)) error {
	if a.Command == "" {
		return fmt.Errorf("agent command not configured")
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", a.Command)
	cmd.Dir = repoDir
	cmd.Env = append(os.Environ(), "BACKSPACE_PROMPT="+prompt)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return err
	}
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			report("claude_response", line)
		}
	}
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("agent command: %w", err)
	}
	return scanner.Err()
}

var _ Agent = (*CommandAgent)(nil)
