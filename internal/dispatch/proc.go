package dispatch

import (
	"fmt"
	"log"
	"os/exec"
)

// ExecLauncher starts the worker as a detached OS process running
// `<bin> worker --session <id> --repo <url> --prompt <text>`. The process is
// placed in its own session so it survives the dispatcher exiting.
type ExecLauncher struct {
	// Bin is the worker executable; typically the server's own binary,
	// re-entered through its worker subcommand.
	Bin string
	// Args are extra arguments appended after the task arguments, e.g.
	// --redis-addr.
	Args   []string
	Logger *log.Logger
}

// Launch starts the worker process and releases it. A non-nil return means
// the process never started; once Start succeeds the worker owns its own
// fate and reports through the event store.
func (l *ExecLauncher) Launch(task TaskSpec, sessionID string) error {
	if l.Bin == "" {
		return fmt.Errorf("launcher: worker binary not configured")
	}
	args := []string{"worker",
		"--session", sessionID,
		"--repo", task.RepoURL,
		"--prompt", task.Prompt,
	}
	args = append(args, l.Args...)
	cmd := exec.Command(l.Bin, args...)
	detachCommandProcess(cmd)
	if err := cmd.Start(); err != nil {
		return err
	}
	if l.Logger != nil {
		l.Logger.Println("launched worker", cmd.Process.Pid, "for", sessionID)
	}
	// Detach: the OS owns the worker from here on.
	return cmd.Process.Release()
}

var _ Launcher = (*ExecLauncher)(nil)
