// Package dispatch accepts a coding-task request, mints its session, records
// the start of its timeline and hands execution to a detached worker without
// waiting for it. The session identifier returned to the caller is the only
// channel back: everything the worker does afterwards surfaces as events.
package dispatch

import (
	"context"
	"fmt"
	"log"

	"tiny-backspace/internal/eventstore"
	"tiny-backspace/internal/session"
)

// TaskSpec describes one coding task to run against a repository.
type TaskSpec struct {
	RepoURL string `json:"repoUrl"`
	Prompt  string `json:"prompt"`
}

// Launcher starts the detached worker for a task. It returns as soon as the
// worker is running; ownership of the worker's lifetime passes entirely to
// the external runtime and is not tracked further here.
type Launcher interface {
	Launch(task TaskSpec, sessionID string) error
}

// StartError reports that the worker could not be launched. It is the only
// failure the caller ever sees from a task after dispatch: a worker that
// starts and later fails reports through its own events instead.
type StartError struct {
	Err error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("worker failed to start: %v", e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// Dispatcher coordinates minting, the start event and the worker handoff.
type Dispatcher struct {
	store    eventstore.Store
	launcher Launcher
	logger   *log.Logger
}

// NewDispatcher returns a Dispatcher writing through the given store and
// starting workers through the given launcher.
func NewDispatcher(store eventstore.Store, launcher Launcher, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{store: store, launcher: launcher, logger: logger}
}

// Dispatch mints a session, records the start event and detaches the worker,
// returning the session id without waiting for the worker to make progress.
// Dispatching the same task twice creates two independent sessions.
func (d *Dispatcher) Dispatch(ctx context.Context, task TaskSpec) (string, error) {
	if task.RepoURL == "" {
		return "", fmt.Errorf("dispatch: repoUrl is required")
	}
	if task.Prompt == "" {
		return "", fmt.Errorf("dispatch: prompt is required")
	}

	id := session.Mint()
	_, err := d.store.Append(ctx, "start",
		fmt.Sprintf("Accepted task for %s: %s", task.RepoURL, task.Prompt), id,
		map[string]interface{}{"repoUrl": task.RepoURL, "prompt": task.Prompt})
	if err != nil {
		return "", err
	}

	if err := d.launcher.Launch(task, id); err != nil {
		d.logger.Println("dispatch launch failed", err)
		if _, appendErr := d.store.Append(ctx, "dispatch_error",
			fmt.Sprintf("Failed to start worker: %v", err), id, nil); appendErr != nil {
			d.logger.Println("dispatch could not record launch failure", appendErr)
		}
		return "", &StartError{Err: err}
	}
	return id, nil
}
