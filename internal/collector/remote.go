package collector

import (
	"context"

	"github.com/pedrodavics/PGR/internal/models"
)

// CommandRunner runs a command list over one remote session.
type CommandRunner interface {
	Collect(ctx context.Context, ep models.Endpoint, commands []string) ([]models.RemoteCommandResult, []error, error)
}

// RemoteData is the command output of a report.
type RemoteData struct {
	Results []models.RemoteCommandResult
}

// RemoteCollector runs the configured commands on the client host.
type RemoteCollector struct {
	runner   CommandRunner
	commands []string
}

// NewRemoteCollector creates a remote collector.
func NewRemoteCollector(runner CommandRunner, commands []string) *RemoteCollector {
	return &RemoteCollector{runner: runner, commands: commands}
}

// Name returns the collector identifier.
func (c *RemoteCollector) Name() string { return "remote" }

// Collect runs every command in order on the client's session endpoint.
func (c *RemoteCollector) Collect(ctx context.Context, req Request) (Result, error) {
	results, errs, err := c.runner.Collect(ctx, req.Client.SessionEndpoint(), c.commands)
	if err != nil {
		return Result{}, err
	}
	return Result{Data: RemoteData{Results: results}, Issues: errs}, nil
}

// IsAvailable returns true when commands are configured.
func (c *RemoteCollector) IsAvailable() bool { return c.runner != nil && len(c.commands) > 0 }
