package remote

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pedrodavics/PGR/internal/models"
	"github.com/pedrodavics/PGR/internal/reporterr"
)

const step = "remote host"

// DefaultWorkers is the command pool width.
const DefaultWorkers = 10

// Collector runs a command list over one session per call.
type Collector struct {
	dialer  Dialer
	workers int
	timeout time.Duration
	benign  []BenignPattern
	logger  *zap.Logger
}

// NewCollector creates a Collector. timeout bounds each command; zero
// disables it.
func NewCollector(dialer Dialer, workers int, timeout time.Duration, benign []BenignPattern, logger *zap.Logger) *Collector {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Collector{
		dialer:  dialer,
		workers: workers,
		timeout: timeout,
		benign:  benign,
		logger:  logger.Named("remote"),
	}
}

// Collect opens one session to ep and runs every command on it. Results
// are in input order. A failing command is captured as text and reported
// in the returned command errors. If the session cannot be established the
// returned error is a connection error and no results are produced.
func (c *Collector) Collect(ctx context.Context, ep models.Endpoint, commands []string) ([]models.RemoteCommandResult, []error, error) {
	sess, err := c.dialer.Dial(ctx, ep)
	if err != nil {
		return nil, nil, reporterr.Connection(step, fmt.Sprintf("session to %s failed", ep.Address()), err)
	}
	defer sess.Close()

	workers := c.workers
	if !sess.Concurrent() {
		workers = 1
	}
	c.logger.Info("session established",
		zap.String("address", ep.Address()),
		zap.Int("commands", len(commands)),
		zap.Int("workers", workers))

	results := make([]models.RemoteCommandResult, len(commands))
	errs := make([]error, len(commands))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, cmd := range commands {
		g.Go(func() error {
			results[i], errs[i] = c.run(ctx, sess, cmd)
			return nil
		})
	}
	_ = g.Wait()

	var cmdErrs []error
	for _, err := range errs {
		if err != nil {
			cmdErrs = append(cmdErrs, err)
		}
	}
	return results, cmdErrs, nil
}

func (c *Collector) run(ctx context.Context, sess Session, command string) (models.RemoteCommandResult, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	stdout, stderr, err := sess.Run(ctx, command)
	out := strings.TrimSpace(string(stdout))
	errText := strings.TrimSpace(string(stderr))
	res := models.RemoteCommandResult{Command: command, Output: out}

	if err == nil {
		if out == "" {
			res.Output = errText
		}
		return res, nil
	}

	if benign(c.benign, command, errText) {
		c.logger.Debug("ignoring benign command error", zap.String("command", command), zap.String("stderr", errText))
		return res, nil
	}

	res.Failed = true
	res.Output = joinNonEmpty(out, errText, err.Error())
	c.logger.Warn("command failed", zap.String("command", command), zap.Error(err))
	return res, reporterr.New(reporterr.KindCommand, step, command, err)
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
