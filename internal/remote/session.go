// Package remote runs shell commands on a client host over one shared
// session and captures their output in input order.
package remote

import (
	"context"

	"github.com/pedrodavics/PGR/internal/models"
)

// Session is an established remote session.
type Session interface {
	// Run executes command and returns its stdout and stderr. A non-nil
	// error with output means the command ran and failed.
	Run(ctx context.Context, command string) (stdout, stderr []byte, err error)
	// Concurrent reports whether Run may be called from several goroutines.
	Concurrent() bool
	Close() error
}

// Dialer opens sessions.
type Dialer interface {
	Dial(ctx context.Context, ep models.Endpoint) (Session, error)
}
