package database

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/pedrodavics/PGR/internal/models"
	"github.com/pedrodavics/PGR/internal/reporterr"
)

const stepClientDB = "client database"

// Query is a named report query.
type Query struct {
	Name  string
	Title string
	SQL   string
}

// Credentials for client databases.
type Credentials struct {
	User     string
	Password string
	SSLMode  string
}

// QueryRunner runs the report queries against a client's database.
type QueryRunner struct {
	creds   Credentials
	timeout time.Duration
	logger  *zap.Logger
}

// NewQueryRunner creates a QueryRunner. timeout bounds the connection and
// each query.
func NewQueryRunner(creds Credentials, timeout time.Duration, logger *zap.Logger) *QueryRunner {
	return &QueryRunner{creds: creds, timeout: timeout, logger: logger.Named("queries")}
}

// DSN builds the connection string for ep.
func DSN(ep models.Endpoint, creds Credentials) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(creds.User, creds.Password),
		Host:   ep.Address(),
		Path:   "/" + ep.Name,
	}
	if creds.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {creds.SSLMode}}.Encode()
	}
	return u.String()
}

// supported reports whether the database type can be queried.
func supported(dbType string) bool {
	switch strings.ToLower(strings.TrimSpace(dbType)) {
	case "postgres", "postgresql", "pg":
		return true
	}
	return false
}

// Run connects to the client database and runs queries in order. The
// returned error is set only when no connection could be made; individual
// query failures produce a table carrying the error and a command error.
func (r *QueryRunner) Run(ctx context.Context, client models.Client, queries []Query) ([]Table, []error, error) {
	ep := client.DatabaseEndpoint()
	if !supported(ep.Type) {
		return nil, nil, reporterr.Connection(stepClientDB, fmt.Sprintf("unsupported database type %q", ep.Type), nil)
	}
	if ep.Port == 0 {
		ep.Port = 5432
	}

	connCtx, cancel := r.withTimeout(ctx)
	conn, err := pgx.Connect(connCtx, DSN(ep, r.creds))
	cancel()
	if err != nil {
		return nil, nil, reporterr.Connection(stepClientDB, "connect to "+ep.Address(), err)
	}
	defer conn.Close(context.Background())

	tables := make([]Table, 0, len(queries))
	var errs []error
	for _, q := range queries {
		qctx, cancel := r.withTimeout(ctx)
		t, err := queryTable(qctx, conn, q.Name, q.Title, q.SQL)
		cancel()
		if err != nil {
			t.Err = "not available: " + err.Error()
			errs = append(errs, reporterr.New(reporterr.KindCommand, stepClientDB, "query "+q.Name, err))
			r.logger.Warn("query failed", zap.String("query", q.Name), zap.Error(err))
		}
		tables = append(tables, t)
	}
	r.logger.Info("queries finished",
		zap.String("client_id", client.ID),
		zap.Int("queries", len(queries)),
		zap.Int("failed", len(errs)),
		zap.Int("port", ep.Port))
	return tables, errs, nil
}

func (r *QueryRunner) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}
