package collector

import (
	"context"

	"go.uber.org/zap"

	"github.com/pedrodavics/PGR/internal/database"
	"github.com/pedrodavics/PGR/internal/models"
)

// ServerLister returns the server inventory of a client.
type ServerLister interface {
	ServerRows(ctx context.Context, clientName string) (database.Table, error)
}

// QueryRunner runs report queries against a client database.
type QueryRunner interface {
	Run(ctx context.Context, client models.Client, queries []database.Query) ([]database.Table, []error, error)
}

// DatabaseData is the relational input of a report.
type DatabaseData struct {
	Servers *database.Table
	Tables  []database.Table
}

// DatabaseCollector gathers the server inventory and the report queries.
type DatabaseCollector struct {
	servers ServerLister
	runner  QueryRunner
	queries []database.Query
	logger  *zap.Logger
}

// NewDatabaseCollector creates a database collector. servers may be nil.
func NewDatabaseCollector(servers ServerLister, runner QueryRunner, queries []database.Query, logger *zap.Logger) *DatabaseCollector {
	return &DatabaseCollector{servers: servers, runner: runner, queries: queries, logger: logger}
}

// Name returns the collector identifier.
func (c *DatabaseCollector) Name() string { return "database" }

// Collect reads the inventory, then runs the queries on the client database.
func (c *DatabaseCollector) Collect(ctx context.Context, req Request) (Result, error) {
	var data DatabaseData
	var res Result

	if c.servers != nil {
		t, err := c.servers.ServerRows(ctx, req.Client.Name)
		if err != nil {
			res.Issues = append(res.Issues, err)
		} else {
			data.Servers = &t
		}
	}

	if c.runner != nil && len(c.queries) > 0 {
		tables, errs, err := c.runner.Run(ctx, req.Client, c.queries)
		data.Tables = tables
		res.Issues = append(res.Issues, errs...)
		if err != nil {
			res.Data = data
			return res, err
		}
	}

	res.Data = data
	return res, nil
}

// IsAvailable returns true when there is an inventory or a query to run.
func (c *DatabaseCollector) IsAvailable() bool {
	return c.servers != nil || (c.runner != nil && len(c.queries) > 0)
}
