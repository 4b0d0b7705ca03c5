package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/pedrodavics/PGR/internal/models"
	"github.com/pedrodavics/PGR/internal/reporterr"
)

const stepDirectory = "client directory"

// ErrClientNotFound is returned when the roster has no such client.
var ErrClientNotFound = errors.New("client not found")

// Directory reads the client roster. It never writes.
type Directory struct {
	pool        *pgxpool.Pool
	clientTable string
	serverTable string
	logger      *zap.Logger
}

// OpenDirectory connects to the roster database.
func OpenDirectory(ctx context.Context, dsn, clientTable, serverTable string, logger *zap.Logger) (*Directory, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, reporterr.Connection(stepDirectory, "invalid connection string", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, reporterr.Connection(stepDirectory, "database unreachable", err)
	}
	return &Directory{
		pool:        pool,
		clientTable: clientTable,
		serverTable: serverTable,
		logger:      logger.Named("directory"),
	}, nil
}

// Close releases the pool.
func (d *Directory) Close() {
	d.pool.Close()
}

// ClientQuery returns the lookup statement for table.
func ClientQuery(table string) string {
	return fmt.Sprintf(`SELECT idcliente::text AS idcliente, nome, ip,
	COALESCE(portassh, 0)::int AS portassh, COALESCE(tpbanco, '') AS tpbanco,
	COALESCE(nomebanco, '') AS nomebanco, COALESCE(portabanco, 0)::int AS portabanco,
	COALESCE(idhostzbx::text, '') AS idhostzbx
FROM %s WHERE idcliente::text = $1`, pgx.Identifier{table}.Sanitize())
}

// Client looks up one client by id.
func (d *Directory) Client(ctx context.Context, id string) (models.Client, error) {
	rows, err := d.pool.Query(ctx, ClientQuery(d.clientTable), id)
	if err != nil {
		return models.Client{}, reporterr.Connection(stepDirectory, "client lookup failed", err)
	}
	c, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[models.Client])
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Client{}, fmt.Errorf("client %s: %w", id, ErrClientNotFound)
	}
	if err != nil {
		return models.Client{}, reporterr.Connection(stepDirectory, "client lookup failed", err)
	}
	return c, nil
}

// ClientSummary is one roster entry.
type ClientSummary struct {
	ID   string `db:"idcliente"`
	Name string `db:"nome"`
}

// Clients lists the roster ordered by name.
func (d *Directory) Clients(ctx context.Context) ([]ClientSummary, error) {
	sql := fmt.Sprintf("SELECT idcliente::text AS idcliente, nome FROM %s ORDER BY nome",
		pgx.Identifier{d.clientTable}.Sanitize())
	rows, err := d.pool.Query(ctx, sql)
	if err != nil {
		return nil, reporterr.Connection(stepDirectory, "client listing failed", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[ClientSummary])
	if err != nil {
		return nil, reporterr.Connection(stepDirectory, "client listing failed", err)
	}
	return out, nil
}

// ServerRows returns the server inventory rows recorded for a client name.
func (d *Directory) ServerRows(ctx context.Context, clientName string) (Table, error) {
	if d.serverTable == "" {
		return Table{Name: "servers"}, nil
	}
	sql := fmt.Sprintf("SELECT * FROM %s WHERE nome = $1", pgx.Identifier{d.serverTable}.Sanitize())
	t, err := queryTable(ctx, d.pool, "servers", "Servers", sql, clientName)
	if err != nil {
		return t, reporterr.New(reporterr.KindCommand, stepDirectory, "server inventory query failed", err)
	}
	return t, nil
}
