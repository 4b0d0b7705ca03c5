// Package database reads the client roster and runs report queries against
// client databases.
package database

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// Table is a query result rendered as text cells. A failed query keeps
// its Name and Title and carries the error text in Err.
type Table struct {
	Name    string     `json:"name"`
	Title   string     `json:"title"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Err     string     `json:"error,omitempty"`
}

// querier is satisfied by *pgx.Conn and *pgxpool.Pool.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// queryTable runs sql and collects every row as text.
func queryTable(ctx context.Context, q querier, name, title, sql string, args ...any) (Table, error) {
	t := Table{Name: name, Title: title}
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return t, err
	}
	defer rows.Close()

	for _, fd := range rows.FieldDescriptions() {
		t.Columns = append(t.Columns, fd.Name)
	}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return t, err
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = FormatValue(v)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, rows.Err()
}

// FormatValue renders a driver value as a table cell.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02 15:04:05")
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", x), "0"), ".")
	case driver.Valuer:
		dv, err := x.Value()
		if err != nil {
			return fmt.Sprint(v)
		}
		return FormatValue(dv)
	}
	return fmt.Sprint(v)
}
