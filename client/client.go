package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/nodefeed/nodefeed/types"
)

// Client executes one query shape: select columns from a view restricted by
// a where clause (which may carry a trailing order by). Everything the
// traversal engine asks of the backing store goes through this surface.
type Client interface {
	Execute(ctx context.Context, query, view string, columns []string) (types.RecordSet, error)
	Close() error
}

// SQLClient is a Client over a database/sql connection via sqlx. Results
// are fully materialized; the engine's queries are bounded so row counts
// stay small.
type SQLClient struct {
	db *sqlx.DB
}

// NewSQLClient wraps an open connection.
func NewSQLClient(db *sqlx.DB) *SQLClient {
	return &SQLClient{db: db}
}

func (c *SQLClient) Execute(ctx context.Context, query, view string, columns []string) (types.RecordSet, error) {
	statement := fmt.Sprintf("select %s from %s where %s", strings.Join(columns, ","), view, query)

	rows, err := c.db.QueryContext(ctx, statement)
	if err != nil {
		return nil, &types.QueryExecutionError{View: view, Err: err}
	}
	defer rows.Close()

	resultColumns, err := rows.Columns()
	if err != nil {
		return nil, &types.QueryExecutionError{View: view, Err: err}
	}

	recordSet := types.NewMemoryRecordSet(resultColumns)
	for rows.Next() {
		scanValues := make([]any, len(resultColumns))
		for i := range scanValues {
			scanValues[i] = new(any)
		}
		if err := rows.Scan(scanValues...); err != nil {
			return nil, &types.QueryExecutionError{View: view, Err: err}
		}
		rowValues := make([]any, len(resultColumns))
		for i := range scanValues {
			rowValues[i] = *(scanValues[i].(*any))
		}
		recordSet.Append(rowValues...)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.QueryExecutionError{View: view, Err: err}
	}
	return recordSet, nil
}

func (c *SQLClient) Close() error {
	return c.db.Close()
}
