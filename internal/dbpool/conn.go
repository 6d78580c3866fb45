package dbpool

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"time"

	"github.com/huangsam/querymancer/internal/contract"
	"github.com/huangsam/querymancer/schema"
)

// Conn is a dedicated store connection on loan from a Pool.
// A Conn is never handed to two callers at once.
type Conn struct {
	conn      *sql.Conn
	id        int
	createdAt time.Time
	gen       uint64
	inUse     bool
	broken    bool
}

// ID returns the pool-local identifier of the connection.
func (c *Conn) ID() int { return c.id }

// CreatedAt returns when the connection was opened.
func (c *Conn) CreatedAt() time.Time { return c.createdAt }

// Query runs a row-returning statement and collects every row.
// Driver failures come back as *contract.StoreError.
func (c *Conn) Query(ctx context.Context, statement string, args ...any) (schema.ResultSet, error) {
	rows, err := c.conn.QueryContext(ctx, statement, args...)
	if err != nil {
		return schema.ResultSet{}, c.storeError(statement, err)
	}
	defer func() { _ = rows.Close() }()

	rs, err := scanResultSet(rows)
	if err != nil {
		return schema.ResultSet{}, c.storeError(statement, err)
	}
	return rs, nil
}

// Exec runs a statement that returns no rows.
func (c *Conn) Exec(ctx context.Context, statement string, args ...any) (schema.ResultSet, error) {
	res, err := c.conn.ExecContext(ctx, statement, args...)
	if err != nil {
		return schema.ResultSet{}, c.storeError(statement, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		// Some drivers do not report affected rows for DDL.
		affected = 0
	}
	return schema.ResultSet{Columns: []string{}, Rows: [][]any{}, RowsAffected: affected}, nil
}

func (c *Conn) storeError(statement string, err error) error {
	if errors.Is(err, driver.ErrBadConn) {
		c.broken = true
	}
	return &contract.StoreError{Statement: statement, Err: err}
}

// scanResultSet reads all rows into memory, turning byte slices into strings.
func scanResultSet(rows *sql.Rows) (schema.ResultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return schema.ResultSet{}, err
	}
	rs := schema.ResultSet{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return schema.ResultSet{}, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		rs.Rows = append(rs.Rows, vals)
	}
	return rs, rows.Err()
}
