package outwriter

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/querymancer/internal/contract"
	"github.com/huangsam/querymancer/schema"
)

// WriteResultSet prints the rows of a statement, or the affected row count for mutations.
func (ow *OutWriter) WriteResultSet(rs schema.ResultSet, cfg *contract.Config, duration time.Duration) error {
	rows := make([][]string, 0, len(rs.Rows))
	for _, r := range rs.Rows {
		rows = append(rows, formatRow(r))
	}
	header := rs.Columns
	if len(header) == 0 {
		header = []string{"rows_affected"}
		rows = [][]string{{strconv.FormatInt(rs.RowsAffected, 10)}}
	}

	return render(cfg, view{
		json:   rs,
		header: header,
		rows:   rows,
		text: func(w io.Writer) error {
			if len(rs.Columns) == 0 {
				_, err := fmt.Fprintf(w, "%d rows affected in %v\n", rs.RowsAffected, duration)
				return err
			}
			if err := writeTable(w, rs.Columns, rows, alignLeft); err != nil {
				return err
			}
			_, err := fmt.Fprintf(w, "%d rows in %v\n", len(rs.Rows), duration)
			return err
		},
	})
}

// WriteTables prints the table names of the store.
func (ow *OutWriter) WriteTables(tables []string, cfg *contract.Config) error {
	rows := make([][]string, 0, len(tables))
	for _, t := range tables {
		rows = append(rows, []string{t})
	}
	return render(cfg, view{
		json:   tables,
		header: []string{"table"},
		rows:   rows,
		text: func(w io.Writer) error {
			return writeTable(w, []string{"Table"}, rows, alignLeft)
		},
	})
}

// WriteColumns prints the columns of one table.
func (ow *OutWriter) WriteColumns(table string, columns []schema.Column, cfg *contract.Config) error {
	type columnsOutput struct {
		Table   string          `json:"table"`
		Columns []schema.Column `json:"columns"`
	}

	rows := make([][]string, 0, len(columns))
	for _, c := range columns {
		def := ""
		if c.Default != nil {
			def = *c.Default
		}
		rows = append(rows, []string{
			strconv.Itoa(c.Position),
			c.Name,
			c.Type,
			strconv.FormatBool(c.NotNull),
			def,
			strconv.FormatBool(c.PrimaryKey),
		})
	}

	return render(cfg, view{
		json:   columnsOutput{Table: table, Columns: columns},
		header: []string{"position", "name", "type", "not_null", "default", "primary_key"},
		rows:   rows,
		text: func(w io.Writer) error {
			if _, err := fmt.Fprintf(w, "Table: %s\n", table); err != nil {
				return err
			}
			return writeTable(w, []string{"#", "Name", "Type", "Not Null", "Default", "PK"}, rows, alignLeft)
		},
	})
}

// WriteAdvice prints the SQL advisor suggestions for one statement.
func (ow *OutWriter) WriteAdvice(advice schema.Advice, cfg *contract.Config) error {
	rows := make([][]string, 0, len(advice.Optimizations))
	for _, o := range advice.Optimizations {
		rows = append(rows, []string{o.Type, o.Description, o.EstimatedImprovement, o.OriginalQuery, o.OptimizedQuery})
	}
	width := GetMaxTableTextWidth(cfg)

	return render(cfg, view{
		json:   advice,
		header: []string{"type", "description", "estimated_improvement", "original_query", "optimized_query"},
		rows:   rows,
		text: func(w io.Writer) error {
			if _, err := fmt.Fprintf(w, "Statement: %s\n", contract.TruncateText(advice.Statement, width)); err != nil {
				return err
			}
			if len(advice.Optimizations) == 0 {
				if _, err := fmt.Fprintln(w, "No optimizations suggested"); err != nil {
					return err
				}
			} else {
				var table [][]string
				for _, o := range advice.Optimizations {
					table = append(table, []string{o.Type, o.Description, o.EstimatedImprovement, orDash(contract.TruncateText(o.OptimizedQuery, width))})
				}
				if err := writeTable(w, []string{"Type", "Description", "Improvement", "Suggested"}, table, alignLeft); err != nil {
					return err
				}
			}
			for _, hint := range advice.IndexHints {
				if _, err := fmt.Fprintf(w, "Index hint: %s\n", hint); err != nil {
					return err
				}
			}
			if len(advice.Plan) > 0 {
				if _, err := fmt.Fprintf(w, "Plan:\n  %s\n", strings.Join(advice.Plan, "\n  ")); err != nil {
					return err
				}
			}
			return nil
		},
	})
}

// formatRow renders driver values for display. NULL is shown as "NULL".
func formatRow(values []any) []string {
	out := make([]string, len(values))
	for i, v := range values {
		switch val := v.(type) {
		case nil:
			out[i] = "NULL"
		case []byte:
			out[i] = string(val)
		case time.Time:
			out[i] = val.Format(contract.DateTimeFormat)
		default:
			out[i] = fmt.Sprint(val)
		}
	}
	return out
}
