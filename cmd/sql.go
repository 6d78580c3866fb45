package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

// sqlCmd executes one statement through the caches and the pool.
var sqlCmd = &cobra.Command{
	Use:   "sql <statement>",
	Short: "Execute a SQL statement through the result cache",
	Long: `Run a statement on a pooled connection. Read statements are served from the
result cache while fresh; any other statement clears cached results.

Examples:
  querymancer sql "SELECT name FROM customers WHERE region = 'west'"
  querymancer sql --db-backend postgresql --db-connect "host=localhost dbname=shop" "SELECT 1"`,
	Args:    cobra.MinimumNArgs(1),
	PreRunE: engineSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		rs, elapsed, err := eng.Query(rootCtx, input.Query)
		if err != nil {
			return err
		}
		return ow.WriteResultSet(rs, cfg, elapsed)
	},
}

// tablesCmd lists user tables.
var tablesCmd = &cobra.Command{
	Use:     "tables",
	Short:   "List the tables of the connected database",
	Args:    cobra.NoArgs,
	PreRunE: engineSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		exec, err := eng.Executor()
		if err != nil {
			return err
		}
		tables, err := exec.AllTables(rootCtx)
		if err != nil {
			return err
		}
		return ow.WriteTables(tables, cfg)
	},
}

// describeCmd shows the columns of a table.
var describeCmd = &cobra.Command{
	Use:     "describe <table>",
	Short:   "Describe the columns of a table",
	Args:    cobra.ExactArgs(1),
	PreRunE: engineSetup,
	RunE: func(_ *cobra.Command, args []string) error {
		exec, err := eng.Executor()
		if err != nil {
			return err
		}
		table := strings.TrimSpace(args[0])
		columns, err := exec.TableSchema(rootCtx, table)
		if err != nil {
			return err
		}
		return ow.WriteColumns(table, columns, cfg)
	},
}

// adviseCmd suggests rewrites and indexes for a statement.
var adviseCmd = &cobra.Command{
	Use:   "advise <statement>",
	Short: "Suggest rewrites and indexes for a SQL statement",
	Long: `Check a statement against common performance pitfalls, look up the size of the
tables it reads and propose indexes for its filter and sort columns.

Examples:
  querymancer advise "SELECT * FROM orders WHERE customer_id = 7 ORDER BY created_at"
  querymancer advise --explain "SELECT * FROM orders"`,
	Args:    cobra.MinimumNArgs(1),
	PreRunE: engineSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		advisor, err := eng.Advisor()
		if err != nil {
			return err
		}
		advice, err := advisor.Advise(rootCtx, input.Query, cfg.Explain)
		if err != nil {
			return err
		}
		return ow.WriteAdvice(advice, cfg)
	},
}
