package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stage-tech/basestar-sub001/internal/ir"
)

// QueryResult is the JSON payload of the query command.
type QueryResult struct {
	Schema  string            `json:"schema"`
	Where   string            `json:"where"`
	Count   int               `json:"count"`
	Records []json.RawMessage `json:"records"`
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get <schema> <id>",
		Short: "Read one object",
		Long: `Print the stored record of an object, including its id, schema,
version and derived fields.

Example:
  basestar get Order 0192... --db ./basestar.db`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(opts, args[0], args[1], cmd)
		},
	}

	addStoreFlags(cmd, opts)

	return cmd
}

func runGet(opts *StoreOptions, schema, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	ctx := commandContext(cmd)
	st, _, err := openStore(ctx, formatter, opts)
	if err != nil {
		return err
	}
	defer closeStore(st)

	obj, err := st.Get(ctx, schema, id)
	if err != nil {
		return failStore(formatter, err)
	}
	return outputRecords(formatter, []ir.Object{obj}, false)
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <schema> [where]",
		Short: "Filter objects with an expression",
		Long: `Print every object of a schema for which the where expression is
true, ordered by id. The expression is normalised and the parts over
indexed fields are pushed down to SQL; the rest is evaluated against
each candidate record. Without a where expression every object is
returned.

Examples:
  basestar query Order 'status == "open" && total > 100' --db ./basestar.db
  basestar query Order 'large || customer == "ann"' --format json`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			where := "true"
			if len(args) == 2 {
				where = args[1]
			}
			return runQuery(opts, args[0], where, cmd)
		},
	}

	addStoreFlags(cmd, opts)

	return cmd
}

func runQuery(opts *StoreOptions, schema, where string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	e, err := parseExpression(where)
	if err != nil {
		return failCommand(formatter, ExitCommandError, ErrCodeParse, err.Error())
	}

	ctx := commandContext(cmd)
	st, _, err := openStore(ctx, formatter, opts)
	if err != nil {
		return err
	}
	defer closeStore(st)

	objs, err := st.Filter(ctx, schema, e)
	if err != nil {
		return failStore(formatter, err)
	}
	formatter.VerboseLog("%d object(s) matched", len(objs))

	if formatter.Format == "json" {
		records, err := rawRecords(objs)
		if err != nil {
			return failCommand(formatter, ExitFailure, ErrCodeGeneric, err.Error())
		}
		return formatter.Success(QueryResult{Schema: schema, Where: where, Count: len(objs), Records: records})
	}
	return outputRecords(formatter, objs, true)
}

// outputRecords prints records as canonical JSON, one per line in text
// mode. A single record is the JSON payload itself unless list is set.
func outputRecords(formatter *OutputFormatter, objs []ir.Object, list bool) error {
	records, err := rawRecords(objs)
	if err != nil {
		return failCommand(formatter, ExitFailure, ErrCodeGeneric, err.Error())
	}

	if formatter.Format == "json" {
		if !list && len(records) == 1 {
			return formatter.Success(records[0])
		}
		return formatter.Success(records)
	}

	for _, rec := range records {
		fmt.Fprintln(formatter.Writer, string(rec))
	}
	if list {
		fmt.Fprintf(formatter.Writer, "(%d record(s))\n", len(records))
	}
	return nil
}

func rawRecords(objs []ir.Object) ([]json.RawMessage, error) {
	records := make([]json.RawMessage, len(objs))
	for i, obj := range objs {
		raw, err := canonicalJSON(obj.Record())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", obj.ID, err)
		}
		records[i] = raw
	}
	return records, nil
}
