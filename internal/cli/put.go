package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/stage-tech/basestar-sub001/internal/ir"
)

// PutOptions holds flags for the put command.
type PutOptions struct {
	StoreOptions
	ID      string
	Version int64 // expected current version; 0 creates
}

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PutOptions{StoreOptions: StoreOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "put <schema> <json>",
		Short: "Create or update an object",
		Long: `Create or update an object of a registered schema and print the
stored record, including derived fields.

Without --version a new object is created, with --id as its id or a
generated UUIDv7. With --version the object named by --id is replaced,
provided its current version matches. Pass "-" to read the JSON object
from stdin.

Examples:
  basestar put Order '{"status": "open", "total": 42.5}' --db ./basestar.db --catalog ./catalog
  basestar put Order '{"status": "paid", "total": 42.5}' --id 0192... --version 1`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPut(opts, args[0], args[1], cmd)
		},
	}

	addStoreFlags(cmd, &opts.StoreOptions)
	cmd.Flags().StringVar(&opts.ID, "id", "", "object id (required with --version)")
	cmd.Flags().Int64Var(&opts.Version, "version", 0, "expected current version; replaces the object")

	return cmd
}

func runPut(opts *PutOptions, schema, src string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Version < 0 {
		return failCommand(formatter, ExitCommandError, ErrCodeInvalidArg, "--version must be positive")
	}
	if opts.Version > 0 && opts.ID == "" {
		return failCommand(formatter, ExitCommandError, ErrCodeInvalidArg, "--id is required with --version")
	}

	if src == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return failCommand(formatter, ExitCommandError, ErrCodeInvalidArg, fmt.Sprintf("reading stdin: %v", err))
		}
		src = string(data)
	}
	data, err := parseObject(src)
	if err != nil {
		return failCommand(formatter, ExitCommandError, ErrCodeInvalidArg, err.Error())
	}

	ctx := commandContext(cmd)
	st, _, err := openStore(ctx, formatter, &opts.StoreOptions)
	if err != nil {
		return err
	}
	defer closeStore(st)

	var obj ir.Object
	switch {
	case opts.Version > 0:
		obj, err = st.Update(ctx, schema, opts.ID, opts.Version, data)
	case opts.ID != "":
		obj, err = st.CreateWithID(ctx, schema, opts.ID, data)
	default:
		obj, err = st.Create(ctx, schema, data)
	}
	if err != nil {
		return failStore(formatter, err)
	}

	formatter.VerboseLog("Stored %s %s at version %d", obj.Schema, obj.ID, obj.Version)
	return outputRecords(formatter, []ir.Object{obj}, false)
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PutOptions{StoreOptions: StoreOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "delete <schema> <id>",
		Short: "Delete an object",
		Long: `Delete an object, provided its current version matches --version.

Example:
  basestar delete Order 0192... --version 2 --db ./basestar.db`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(opts, args[0], args[1], cmd)
		},
	}

	addStoreFlags(cmd, &opts.StoreOptions)
	cmd.Flags().Int64Var(&opts.Version, "version", 0, "expected current version (required)")
	_ = cmd.MarkFlagRequired("version")

	return cmd
}

func runDelete(opts *PutOptions, schema, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	ctx := commandContext(cmd)
	st, _, err := openStore(ctx, formatter, &opts.StoreOptions)
	if err != nil {
		return err
	}
	defer closeStore(st)

	if err := st.Delete(ctx, schema, id, opts.Version); err != nil {
		return failStore(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]any{"schema": schema, "id": id, "deleted": true})
	}
	fmt.Fprintf(formatter.Writer, "✓ Deleted %s %s\n", schema, id)
	return nil
}

// commandContext returns the command's context, or Background when the
// command is executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
