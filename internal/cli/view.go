package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stage-tech/basestar-sub001/internal/ir"
	"github.com/stage-tech/basestar-sub001/internal/store"
	"github.com/stage-tech/basestar-sub001/internal/view"
)

// ViewOptions holds flags for the view command.
type ViewOptions struct {
	StoreOptions
	Verify bool // fold objects in one at a time and compare with the rebuild
}

// ViewRows holds the rows of one view.
type ViewRows struct {
	View     string            `json:"view"`
	Rows     []json.RawMessage `json:"rows"`
	Verified *bool             `json:"verified,omitempty"`
}

// ViewResult is the JSON payload of the view command.
type ViewResult struct {
	Seq   int64      `json:"seq"`
	Views []ViewRows `json:"views"`
}

// NewViewCommand creates the view command.
func NewViewCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ViewOptions{StoreOptions: StoreOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "view [name...]",
		Short: "Compute and print aggregate views",
		Long: `Compute the views declared in the catalog from the objects in the
database and print their rows ordered by group values. Without names
every view is printed.

With --verify each view is also built incrementally, one object at a
time, and compared with the full recomputation. A mismatch fails the
command with exit code 1.

Examples:
  basestar view --db ./basestar.db --catalog ./catalog
  basestar view Revenue --verify --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(opts, args, cmd)
		},
	}

	addStoreFlags(cmd, &opts.StoreOptions)
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "check incremental maintenance against recomputation")

	return cmd
}

func runView(opts *ViewOptions, names []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	ctx := commandContext(cmd)
	st, catalog, err := openStore(ctx, formatter, &opts.StoreOptions)
	if err != nil {
		return err
	}
	defer closeStore(st)

	views, err := view.BuildAll(catalog)
	if err != nil {
		return failCommand(formatter, ExitCommandError, ErrCodeGeneric, err.Error())
	}
	if len(views) == 0 {
		return failCommand(formatter, ExitCommandError, ErrCodeInvalidArg, "no views declared (set --catalog)")
	}

	m := view.NewMaintainer(st, views)
	if err := m.Rebuild(ctx); err != nil {
		return failStore(formatter, err)
	}
	if len(names) == 0 {
		names = m.Views()
	}

	var incremental *view.Maintainer
	if opts.Verify {
		incremental, err = foldObjects(ctx, st, views)
		if err != nil {
			return failStore(formatter, err)
		}
	}

	seq, err := st.LastSeq(ctx)
	if err != nil {
		return failStore(formatter, err)
	}

	result := ViewResult{Seq: seq, Views: make([]ViewRows, 0, len(names))}
	mismatches := 0
	for _, name := range names {
		rows, err := m.Rows(name)
		if err != nil {
			return failCommand(formatter, ExitCommandError, ErrCodeInvalidArg, err.Error())
		}
		vr, err := rawRows(name, rows)
		if err != nil {
			return failCommand(formatter, ExitFailure, ErrCodeGeneric, err.Error())
		}

		if incremental != nil {
			other, err := incremental.Rows(name)
			if err != nil {
				return failCommand(formatter, ExitFailure, ErrCodeGeneric, err.Error())
			}
			otherRows, err := rawRows(name, other)
			if err != nil {
				return failCommand(formatter, ExitFailure, ErrCodeGeneric, err.Error())
			}
			ok := sameRows(vr.Rows, otherRows.Rows)
			vr.Verified = &ok
			if !ok {
				mismatches++
			}
			formatter.VerboseLog("Verified %s: %t", name, ok)
		}
		result.Views = append(result.Views, vr)
	}

	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		outputViewText(formatter, result)
	}

	if mismatches > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d view(s) differ from recomputation", mismatches))
	}
	return nil
}

// foldObjects builds views by applying a create change for every stored
// object, in id order, instead of recomputing them in one pass.
func foldObjects(ctx context.Context, st *store.Store, views []*view.View) (*view.Maintainer, error) {
	m := view.NewMaintainer(st, views)

	seen := make(map[string]bool)
	var seq int64
	for _, v := range views {
		if seen[v.Schema] {
			continue
		}
		seen[v.Schema] = true

		objs, err := st.Scan(ctx, v.Schema)
		if err != nil {
			return nil, err
		}
		for i := range objs {
			seq++
			c := store.Change{Seq: seq, Op: store.OpCreate, Schema: v.Schema, After: &objs[i]}
			if err := m.Apply(ctx, c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func rawRows(name string, rows []ir.IRObject) (ViewRows, error) {
	out := ViewRows{View: name, Rows: make([]json.RawMessage, len(rows))}
	for i, row := range rows {
		raw, err := canonicalJSON(row)
		if err != nil {
			return ViewRows{}, fmt.Errorf("view %s: %w", name, err)
		}
		out.Rows[i] = raw
	}
	return out, nil
}

func sameRows(a, b []json.RawMessage) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func outputViewText(formatter *OutputFormatter, result ViewResult) {
	w := formatter.Writer
	for _, vr := range result.Views {
		status := ""
		if vr.Verified != nil {
			if *vr.Verified {
				status = " ✓ verified"
			} else {
				status = " ✗ differs from recomputation"
			}
		}
		fmt.Fprintf(w, "%s (%d row(s))%s\n", vr.View, len(vr.Rows), status)
		for _, row := range vr.Rows {
			fmt.Fprintf(w, "  %s\n", row)
		}
	}
}
