package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stage-tech/basestar-sub001/internal/store"
)

// ChangesOptions holds flags for the changes command.
type ChangesOptions struct {
	StoreOptions
	After  int64
	Schema string // optional - filter to one schema
	ID     string // optional - filter to one object
}

// ChangesStats holds summary statistics for the listed changes.
type ChangesStats struct {
	Total   int `json:"total"`
	Creates int `json:"creates"`
	Updates int `json:"updates"`
	Deletes int `json:"deletes"`
}

// ChangesResult holds the complete changes output.
type ChangesResult struct {
	After   int64            `json:"after"`
	LastSeq int64            `json:"last_seq"`
	Changes []store.LogEntry `json:"changes"`
	Stats   ChangesStats     `json:"stats"`
}

// NewChangesCommand creates the changes command.
func NewChangesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChangesOptions{StoreOptions: StoreOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "changes",
		Short: "List the change log",
		Long: `List committed writes in sequence order.

Every create, update and delete is logged with its sequence number,
schema, object id and resulting version.

Examples:
  basestar changes --db ./basestar.db
  basestar changes --after 10 --schema Order
  basestar changes --id 0192... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChanges(opts, cmd)
		},
	}

	addStoreFlags(cmd, &opts.StoreOptions)
	cmd.Flags().Int64Var(&opts.After, "after", 0, "only list changes with a greater sequence number")
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "filter by schema")
	cmd.Flags().StringVar(&opts.ID, "id", "", "filter by object id")

	return cmd
}

func runChanges(opts *ChangesOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	ctx := commandContext(cmd)
	st, _, err := openStore(ctx, formatter, &opts.StoreOptions)
	if err != nil {
		return err
	}
	defer closeStore(st)

	entries, err := st.Changes(ctx, opts.After)
	if err != nil {
		return failStore(formatter, err)
	}
	last, err := st.LastSeq(ctx)
	if err != nil {
		return failStore(formatter, err)
	}

	result := ChangesResult{After: opts.After, LastSeq: last, Changes: filterEntries(entries, opts.Schema, opts.ID)}
	result.Stats = changesStats(result.Changes)

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return outputChangesText(formatter, result)
}

func filterEntries(entries []store.LogEntry, schema, id string) []store.LogEntry {
	out := []store.LogEntry{}
	for _, e := range entries {
		if schema != "" && e.Schema != schema {
			continue
		}
		if id != "" && e.ObjectID != id {
			continue
		}
		out = append(out, e)
	}
	return out
}

func changesStats(entries []store.LogEntry) ChangesStats {
	stats := ChangesStats{Total: len(entries)}
	for _, e := range entries {
		switch e.Op {
		case store.OpCreate:
			stats.Creates++
		case store.OpUpdate:
			stats.Updates++
		case store.OpDelete:
			stats.Deletes++
		}
	}
	return stats
}

func outputChangesText(formatter *OutputFormatter, result ChangesResult) error {
	w := formatter.Writer

	if len(result.Changes) == 0 {
		fmt.Fprintf(w, "No changes after seq %d (last seq %d)\n", result.After, result.LastSeq)
		return nil
	}

	fmt.Fprintln(w, "Changes:")
	for _, e := range result.Changes {
		fmt.Fprintf(w, "  [%d] %-6s %s %s v%d\n", e.Seq, e.Op, e.Schema, truncateID(e.ObjectID), e.Version)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Stats: %d change(s) (%d create, %d update, %d delete), last seq %d\n",
		result.Stats.Total, result.Stats.Creates, result.Stats.Updates, result.Stats.Deletes, result.LastSeq)
	return nil
}

// truncateID shortens UUIDs for display; other ids are shown in full.
func truncateID(id string) string {
	if len(id) == 36 {
		return id[:8] + "…"
	}
	return id
}
