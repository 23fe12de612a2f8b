package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stage-tech/basestar-sub001/internal/store"
	"github.com/stage-tech/basestar-sub001/internal/view"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	StoreOptions
	Interval time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{StoreOptions: StoreOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the change log and reprint views",
		Long: `Compute the catalog's views, print them, then poll the database's
change log and reprint them after every batch of writes made by other
processes. Runs until interrupted.

Example:
  basestar watch --db ./basestar.db --catalog ./catalog --interval 500ms`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	addStoreFlags(cmd, &opts.StoreOptions)
	cmd.Flags().DurationVar(&opts.Interval, "interval", time.Second, "change log poll interval")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Interval <= 0 {
		return failCommand(formatter, ExitCommandError, ErrCodeInvalidArg, "--interval must be positive")
	}

	// Use command's context if available (for testing), otherwise create one
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

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

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	after, err := st.LastSeq(ctx)
	if err != nil {
		return failStore(formatter, err)
	}
	if err := refreshViews(ctx, formatter, m, after); err != nil {
		return err
	}

	slog.Info("watching change log", "db", opts.databasePath(), "seq", after, "interval", opts.Interval)
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("watch stopped")
			return nil
		case <-ticker.C:
		}

		entries, err := st.Changes(ctx, after)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return failStore(formatter, err)
		}
		if len(entries) == 0 {
			continue
		}
		logEntries(entries)
		after = entries[len(entries)-1].Seq

		if err := refreshViews(ctx, formatter, m, after); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// refreshViews recomputes every view and prints it. Writes from other
// processes carry no before images, so views are rebuilt rather than
// folded.
func refreshViews(ctx context.Context, formatter *OutputFormatter, m *view.Maintainer, seq int64) error {
	if err := m.Rebuild(ctx); err != nil {
		return failStore(formatter, err)
	}

	result := ViewResult{Seq: seq}
	for _, name := range m.Views() {
		rows, err := m.Rows(name)
		if err != nil {
			return failCommand(formatter, ExitFailure, ErrCodeGeneric, err.Error())
		}
		vr, err := rawRows(name, rows)
		if err != nil {
			return failCommand(formatter, ExitFailure, ErrCodeGeneric, err.Error())
		}
		result.Views = append(result.Views, vr)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "== seq %d ==\n", seq)
	outputViewText(formatter, result)
	return nil
}

func logEntries(entries []store.LogEntry) {
	for _, e := range entries {
		slog.Debug("change", "seq", e.Seq, "op", e.Op, "schema", e.Schema, "id", e.ObjectID, "version", e.Version)
	}
}
