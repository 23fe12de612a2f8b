package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stage-tech/basestar-sub001/internal/aggregate"
	"github.com/stage-tech/basestar-sub001/internal/compiler"
	"github.com/stage-tech/basestar-sub001/internal/expr"
	"github.com/stage-tech/basestar-sub001/internal/ir"
	"github.com/stage-tech/basestar-sub001/internal/parser"
	"github.com/stage-tech/basestar-sub001/internal/store"
)

// StoreOptions holds flags for commands that open a database.
type StoreOptions struct {
	*RootOptions
	Database string // overrides config database
	Catalog  string // overrides config catalog
}

// addStoreFlags registers --db and --catalog on cmd.
func addStoreFlags(cmd *cobra.Command, opts *StoreOptions) {
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "CUE catalog to register before running (default from config)")
}

func (o *StoreOptions) databasePath() string {
	if o.Database != "" {
		return o.Database
	}
	return o.config().Database
}

func (o *StoreOptions) catalogPath() string {
	if o.Catalog != "" {
		return o.Catalog
	}
	return o.config().Catalog
}

// openStore opens the configured database and registers the schemas of
// the configured catalog, if any. The returned catalog is empty when no
// catalog is configured. Errors are reported through formatter.
func openStore(ctx context.Context, formatter *OutputFormatter, opts *StoreOptions, extra ...store.Option) (*store.Store, *ir.Catalog, error) {
	dbPath := opts.databasePath()
	if dbPath == "" {
		return nil, nil, failCommand(formatter, ExitCommandError, ErrCodeInvalidArg, "database path required (--db or config database)")
	}

	catalog := &ir.Catalog{}
	if path := opts.catalogPath(); path != "" {
		loaded, loadErr := LoadCatalog(path)
		if loadErr != nil {
			return nil, nil, failCommand(formatter, ExitCommandError, loadErr.Code, loadErr.Message)
		}
		if verrs := compiler.Validate(loaded); len(verrs) > 0 {
			return nil, nil, failCommand(formatter, ExitCommandError, verrs[0].Code,
				fmt.Sprintf("invalid catalog: %s", joinValidationErrors(verrs)))
		}
		catalog = loaded
		formatter.VerboseLog("Loaded catalog %s: %d schema(s), %d view(s)", path, len(catalog.Schemas), len(catalog.Views))
	}

	storeOpts := append([]store.Option{store.WithTermLimit(opts.config().TermLimit)}, extra...)
	st, err := store.Open(dbPath, storeOpts...)
	if err != nil {
		return nil, nil, failCommand(formatter, ExitCommandError, ErrCodeStore, err.Error())
	}

	for _, schema := range catalog.Schemas {
		if err := st.Register(ctx, schema); err != nil {
			st.Close()
			return nil, nil, failCommand(formatter, ExitCommandError, ErrCodeStore, err.Error())
		}
	}
	return st, catalog, nil
}

// closeStore closes st, logging rather than returning failures.
func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// storeErrorCode classifies a store error.
func storeErrorCode(err error) string {
	switch {
	case errors.Is(err, store.ErrVersionConflict):
		return ErrCodeConflict
	case errors.Is(err, store.ErrNotFound):
		return ErrCodeNoObject
	case errors.Is(err, store.ErrUnknownSchema):
		return compiler.ErrUnknownSchema
	case errors.Is(err, store.ErrInvalidObject):
		return ErrCodeInvalidArg
	}
	return ErrCodeStore
}

// failStore reports a store operation error. Conflicts and missing
// objects are failures of the request; anything else is a command error.
func failStore(formatter *OutputFormatter, err error) error {
	code := storeErrorCode(err)
	exit := ExitCommandError
	if code == ErrCodeConflict || code == ErrCodeNoObject {
		exit = ExitFailure
	}
	return failCommand(formatter, exit, code, err.Error())
}

func joinValidationErrors(verrs []compiler.ValidationError) string {
	msgs := make([]string, len(verrs))
	for i, verr := range verrs {
		msgs[i] = verr.Error()
	}
	return strings.Join(msgs, "; ")
}

// parseExpression parses src with the aggregate functions recognised.
func parseExpression(src string) (expr.Expr, error) {
	return parser.Parse(src, parser.WithAggregates(aggregate.Names()...))
}

// parseObject parses a JSON object argument.
func parseObject(src string) (ir.IRObject, error) {
	if strings.TrimSpace(src) == "" {
		return ir.IRObject{}, nil
	}
	v, err := ir.UnmarshalIRValue([]byte(src))
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object, got %s", ir.KindOf(v))
	}
	return obj, nil
}
