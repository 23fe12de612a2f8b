package cli

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stage-tech/basestar-sub001/internal/compiler"
	"github.com/stage-tech/basestar-sub001/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	SchemaCount     int
	ViewCount       int
	TotalFields     int
	TotalAggregates int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <catalog>",
		Short: "Compile a CUE catalog to canonical IR",
		Long: `Compile CUE object schemas and view specs to canonical IR.

The catalog is a single .cue file or a directory holding one CUE
package. The compiled catalog is validated; any error fails the
command.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	catalog, loadErr := LoadCatalog(path)
	if loadErr != nil {
		return outputCompileErrors(formatter, []*LoadError{loadErr})
	}

	for _, schema := range catalog.Schemas {
		formatter.VerboseLog("Compiled schema: %s", schema.Name)
	}
	for _, view := range catalog.Views {
		formatter.VerboseLog("Compiled view: %s", view.Name)
	}

	if verrs := compiler.Validate(catalog); len(verrs) > 0 {
		errs := make([]*LoadError, len(verrs))
		for i, verr := range verrs {
			errs[i] = &LoadError{Code: verr.Code, Message: fmt.Sprintf("%s: %s", verr.Field, verr.Message)}
		}
		return outputCompileErrors(formatter, errs)
	}

	stats := calculateStats(catalog)

	if opts.Output != "" {
		if err := writeIRToFile(catalog, opts.Output); err != nil {
			return outputCompileErrors(formatter, []*LoadError{{Code: ErrCodeWriteFailed, Message: fmt.Sprintf("writing output file: %v", err)}})
		}
	}

	return outputCompileSuccess(formatter, catalog, stats, opts.Output)
}

// calculateStats computes summary statistics for a catalog.
func calculateStats(catalog *ir.Catalog) CompilationStats {
	stats := CompilationStats{
		SchemaCount: len(catalog.Schemas),
		ViewCount:   len(catalog.Views),
	}
	for _, schema := range catalog.Schemas {
		stats.TotalFields += len(schema.Fields)
	}
	for _, view := range catalog.Views {
		stats.TotalAggregates += len(view.Aggregates)
	}
	return stats
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, catalog *ir.Catalog, stats CompilationStats, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(catalog)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d schema(s), %d view(s)\n\n", stats.SchemaCount, stats.ViewCount)

	if len(catalog.Schemas) > 0 {
		fmt.Fprintln(w, "Schemas:")
		for _, schema := range catalog.Schemas {
			fmt.Fprintf(w, "  %s: %d field(s), %d indexed, %d derived\n",
				schema.Name, len(schema.Fields), len(schema.Indexed), len(schema.Derived))
		}
		fmt.Fprintln(w)
	}

	if len(catalog.Views) > 0 {
		fmt.Fprintln(w, "Views:")
		for _, view := range catalog.Views {
			columns := slices.Sorted(maps.Keys(view.Aggregates))
			fmt.Fprintf(w, "  %s: %s → %s\n", view.Name, view.Schema, strings.Join(columns, ", "))
		}
		fmt.Fprintln(w)
	}

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote canonical IR to %s\n", outputFile)
	}

	return nil
}

// outputCompileErrors outputs compilation errors. Compilation errors are
// command-level errors (exit code 2).
func outputCompileErrors(formatter *OutputFormatter, errs []*LoadError) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			cliErrors[i] = CLIError{Code: err.Code, Message: err.Message}
		}

		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors, // Include all errors in data
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: compilation failed with %d error(s)", errs[0].Code, len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n", err.Pos.Filename(), err.Pos.Line(), err.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	return NewExitError(ExitCommandError, fmt.Sprintf("%s: compilation failed with %d error(s)", errs[0].Code, len(errs)))
}

// writeIRToFile writes the catalog to a file as indented JSON.
func writeIRToFile(catalog *ir.Catalog, filename string) error {
	data, err := json.MarshalIndent(catalog, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
