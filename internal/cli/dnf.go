package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stage-tech/basestar-sub001/internal/disjunction"
)

// DNFOptions holds flags for the dnf command.
type DNFOptions struct {
	*RootOptions
	Limit int // maximum number of terms; -1 uses the configured limit
}

// DNFResult is the JSON payload of the dnf command.
type DNFResult struct {
	Expression string   `json:"expression"`
	Terms      []string `json:"terms"`
	Count      int      `json:"count"`
}

// NewDNFCommand creates the dnf command.
func NewDNFCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DNFOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dnf <expression>",
		Short: "Normalise an expression to disjunctive normal form",
		Long: `Rewrite a boolean expression as an OR of AND-terms and print one
term per line, sorted. Duplicate terms are dropped.

The expansion fails once it would exceed --limit terms (default: the
config term_limit). A limit of 0 disables the check.

Examples:
  basestar dnf 'a && (b || c)'
  basestar dnf 'a || b && (c || d)' --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDNF(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", -1, "maximum number of terms (0 disables)")

	return cmd
}

func runDNF(opts *DNFOptions, src string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	e, err := parseExpression(src)
	if err != nil {
		return failCommand(formatter, ExitCommandError, ErrCodeParse, err.Error())
	}

	limit := opts.Limit
	if limit < 0 {
		limit = opts.config().TermLimit
	}

	terms, err := disjunction.NormalizeLimit(e, limit)
	if err != nil {
		if errors.Is(err, disjunction.ErrTooManyTerms) {
			return failCommand(formatter, ExitFailure, ErrCodeEvaluate, fmt.Sprintf("%v (limit %d)", err, limit))
		}
		return failCommand(formatter, ExitFailure, ErrCodeEvaluate, err.Error())
	}

	rendered := terms.Strings()
	formatter.VerboseLog("%d term(s)", len(rendered))

	if formatter.Format == "json" {
		return formatter.Success(DNFResult{Expression: src, Terms: rendered, Count: len(rendered)})
	}
	for _, term := range rendered {
		fmt.Fprintln(formatter.Writer, term)
	}
	return nil
}
