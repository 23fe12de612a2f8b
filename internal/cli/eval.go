package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stage-tech/basestar-sub001/internal/expr"
	"github.com/stage-tech/basestar-sub001/internal/ir"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	Vars     string // JSON object of variables
	VarsFile string // file holding a JSON object of variables
	Bind     bool   // bind and fold instead of evaluating
}

// EvalResult is the JSON payload of the eval command.
type EvalResult struct {
	Expression string `json:"expression"`
	// Result is the value; Bound the folded expression when --bind is set.
	Result any    `json:"result,omitempty"`
	Bound  string `json:"bound,omitempty"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <expression>",
		Short: "Evaluate an expression",
		Long: `Evaluate an expression against a set of variables and print the
result as canonical JSON. Missing variables are undefined.

With --bind the expression is not evaluated: known variables are
substituted, constant subtrees are folded and the resulting expression
is printed.

Examples:
  basestar eval '1 + 2 * 3'
  basestar eval 'total > 100 && status == "open"' --vars '{"total": 150, "status": "open"}'
  basestar eval 'a + b' --vars '{"a": 1}' --bind`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Vars, "vars", "", "variables as a JSON object")
	cmd.Flags().StringVar(&opts.VarsFile, "vars-file", "", "file containing variables as a JSON object")
	cmd.Flags().BoolVar(&opts.Bind, "bind", false, "bind and fold the expression instead of evaluating it")
	cmd.MarkFlagsMutuallyExclusive("vars", "vars-file")

	return cmd
}

func runEval(opts *EvalOptions, src string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	vars, err := loadVars(opts)
	if err != nil {
		return failCommand(formatter, ExitCommandError, ErrCodeInvalidArg, fmt.Sprintf("vars: %v", err))
	}

	e, err := parseExpression(src)
	if err != nil {
		return failCommand(formatter, ExitCommandError, ErrCodeParse, err.Error())
	}
	formatter.VerboseLog("Parsed: %s", expr.Render(e))

	ctx := expr.NewContext(vars)

	if opts.Bind {
		bound, err := expr.Bind(e, ctx, nil)
		if err != nil {
			return failCommand(formatter, ExitFailure, ErrCodeEvaluate, err.Error())
		}
		rendered := expr.Render(bound)
		if formatter.Format == "json" {
			return formatter.Success(EvalResult{Expression: src, Bound: rendered})
		}
		fmt.Fprintln(formatter.Writer, rendered)
		return nil
	}

	value, err := expr.Evaluate(e, ctx)
	if err != nil {
		return failCommand(formatter, ExitFailure, ErrCodeEvaluate, err.Error())
	}

	if formatter.Format == "json" {
		raw, err := canonicalJSON(value)
		if err != nil {
			return failCommand(formatter, ExitFailure, ErrCodeEvaluate, err.Error())
		}
		return formatter.Success(EvalResult{Expression: src, Result: raw})
	}
	fmt.Fprintln(formatter.Writer, formatValue(value))
	return nil
}

func loadVars(opts *EvalOptions) (ir.IRObject, error) {
	src := opts.Vars
	if opts.VarsFile != "" {
		data, err := os.ReadFile(opts.VarsFile)
		if err != nil {
			return nil, err
		}
		src = string(data)
	}
	return parseObject(src)
}
