package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the qtgen command. The outcome of the run is
// stored in *result.
func NewRootCommand(env Environment, stdout, stderr io.Writer, result *CLIResult) *cobra.Command {
	var v flagValues
	cmd := &cobra.Command{
		Use:   "qtgen --inD=<dir> --outD=<dir> [flags]",
		Short: "Regenerate stale Qt moc, uic and rcc outputs and remove orphans",
		Long: `qtgen walks an input tree, runs moc on headers declaring Q_OBJECT, uic on .ui
forms and rcc on .qrc manifests whose outputs are missing or older than their
inputs, then deletes files in the output directory that no input produces.`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 0 {
				return invalidInvocationf("unexpected positional arguments: %q", strings.Join(args, " "))
			}
			return nil
		},
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			inv, err := resolveInvocation(cmd, &v, env)
			if err != nil {
				result.ExitCode = ExitCode(err)
				return err
			}
			res, err := Execute(cmd.Context(), inv, stdout, stderr)
			*result = res
			return err
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return invalidInvocationf("%v", err)
	})
	bindFlags(cmd, &v)
	return cmd
}

// Run is a high-level CLI entrypoint suitable for black-box tests.
// It accepts the argument slice (excluding argv[0]) and returns the semantic
// exit code plus any error. Fatal errors are printed to stderr together
// with the usage text.
func Run(ctx context.Context, args []string, env Environment, stdout, stderr io.Writer) (CLIResult, error) {
	result := CLIResult{ExitCode: ExitSuccess}
	cmd := NewRootCommand(env, stdout, stderr, &result)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if result.ExitCode == ExitSuccess {
			result.ExitCode = ExitCode(err)
		}
		fmt.Fprintln(stderr, cmd.UsageString())
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return result, err
	}
	return result, nil
}
