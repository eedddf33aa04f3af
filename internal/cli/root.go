// Package cli implements the tracelet inspector: a diagnostic viewer
// that replays builtin-call scenarios through the evaluator and prints
// each decision. It is tooling around the library, not a tracing loop.
package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose bool
	Config  string
}

// NewRootCommand creates the tracelet root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "tracelet",
		Short: "Inspect builtin-call evaluation decisions",
		Long: `Tracelet replays a scenario of builtin calls over literal values
through the trace evaluator and prints, per call, how it was decided:
folded to a constant, deferred into the graph, transformed
symbolically, or rejected as unsupported.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "print guard sets with every decision")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "evaluator options YAML")

	cmd.AddCommand(NewInspectCommand(opts))

	return cmd
}
