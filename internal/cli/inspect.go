package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/funvibe/tracelet/internal/abstract"
	"github.com/funvibe/tracelet/internal/config"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	DumpGraph bool
	NoColor   bool
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect <scenario.yaml>",
		Short: "Replay a scenario and print every decision",
		Example: `  tracelet inspect scenario.yaml
  tracelet inspect --graph --verbose scenario.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, args[0], cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.DumpGraph, "graph", false, "dump the recorded graph after the replay")
	cmd.Flags().BoolVar(&opts.NoColor, "no-color", false, "disable colored output")

	return cmd
}

func runInspect(opts *InspectOptions, path string, out io.Writer) error {
	sc, err := LoadScenario(path)
	if err != nil {
		return err
	}

	cfg := config.Default()
	if opts.Config != "" {
		if cfg, err = config.Load(opts.Config); err != nil {
			return err
		}
	}
	if sc.Options != nil {
		cfg = *sc.Options
	}

	p := newPrinter(out, !opts.NoColor)
	s := newScene(cfg)
	for i, call := range sc.Calls {
		res, err := s.run(call)
		label := callLabel(call)
		switch {
		case err != nil:
			p.failure(i, label, err)
		default:
			p.decision(i, label, res)
			if opts.Verbose {
				p.guards(res)
			}
		}
	}

	if opts.DumpGraph {
		fmt.Fprintln(out)
		fmt.Fprint(out, s.recorder.Dump())
	}
	return nil
}

func callLabel(call CallSpec) string {
	parts := make([]string, 0, len(call.Args)+len(call.Kwargs))
	for _, a := range call.Args {
		parts = append(parts, specLabel(a))
	}
	for name, v := range call.Kwargs {
		parts = append(parts, name+"="+specLabel(v))
	}
	return fmt.Sprintf("%s(%s)", call.Op, strings.Join(parts, ", "))
}

func specLabel(spec ValueSpec) string {
	switch {
	case spec.None:
		return "None"
	case spec.Const != nil:
		return fmt.Sprint(spec.Const)
	case spec.List != nil:
		return "list"
	case spec.Tuple != nil:
		return "tuple"
	case spec.Tensor != nil:
		return "tensor:" + spec.Tensor.Input
	case spec.Dynamic != nil:
		return "dynamic:" + spec.Dynamic.Input
	default:
		return "?"
	}
}

// printer renders decisions, coloring them when stdout is a terminal.
type printer struct {
	out   io.Writer
	color bool
}

func newPrinter(out io.Writer, wantColor bool) *printer {
	color := false
	if f, ok := out.(*os.File); ok && wantColor {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &printer{out: out, color: color}
}

const (
	colGreen = "\033[32m"
	colRed   = "\033[31m"
	colDim   = "\033[2m"
	colReset = "\033[0m"
)

func (p *printer) paint(col, s string) string {
	if !p.color {
		return s
	}
	return col + s + colReset
}

func (p *printer) decision(i int, label string, res abstract.Value) {
	fmt.Fprintf(p.out, "%3d  %s = %s\n", i, label, p.paint(colGreen, res.Inspect()))
}

func (p *printer) failure(i int, label string, err error) {
	fmt.Fprintf(p.out, "%3d  %s = %s\n", i, label, p.paint(colRed, err.Error()))
}

func (p *printer) guards(res abstract.Value) {
	gs := res.Guards().Sorted()
	if len(gs) == 0 {
		return
	}
	for _, g := range gs {
		fmt.Fprintf(p.out, "     %s\n", p.paint(colDim, "guard "+g.String()))
	}
}
