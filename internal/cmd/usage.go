package cmd

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"

	"github.com/dotcommander/dolphin/internal/present"
)

func useLine(cmd *cobra.Command) string {
	name := cmd.Root().Name()

	if present.IsOutputTTY() && present.StdoutRenderer().ColorProfile() == termenv.TrueColor {
		name = present.MakeGradientText(present.StdoutStyles().AppName, name)
	}

	return fmt.Sprintf(
		"%s %s",
		name,
		present.StdoutStyles().CliArgs.Render("[--model <name>] [--quiet] [--config <file>] [--log-messages <file>] [--tools] 'your question'"),
	)
}

func usageFunc(cmd *cobra.Command) error {
	w := cmd.OutOrStdout()
	if err := writeUsage(w, cmd); err != nil {
		return fmt.Errorf("usage: %w", err)
	}
	return nil
}

func writeUsage(w io.Writer, cmd *cobra.Command) error {
	s := present.StdoutStyles()
	var err error
	printf := func(format string, a ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, a...)
		}
	}

	printf("Usage: %s\n\n", useLine(cmd))
	printf("Options:\n")
	cmd.Flags().VisitAll(func(f *flag.Flag) {
		if f.Hidden {
			return
		}
		name := "--" + f.Name
		if arg, ok := flagArgs[f.Name]; ok {
			name += " " + arg
		}
		if f.Shorthand == "" {
			printf("  %-22s %s\n", s.Flag.Render(name), f.Usage)
			return
		}
		printf(
			"  %s%s %-16s %s\n",
			s.Flag.Render(name),
			s.FlagComma,
			s.Flag.Render("-"+f.Shorthand),
			f.Usage,
		)
	})
	if cmd.HasExample() {
		printf(
			"\nExample:\n  %s\n  %s\n",
			s.Comment.Render("# "+cmd.Example),
			cheapHighlighting(s, examples[cmd.Example]),
		)
	}
	return err
}
