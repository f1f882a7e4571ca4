package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/x/exp/ordered"
	"github.com/spf13/cobra"

	"github.com/dotcommander/dolphin/internal/agent"
	"github.com/dotcommander/dolphin/internal/config"
	"github.com/dotcommander/dolphin/internal/errs"
	"github.com/dotcommander/dolphin/internal/present"
)

const appName = "dolphin-mcp-cli"

type runtime struct {
	build  BuildInfo
	stdout io.Writer
	stderr io.Writer

	flags config.Runtime
	model string
	quiet bool

	// agentOpts are appended to the options every agent.Service is built with.
	agentOpts []agent.Option
}

// NewRootCmd constructs the Cobra root command writing to the process
// standard streams.
func NewRootCmd(build BuildInfo) *cobra.Command {
	return newRootCmd(&runtime{
		build:  normalizeBuildInfo(build),
		stdout: os.Stdout,
		stderr: os.Stderr,
	})
}

func newRootCmd(rt *runtime) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           appName,
		Short:         "Ask a language model, with tools from MCP servers.",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		Example:       randomExample(),
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.flags.ShowMan {
				return writeManPage(cmd.Root(), rt.stdout)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			query := strings.TrimSpace(strings.Join(args, " "))
			if !rt.flags.ListTools && query == "" {
				if _, err := fmt.Fprintf(rt.stdout, "Usage: %s\n", useLine(cmd)); err != nil {
					return fmt.Errorf("usage: %w", err)
				}
				return errs.ErrUsage
			}

			cfg, err := rt.loadConfig()
			if err != nil {
				return err
			}
			if rt.flags.ListTools {
				return rt.listTools(ctx, &cfg)
			}
			return rt.answer(ctx, &cfg, query)
		},
	}

	rootCmd.SetOut(rt.stdout)
	rootCmd.SetErr(rt.stderr)
	rootCmd.SetUsageFunc(usageFunc)
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return newFlagParseError(err)
	})

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.Version = rt.build.Version
	rootCmd.SetVersionTemplate(versionTemplate(rt.build))

	initRootFlags(rootCmd, rt)

	return rootCmd
}

// loadConfig reads the settings file and layers the command line on top.
func (rt *runtime) loadConfig() (config.Config, error) {
	path := ordered.First(rt.flags.ConfigPath, os.Getenv("DOLPHIN_CONFIG"), config.DefaultPath)
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	cfg.Runtime = rt.flags
	cfg.ConfigPath = path
	cfg.Model = ordered.First(rt.model, cfg.Model)
	cfg.Quiet = cfg.Quiet || rt.quiet
	return cfg, nil
}

func (rt *runtime) newService(cfg *config.Config) *agent.Service {
	opts := []agent.Option{
		agent.WithReporter(present.NewReporter(rt.stderr, present.StderrStyles(), cfg.Quiet)),
		agent.WithClientVersion(rt.build.Version),
	}
	return agent.New(cfg, append(opts, rt.agentOpts...)...)
}
