package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dotcommander/dolphin/internal/config"
	"github.com/dotcommander/dolphin/internal/present"
)

var helpText = map[string]string{
	"model":        "Specify the model to use",
	"quiet":        "Suppress intermediate output",
	"config":       "Specify a custom config file (default: " + config.DefaultPath + ")",
	"log-messages": "Log all LLM interactions to a JSONL file",
	"tools":        "List all available tools in JSON format",
	"help":         "Show this help message",
	"version":      "Show version and exit",
	"man":          "Print the man page",
}

// flagArgs names the value a flag expects in usage output.
var flagArgs = map[string]string{
	"model":        "<name>",
	"config":       "<file>",
	"log-messages": "<file>",
}

func initRootFlags(cmd *cobra.Command, rt *runtime) {
	flags := cmd.Flags()
	flags.StringVar(&rt.model, "model", "", present.StdoutStyles().FlagDesc.Render(helpText["model"]))
	flags.BoolVar(&rt.quiet, "quiet", false, present.StdoutStyles().FlagDesc.Render(helpText["quiet"]))
	flags.StringVar(&rt.flags.ConfigPath, "config", "", present.StdoutStyles().FlagDesc.Render(helpText["config"]))
	flags.StringVar(&rt.flags.LogMessagesPath, "log-messages", "", present.StdoutStyles().FlagDesc.Render(helpText["log-messages"]))
	flags.BoolVarP(&rt.flags.ListTools, "tools", "t", false, present.StdoutStyles().FlagDesc.Render(helpText["tools"]))
	flags.BoolVarP(&rt.flags.ShowHelp, "help", "h", false, present.StdoutStyles().FlagDesc.Render(helpText["help"]))
	flags.BoolVarP(&rt.flags.Version, "version", "v", false, present.StdoutStyles().FlagDesc.Render(helpText["version"]))
	flags.BoolVar(&rt.flags.ShowMan, "man", false, helpText["man"])
	_ = flags.MarkHidden("man")
	flags.SortFlags = false

	_ = cmd.MarkFlagFilename("config", "json", "yaml", "yml")
	_ = cmd.MarkFlagFilename("log-messages", "jsonl")
}
