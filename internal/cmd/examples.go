package cmd

import (
	"math/rand"
	"regexp"

	"github.com/dotcommander/dolphin/internal/present"
)

var examples = map[string]string{
	"Ask with the tools of every configured server": `dolphin-mcp-cli "What files changed in the last commit?"`,
	"Pick a model and keep stderr clean":            `dolphin-mcp-cli --model gpt-4o --quiet "Summarize today's open issues"`,
	"See which tools the servers expose":            `dolphin-mcp-cli --tools | jq 'keys'`,
	"Keep an audit trail of the conversation":       `dolphin-mcp-cli --log-messages chat.jsonl "Draft a release note"`,
}

var (
	quotedRe = regexp.MustCompile(`"([^"\\]|\\.)*"`)
	pipeRe   = regexp.MustCompile(`\|`)
)

func randomExample() string {
	keys := make([]string, 0, len(examples))
	for k := range examples {
		keys = append(keys, k)
	}
	return keys[rand.Intn(len(keys))] //nolint:gosec
}

func cheapHighlighting(s present.Styles, code string) string {
	code = quotedRe.ReplaceAllStringFunc(code, func(x string) string {
		return s.Quote.Render(x)
	})
	return pipeRe.ReplaceAllStringFunc(code, func(x string) string {
		return s.Pipe.Render(x)
	})
}
