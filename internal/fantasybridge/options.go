package fantasybridge

import (
	"strings"

	"charm.land/fantasy"
	fgoogle "charm.land/fantasy/providers/google"
	fopenai "charm.land/fantasy/providers/openai"
	fopenaicompat "charm.land/fantasy/providers/openaicompat"

	"github.com/dotcommander/dolphin/internal/proto"
)

// family groups providers that share a provider options type.
type family int

const (
	familyNative family = iota
	familyOpenAI
	familyGoogle
	familyCompatible
)

func familyOf(api string) family {
	switch api {
	case apiOpenAI, apiAzure, apiAzureAD:
		return familyOpenAI
	case apiGoogle:
		return familyGoogle
	case apiAnthropic, apiBedrock, apiOpenRouter, apiVercel:
		return familyNative
	default:
		return familyCompatible
	}
}

// isReasoningModel reports whether model is an OpenAI reasoning model. Those
// reject max_tokens and take max_completion_tokens instead.
func isReasoningModel(api, model string) bool {
	if familyOf(api) != familyOpenAI {
		return false
	}
	for _, prefix := range []string{"o1", "o3", "o4"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// maxOutputTokens is the generic output limit sent with the call.
func maxOutputTokens(api string, req proto.Request) *int64 {
	if isReasoningModel(api, req.Model) {
		return nil
	}
	return req.MaxTokens
}

// providerOptions returns the provider specific options for req.
func providerOptions(api string, cfg Config, req proto.Request) fantasy.ProviderOptions {
	opts := fantasy.ProviderOptions{}
	switch familyOf(api) {
	case familyOpenAI:
		if o := openAIOptions(api, req); o != nil {
			opts[fopenai.Name] = o
		}
	case familyGoogle:
		if cfg.ThinkingBudget > 0 {
			opts[fgoogle.Name] = &fgoogle.ProviderOptions{
				ThinkingConfig: &fgoogle.ThinkingConfig{
					ThinkingBudget: fantasy.Opt(int64(cfg.ThinkingBudget)),
				},
			}
		}
	case familyCompatible:
		if req.User != "" {
			user := req.User
			opts[fopenaicompat.Name] = &fopenaicompat.ProviderOptions{User: &user}
		}
	case familyNative:
	}
	return opts
}

func openAIOptions(api string, req proto.Request) *fopenai.ProviderOptions {
	maxCompletion := req.MaxCompletionTokens
	if maxCompletion == nil && isReasoningModel(api, req.Model) {
		maxCompletion = req.MaxTokens
	}
	if req.User == "" && maxCompletion == nil {
		return nil
	}
	o := &fopenai.ProviderOptions{MaxCompletionTokens: maxCompletion}
	if req.User != "" {
		user := req.User
		o.User = &user
	}
	return o
}
