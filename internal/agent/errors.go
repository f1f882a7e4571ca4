package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"charm.land/fantasy"

	"github.com/dotcommander/dolphin/internal/config"
	"github.com/dotcommander/dolphin/internal/errs"
)

// streamError turns an engine error into a user-facing error. Runs are never
// retried: the stream has already been partially delivered.
func streamError(err error, mod config.Model) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var providerErr *fantasy.ProviderError
	if errors.As(err, &providerErr) {
		return errs.Error{Err: err, Reason: providerErrorReason(providerErr, mod)}
	}
	return errs.Error{Err: err, Reason: fmt.Sprintf("There was a problem with the %s API request.", mod.Provider)}
}

func providerErrorReason(err *fantasy.ProviderError, mod config.Model) string {
	switch err.StatusCode {
	case http.StatusNotFound:
		return fmt.Sprintf("Missing model '%s' for provider '%s'.", mod.Name, mod.Provider)
	case http.StatusBadRequest:
		if isContextLengthExceeded(err) {
			return "Maximum prompt size exceeded."
		}
	}
	if reason := fantasy.ErrorTitleForStatusCode(err.StatusCode); reason != "" {
		return reason
	}
	return fmt.Sprintf("%s API request error.", mod.Provider)
}

func isContextLengthExceeded(err *fantasy.ProviderError) bool {
	if strings.Contains(strings.ToLower(err.Message), "context_length_exceeded") {
		return true
	}
	return strings.Contains(strings.ToLower(string(err.ResponseBody)), "context_length_exceeded")
}
