package cmd

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dotcommander/dolphin/internal/errs"
	"github.com/dotcommander/dolphin/internal/present"
)

func (rt *runtime) handleError(err error) {
	s := present.StderrStyles()
	format := "\n%s\n\n"

	var ferr flagParseError
	if errors.As(err, &ferr) {
		reason := ferr.ReasonFormat()
		if ferr.Flag() != "" {
			reason = fmt.Sprintf(reason, s.InlineCode.Render(ferr.Flag()))
		}
		_, _ = fmt.Fprintf(
			rt.stderr,
			format+"%s\n\n",
			fmt.Sprintf(
				"Check out %s %s",
				s.InlineCode.Render(appName+" -h"),
				s.Comment.Render("for help."),
			),
			reason,
		)
		return
	}

	var merr errs.Error
	if errors.As(err, &merr) {
		formatArgs := []any{s.ErrPadding.Render(s.ErrorHeader.String(), merr.Reason)}
		if merr.Err != nil {
			format += "%s\n\n"
			formatArgs = append(formatArgs, s.ErrPadding.Render(s.ErrorDetails.Render(err.Error())))
		}
		_, _ = fmt.Fprintf(rt.stderr, format, formatArgs...)
		return
	}

	_, _ = fmt.Fprintf(rt.stderr, format, s.ErrPadding.Render(s.ErrorDetails.Render(err.Error())))
}

var (
	shorthandFlagRe  = regexp.MustCompile(`unknown shorthand flag: '.*' in (-\S+)`)
	invalidArgFlagRe = regexp.MustCompile(`invalid argument ".*" for "(.*)" flag: .*`)
)

// flagParseError is a pflag parse error with the offending flag pulled out.
type flagParseError struct {
	err    error
	reason string
	flag   string
}

func newFlagParseError(err error) flagParseError {
	var reason, flag string
	s := err.Error()
	switch {
	case strings.HasPrefix(s, "flag needs an argument:"):
		reason = "Flag %s needs an argument."
		flag = s[strings.LastIndex(s, " ")+1:]
	case strings.HasPrefix(s, "unknown flag:"):
		reason = "Flag %s is missing."
		flag = strings.TrimPrefix(s, "unknown flag: ")
	case strings.HasPrefix(s, "unknown shorthand flag:"):
		reason = "Short flag %s is missing."
		if parts := shorthandFlagRe.FindStringSubmatch(s); len(parts) > 1 {
			flag = parts[1]
		}
	case strings.HasPrefix(s, "invalid argument"):
		reason = "Flag %s have an invalid argument."
		if parts := invalidArgFlagRe.FindStringSubmatch(s); len(parts) > 1 {
			flag = parts[1]
		}
	default:
		reason = s
	}
	return flagParseError{err: err, reason: reason, flag: flag}
}

func (f flagParseError) Error() string {
	return f.err.Error()
}

func (f flagParseError) ReasonFormat() string {
	return f.reason
}

func (f flagParseError) Flag() string {
	return f.flag
}
