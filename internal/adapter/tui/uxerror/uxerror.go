// Package uxerror turns startup and command errors into short explanations
// with recovery hints for the terminal.
package uxerror

import (
	"errors"
	"fmt"
	"strings"

	"portfolio-assistant/internal/domain"
)

// FriendlyError is a user-facing error with recovery hints.
type FriendlyError struct {
	Title   string
	Message string
	Hints   []string
	Raw     string
}

// Render formats the error for a terminal.
func (fe FriendlyError) Render() string {
	var sb strings.Builder
	sb.WriteString(fe.Title)
	if fe.Message != "" {
		sb.WriteString("\n  ")
		sb.WriteString(fe.Message)
	}
	if len(fe.Hints) > 0 {
		sb.WriteString("\n  Suggestions:")
		for _, h := range fe.Hints {
			sb.WriteString(fmt.Sprintf("\n    - %s", h))
		}
	}
	return sb.String()
}

type errorPattern struct {
	match   func(err error) bool
	produce func(err error) FriendlyError
}

var patterns = []errorPattern{
	{
		match: is(domain.ErrDecryption),
		produce: constantError("Cannot Decrypt API Key",
			"An encrypted api_key could not be decrypted.",
			[]string{"Set PORTFOLIO_CONFIG_KEY to the passphrase used for encryption", "Replace the enc: value with a plain key"}),
	},
	{
		match: is(domain.ErrEncryption),
		produce: constantError("Cannot Encrypt Value",
			"The value could not be encrypted.",
			[]string{"Set PORTFOLIO_CONFIG_KEY to the passphrase the config will be read with"}),
	},
	{
		match: is(domain.ErrConfigLoad),
		produce: func(err error) FriendlyError {
			return FriendlyError{
				Title:   "Invalid Configuration",
				Message: err.Error(),
				Hints:   []string{"Check the YAML file passed with --config", "Compare with config.example.yaml"},
				Raw:     err.Error(),
			}
		},
	},
	{
		match: is(domain.ErrProviderNotFound),
		produce: constantError("Unknown Provider",
			"llm.default_provider does not name a configured provider.",
			[]string{"Add the provider under llm.providers", "Set PORTFOLIO_LLM_DEFAULT_PROVIDER"}),
	},
	{
		match: is(domain.ErrContextUnavailable),
		produce: constantError("Portfolio Data Unavailable",
			"No candidate location returned a valid portfolio document.",
			[]string{"Check context.locations and context.base_url", "Make sure the JSON has profile.name set"}),
	},
	{
		match: containsAny("address already in use", "bind:"),
		produce: constantError("Cannot Listen",
			"The proxy address is already taken or not permitted.",
			[]string{"Pick another proxy.addr", "Stop the process holding the port"}),
	},
	{
		match: containsAny("connection refused", "dial tcp", "no such host"),
		produce: constantError("Connection Failed",
			"Could not reach the remote service.",
			[]string{"Check your internet connection", "Verify the provider base_url in config"}),
	},
}

// Humanize converts err into a FriendlyError.
func Humanize(err error) FriendlyError {
	if err == nil {
		return FriendlyError{Title: "Unknown Error", Raw: "nil"}
	}
	for _, p := range patterns {
		if p.match(err) {
			return p.produce(err)
		}
	}
	return FriendlyError{
		Title:   "Unexpected Error",
		Message: err.Error(),
		Hints:   []string{"Try again", "Run with logger.level: debug for more details"},
		Raw:     err.Error(),
	}
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

// containsAny matches errors whose text contains any of substrs,
// case-insensitively.
func containsAny(substrs ...string) func(error) bool {
	return func(err error) bool {
		lower := strings.ToLower(err.Error())
		for _, s := range substrs {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}
}

func constantError(title, message string, hints []string) func(error) FriendlyError {
	return func(err error) FriendlyError {
		return FriendlyError{
			Title:   title,
			Message: message,
			Hints:   hints,
			Raw:     err.Error(),
		}
	}
}
