package llm

import (
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"

	"github.com/Epistemic-Technology/research-library/internal/documents"
)

// ConfigError reports missing credentials or settings. It is fatal for the
// current request and never retried.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return e.Msg
}

// UpstreamError is a non-2xx response from an external API
type UpstreamError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, e.Body)
}

// IsConfigError reports whether err is a configuration problem rather than a
// transport or data failure
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return true
	}
	var missing *documents.ConverterMissingError
	return errors.As(err, &missing)
}

// AsUpstreamError extracts the upstream error from err, if any
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream, true
	}
	return nil, false
}

// toUpstreamError converts openai-go API errors into UpstreamError so that
// callers see the provider, status and raw body
func toUpstreamError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		body := apiErr.RawJSON()
		if body == "" {
			body = apiErr.Message
		}
		return &UpstreamError{Provider: provider, StatusCode: apiErr.StatusCode, Body: body}
	}
	return err
}
