package llm

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
)

// ProviderError wraps a provider failure with its HTTP status when one is known.
type ProviderError struct {
	Provider  string
	Status    int
	Temporary bool
	Err       error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s API error: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s API error (status=%d)", e.Provider, e.Status)
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsTransient reports whether an error is safe to retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		if providerErr.Temporary {
			return true
		}
		if providerErr.Status == 429 || (providerErr.Status >= 500 && providerErr.Status <= 599) {
			return true
		}
	}
	return false
}

func wrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	pe := &ProviderError{Provider: provider, Err: err}

	var openaiErr *openai.Error
	var anthropicErr *anthropic.Error
	switch {
	case errors.As(err, &openaiErr):
		pe.Status = openaiErr.StatusCode
	case errors.As(err, &anthropicErr):
		pe.Status = anthropicErr.StatusCode
	}
	return pe
}
