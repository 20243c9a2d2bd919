package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrTemporary           = errors.New("temporary failure")
	ErrNotProcessable      = errors.New("item not processable")
	ErrProviderParse       = errors.New("provider output not parseable")
	ErrProvidersExhausted  = errors.New("all extraction providers exhausted")
	ErrRegistryUnavailable = errors.New("registry unavailable")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
