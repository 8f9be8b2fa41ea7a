package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyInput           = errors.New("empty input")
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	ErrIndexUnavailable     = errors.New("index unavailable")
	ErrMalformedGeneration  = errors.New("malformed generation")

	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrTemporary    = errors.New("temporary failure")
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
