package chain

import (
	"errors"
	"fmt"
)

// Set of error variables for chain processing.
var (
	ErrEmptyChain   = errors.New("chain has no blocks")
	ErrInvalidChain = errors.New("chain is invalid")
	ErrHashMismatch = errors.New("stored hash does not match block contents")
	ErrLinkMismatch = errors.New("previous hash does not match parent block")
)

// ValidationError identifies the first block that failed validation.
type ValidationError struct {
	Index int
	Err   error
}

// Error implements the error interface.
func (ve *ValidationError) Error() string {
	return fmt.Sprintf("block[%d]: %s", ve.Index, ve.Err)
}

// Unwrap returns the underlying reason for the failure.
func (ve *ValidationError) Unwrap() error {
	return ve.Err
}

// Is allows errors.Is to match any validation error against ErrInvalidChain.
func (ve *ValidationError) Is(target error) bool {
	return target == ErrInvalidChain
}

// GetValidationError returns the validation error from the chain of errors
// or nil if there is none.
func GetValidationError(err error) *ValidationError {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return nil
	}
	return ve
}
