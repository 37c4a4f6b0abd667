// Package errs provides types and support for turning errors from the
// blockchain into web responses.
package errs

import (
	"errors"
	"net/http"

	"github.com/ardanlabs/powchain/foundation/blockchain/block"
	"github.com/ardanlabs/powchain/foundation/blockchain/chain"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
)

// Response is the form used for API responses from failures in the API.
type Response struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Trusted is used to pass an error during the request through the
// application with web specific context.
type Trusted struct {
	Err    error
	Status int
}

// NewTrusted wraps a provided error with an HTTP status code. This
// function should be used when handlers encounter expected errors.
func NewTrusted(err error, status int) error {
	return &Trusted{err, status}
}

// Error implements the error interface. It uses the default message of the
// wrapped error. This is what will be shown in the services' logs.
func (te *Trusted) Error() string {
	return te.Err.Error()
}

// Unwrap returns the wrapped error.
func (te *Trusted) Unwrap() error {
	return te.Err
}

// IsTrusted checks if an error of type Trusted exists.
func IsTrusted(err error) bool {
	var te *Trusted
	return errors.As(err, &te)
}

// GetTrusted returns a copy of the Trusted pointer.
func GetTrusted(err error) *Trusted {
	var te *Trusted
	if !errors.As(err, &te) {
		return nil
	}
	return te
}

// =============================================================================

// FromChain maps the expected errors of the blockchain packages to a
// trusted error with the matching status. Anything else is returned as is.
func FromChain(err error) error {
	switch {
	case err == nil:
		return nil

	case errors.Is(err, state.ErrNotFound):
		return NewTrusted(err, http.StatusNotFound)

	case errors.Is(err, block.ErrMiningCancelled):
		return NewTrusted(err, http.StatusRequestTimeout)

	case errors.Is(err, block.ErrInvalidPayload):
		return NewTrusted(err, http.StatusBadRequest)

	case errors.Is(err, block.ErrSealed):
		return NewTrusted(err, http.StatusConflict)

	case errors.Is(err, chain.ErrInvalidChain):
		return NewTrusted(err, http.StatusConflict)
	}

	return err
}
