package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrMissingToken = errors.New("missing bearer token")
)

// requestError is a client error whose message is shown as is.
type requestError struct {
	msg string
}

func badRequest(msg string) error { return requestError{msg: msg} }

func (e requestError) Error() string { return e.msg }

func (e requestError) Is(target error) bool { return target == ErrBadRequest }
