package rest

import "fmt"

// AuthError reports rejected credentials or a rejected token. Fatal to
// setup once the single login retry is spent.
type AuthError struct {
	Op      string
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: auth rejected (code=%s): %s", e.Op, e.Code, e.Message)
}

// TransportError wraps timeouts, HTTP failures and undecodable bodies so
// callers never see a raw transport error.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError reports a non-zero result code from an api/irapi method.
type APIError struct {
	Op   string
	Code int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: api returned code %d", e.Op, e.Code)
}
