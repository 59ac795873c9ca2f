package normalize

import "fmt"

// DecodeError reports one malformed or undecodable event. It is dropped at
// debug severity by the caller and never aborts the connection.
type DecodeError struct {
	Reason string
	Me     string
	Idx    string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode event me=%s idx=%s: %s", e.Me, e.Idx, e.Reason)
}

func decodeErr(me, idx, format string, args ...any) *DecodeError {
	return &DecodeError{Reason: fmt.Sprintf(format, args...), Me: me, Idx: idx}
}
