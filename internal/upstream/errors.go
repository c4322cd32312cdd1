package upstream

import "errors"

var (
	// ErrRequestFailed is returned when the upstream call cannot complete.
	ErrRequestFailed = errors.New("upstream request failed")
	// ErrUnexpectedStatus is returned on a non-200 upstream response.
	ErrUnexpectedStatus = errors.New("unexpected upstream status")
	// ErrDecodeResponse is returned when the upstream payload cannot be decoded.
	ErrDecodeResponse = errors.New("failed to decode upstream response")
)
