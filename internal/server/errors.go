package server

import "errors"

var (
	// ErrServerAlreadyRunning is returned when Start is called twice.
	ErrServerAlreadyRunning = errors.New("server is already running")
	// ErrInvalidPort is returned when the configured port is out of range.
	ErrInvalidPort = errors.New("invalid server port")
)
