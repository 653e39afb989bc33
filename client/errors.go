package client

import "errors"

var (
	// ErrInvalidConfig indicates a configuration that fails validation.
	ErrInvalidConfig = errors.New("client: invalid config")

	// ErrNilTransport is returned by New without a Transport.
	ErrNilTransport = errors.New("client: transport is nil")

	// ErrClosed is returned by calls made after Close.
	ErrClosed = errors.New("client: closed")
)
