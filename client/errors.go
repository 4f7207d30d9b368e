package client

import "errors"

var (
	ErrNotConnected     = errors.New("client is not connected")
	ErrAlreadyConnected = errors.New("client is already connected; disconnect first")
	ErrUnbound          = errors.New("datagram channel is not bound yet")
)
