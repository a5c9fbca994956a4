package evtx

import "errors"

var (
	// ErrClosed indicates the file was already closed.
	ErrClosed = errors.New("evtx: file closed")

	// ErrNoChunks indicates the file carries no readable chunk.
	ErrNoChunks = errors.New("evtx: no chunks")
)
