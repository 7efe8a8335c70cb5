package service

import "errors"

var (
	// ErrDuplicateEvent reports an engagement event whose id was already
	// accepted. The event is absorbed, not a fault.
	ErrDuplicateEvent = errors.New("duplicate engagement event")

	// ErrQueueFull reports intake backpressure; the caller may retry.
	ErrQueueFull = errors.New("engagement queue full")

	// ErrNotStarted reports a call on a service before Start.
	ErrNotStarted = errors.New("service not started")
)
