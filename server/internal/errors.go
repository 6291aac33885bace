package internal

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrLaunch            = errors.New("process could not be started")
	ErrFetchFailure      = errors.New("fetch failed")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrUnsupported       = errors.New("unsupported operation")
	ErrNotReady          = errors.New("download not completed")
	ErrTimeout           = errors.New("request timeout")
)
