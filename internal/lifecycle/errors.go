package lifecycle

import (
	"errors"
	"fmt"

	"volumebot-go/internal/exchange"
)

var (
	// ErrInitialization matches every startup failure; the process exits non-zero on it.
	ErrInitialization = errors.New("initialization failed")
	// ErrShutdown matches faults while releasing resources. They are logged, never returned.
	ErrShutdown = errors.New("shutdown fault")
)

// InitError names the startup stage that failed.
type InitError struct {
	Stage string
	Err   error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initialization failed at %s: %v", e.Stage, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

func (e *InitError) Is(target error) bool { return target == ErrInitialization }

// ShutdownFault wraps an error raised while closing the venue session.
type ShutdownFault struct {
	Err error
}

func (e *ShutdownFault) Error() string { return "shutdown: " + e.Err.Error() }

func (e *ShutdownFault) Unwrap() error { return e.Err }

func (e *ShutdownFault) Is(target error) bool { return target == ErrShutdown }

func details(err error) string {
	var apiErr *exchange.APIError
	if errors.As(err, &apiErr) {
		return string(apiErr.Body)
	}
	return ""
}
