package cli

import (
	"context"
	"errors"

	"github.com/rewired-gh/otawatch/internal/provider"
)

var (
	// ErrConfig marks configuration that cannot be loaded or used.
	ErrConfig = errors.New("configuration error")
	// ErrLoginTimeout is returned when the login wait ends without a confirmed session.
	ErrLoginTimeout = errors.New("login not completed")
)

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return 0
	case errors.Is(err, ErrConfig), errors.Is(err, provider.ErrUnknownSite):
		return 2
	case errors.Is(err, ErrLoginTimeout):
		return 3
	default:
		return 1
	}
}
