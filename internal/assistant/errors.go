// ABOUTME: Error variants for the query flow: configuration, connection, dispatch
// ABOUTME: UserMessage maps any of them to the text shown on the page

package assistant

import (
	"errors"

	"github.com/2389/query-assistant/internal/credentials"
)

// ConfigError means credentials could not be resolved or are incomplete.
// No network call was made.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return "configuration: " + e.Err.Error() }
func (e *ConfigError) Unwrap() error { return e.Err }

// Missing returns the names of the missing keys, if that is the cause.
func (e *ConfigError) Missing() []string {
	var missing *credentials.MissingError
	if errors.As(e.Err, &missing) {
		return missing.Keys
	}
	return nil
}

// ConnectError means the cluster connection could not be opened.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string { return e.Err.Error() }
func (e *ConnectError) Unwrap() error { return e.Err }

// DispatchError means the query agent run failed after connecting.
type DispatchError struct {
	Err error
}

func (e *DispatchError) Error() string { return e.Err.Error() }
func (e *DispatchError) Unwrap() error { return e.Err }

// UserMessage returns the banner text for err.
func UserMessage(err error) string {
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		if errors.Is(err, credentials.ErrMissingCredentials) {
			return credentials.MissingMessage
		}
		return "Configuration error: " + cfgErr.Err.Error()
	}
	return "Something went wrong: " + err.Error()
}
