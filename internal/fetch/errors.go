// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreachable is the sentinel for download failures: connection
	// errors, timeouts, and non-success HTTP statuses.
	ErrUnreachable = errors.New("resource unreachable")

	// ErrCorruptPayload is the sentinel for payloads that arrived but
	// failed validation: checksum mismatches and unrecognized archive bytes.
	ErrCorruptPayload = errors.New("corrupt payload")
)

type (
	// NetworkError reports a failed transfer. StatusCode is zero when the
	// request never produced an HTTP response.
	NetworkError struct {
		URL        string
		StatusCode int
		Cause      error
	}

	// IntegrityError reports a payload that downloaded completely but does
	// not match what the step declared.
	IntegrityError struct {
		URL    string
		Reason string
		Want   string
		Got    string
	}
)

// Error implements the error interface.
func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch %s: HTTP status %d", e.URL, e.StatusCode)
	}
	if e.Cause != nil {
		return fmt.Sprintf("failed to fetch %s: %v", e.URL, e.Cause)
	}
	return fmt.Sprintf("failed to fetch %s", e.URL)
}

// Unwrap returns the sentinel (and the transport cause, when present) so
// callers can classify with errors.Is.
func (e *NetworkError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrUnreachable, e.Cause}
	}
	return []error{ErrUnreachable}
}

// Error implements the error interface.
func (e *IntegrityError) Error() string {
	if e.Want != "" {
		return fmt.Sprintf("integrity check failed for %s: %s (want %s, got %s)", e.URL, e.Reason, e.Want, e.Got)
	}
	return fmt.Sprintf("integrity check failed for %s: %s", e.URL, e.Reason)
}

// Unwrap returns the sentinel for errors.Is classification.
func (e *IntegrityError) Unwrap() error { return ErrCorruptPayload }
