// Package errorsx declares the error taxonomy shared across speedcore's
// packages. Every boundary that can fail wraps the underlying error with one
// of these sentinels so callers can classify a failure with errors.Is
// without parsing strings. github.com/pkg/errors supplies Cause/StackTrace
// for the few spots that want a traceable root cause (protocolclient's
// connect/close paths).
package errorsx

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind is one of the named failure categories from spec.md §7.
var (
	// ErrNetworkUnreachable covers DNS failure, connection refused, and
	// handshake timeouts.
	ErrNetworkUnreachable = errors.New("network_unreachable")
	// ErrProtocolFailure covers unexpected framing, wrong keywords, short
	// reads/writes, and premature EOF.
	ErrProtocolFailure = errors.New("protocol_failure")
	// ErrCatalogueFailure covers HTTP non-2xx, empty bodies, XML parse
	// errors, and a missing IPInfo prerequisite.
	ErrCatalogueFailure = errors.New("catalogue_failure")
	// ErrNoCandidate is returned when the server selector exhausts its
	// list without a successful candidate.
	ErrNoCandidate = errors.New("no_candidate")
	// ErrInvalidOrder is returned when a session facade step runs before
	// its predecessor.
	ErrInvalidOrder = errors.New("invalid_order")
	// ErrResourceFailure covers allocation and descriptor exhaustion.
	ErrResourceFailure = errors.New("resource_failure")
)

// Wrap annotates err with kind and a message, keeping both kind and err in
// the resulting error's chain so errors.Is(result, kind) and
// errors.Is(result, err) both hold. Wrap returns nil if err is nil.
func Wrap(err error, kind error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", message, kind, err)
}

// New builds a kind-tagged error with no underlying cause, for boundaries
// that reject input rather than catch a failure (e.g. an out-of-order
// session step or an unsupported server version).
func New(kind error, message string) error {
	return fmt.Errorf("%s: %w", message, kind)
}

// Trace wraps err with a stack trace via github.com/pkg/errors, for use at
// boundaries (protocolclient connect/close) where the immediate cause
// matters for debugging but a taxonomy kind does not apply.
func Trace(err error, message string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(err, message)
}
