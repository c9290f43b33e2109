package device

import (
	"errors"
	"fmt"
)

// Kind classifies a DeviceError. The HTTP layer maps kinds to status codes.
type Kind int

const (
	KindInternal Kind = iota
	// KindInvalidInput marks a malformed request rejected before reaching the service.
	KindInvalidInput
	// KindInvalidState marks a create with a missing or unrecognised state.
	KindInvalidState
	// KindNotFound marks an unknown id or a filter that matched nothing.
	KindNotFound
	// KindNotAllowed marks a mutation rejected by the lifecycle policy.
	KindNotAllowed
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "InvalidInput"
	case KindInvalidState:
		return "InvalidState"
	case KindNotFound:
		return "NotFound"
	case KindNotAllowed:
		return "NotAllowed"
	default:
		return "Internal"
	}
}

// DeviceError is the failure type returned by DeviceService.
type DeviceError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string) *DeviceError {
	return &DeviceError{Kind: kind, Message: message}
}

func internalError(message string, err error) *DeviceError {
	return &DeviceError{Kind: KindInternal, Message: message, Err: err}
}

// KindOf reports the kind carried by err. Errors that are not DeviceErrors are Internal.
func KindOf(err error) Kind {
	var de *DeviceError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
