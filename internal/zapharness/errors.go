package zapharness

import (
	"errors"
)

// ErrorCategory classifies harness failures. None of them is an
// authentication outcome; rejected credentials are a normal reply.
type ErrorCategory int

const (
	// ErrCatSetup means an endpoint could not be created, configured,
	// bound or connected.
	ErrCatSetup ErrorCategory = iota
	// ErrCatProtocol means a peer broke the ZAP or control protocol.
	ErrCatProtocol
	// ErrCatUnexpectedEvent means a monitor or bounce probe saw something
	// other than what the scenario expects.
	ErrCatUnexpectedEvent
)

func (c ErrorCategory) String() string {
	switch c {
	case ErrCatSetup:
		return "setup"
	case ErrCatProtocol:
		return "protocol"
	case ErrCatUnexpectedEvent:
		return "unexpected-event"
	default:
		return "unknown"
	}
}

// ClassifiedError wraps an error with its category.
type ClassifiedError struct {
	Category ErrorCategory
	Err      error
}

func (e *ClassifiedError) Error() string { return e.Category.String() + ": " + e.Err.Error() }
func (e *ClassifiedError) Unwrap() error { return e.Err }

// Setup wraps err as a setup failure.
func Setup(err error) error {
	return &ClassifiedError{Category: ErrCatSetup, Err: err}
}

// Protocol wraps err as a protocol violation.
func Protocol(err error) error {
	return &ClassifiedError{Category: ErrCatProtocol, Err: err}
}

// UnexpectedEvent wraps err as an unexpected observation.
func UnexpectedEvent(err error) error {
	return &ClassifiedError{Category: ErrCatUnexpectedEvent, Err: err}
}

// CategoryOf extracts the category. Unclassified errors count as protocol
// violations.
func CategoryOf(err error) ErrorCategory {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Category
	}
	return ErrCatProtocol
}

var (
	ErrBadPayload           = errors.New("unexpected configuration payload")
	ErrUnsupportedMechanism = errors.New("unsupported mechanism")
	ErrBadVersion           = errors.New("unexpected ZAP version")
	ErrBadRoutingID         = errors.New("unexpected routing id")
	ErrMalformedCredentials = errors.New("malformed credentials")
	ErrUnexpectedControl    = errors.New("unexpected control message")
	ErrHandlerExited        = errors.New("handler exited")
	ErrNoEvent              = errors.New("no monitor event")
	ErrWrongEvent           = errors.New("wrong monitor event")
	ErrEventCount           = errors.New("wrong number of monitor events")
	ErrBounceDelivered      = errors.New("message crossed a connection that should have failed")
	ErrBounceMismatch       = errors.New("bounced message differs")
)
