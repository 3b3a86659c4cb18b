package enrollment

import "github.com/pkg/errors"

// Kind classifies enrollment and checkout failures.
type Kind int

const (
	AuthRequired Kind = iota + 1
	GatewayUnavailable
	OrderCreationError
	GatewayError
	VerificationError
	StoreWriteError
)

var kindNames = map[Kind]string{
	AuthRequired:       "auth_required",
	GatewayUnavailable: "gateway_unavailable",
	OrderCreationError: "order_creation_error",
	GatewayError:       "gateway_error",
	VerificationError:  "verification_error",
	StoreWriteError:    "store_write_error",
}

var defaultMessages = map[Kind]string{
	AuthRequired:       "Please log in to enroll in this course.",
	GatewayUnavailable: "Payment gateway is not available. Please try again later.",
	OrderCreationError: "Failed to initiate payment. Please try again.",
	GatewayError:       "Payment failed. Please try again.",
	VerificationError:  "Your payment went through but we could not complete your enrollment. Please do not pay again and contact support.",
	StoreWriteError:    "Failed to enroll in the course. Please try again.",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return errors.Errorf("unknown enrollment error kind %q", text)
}

// DefaultMessage is the user facing fallback shown when no better message is available.
func (k Kind) DefaultMessage() string {
	return defaultMessages[k]
}

// Error is a user facing enrollment failure. Message is safe to display, Err holds the cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// NewError returns an *Error of kind. An empty msg falls back to the kind's default message.
func NewError(kind Kind, msg string, err error) *Error {
	if msg == "" {
		msg = kind.DefaultMessage()
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// RetrySafe reports whether the failed operation may be retried as is.
// A VerificationError happens after the payment was captured: retrying the checkout would charge again.
func (e *Error) RetrySafe() bool {
	return e.Kind != VerificationError
}

// ContactSupport reports whether the user should be sent to support rather than retry.
func (e *Error) ContactSupport() bool {
	return e.Kind == VerificationError
}

// AsError finds the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err's chain holds an *Error of kind.
func IsKind(err error, kind Kind) bool {
	e, ok := AsError(err)
	return ok && e.Kind == kind
}
