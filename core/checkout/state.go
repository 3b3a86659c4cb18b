package checkout

import "github.com/pkg/errors"

// State of a checkout attempt.
type State int

const (
	Idle State = iota
	CreatingOrder
	AwaitingGatewayInteraction
	VerifyingPayment
	Enrolled
	OrderCreationFailed
	GatewayFailed
	VerificationFailed
)

var stateNames = [...]string{
	Idle:                       "idle",
	CreatingOrder:              "creating_order",
	AwaitingGatewayInteraction: "awaiting_gateway_interaction",
	VerifyingPayment:           "verifying_payment",
	Enrolled:                   "enrolled",
	OrderCreationFailed:        "order_creation_failed",
	GatewayFailed:              "gateway_failed",
	VerificationFailed:         "verification_failed",
}

var AllStates = []State{
	Idle, CreatingOrder, AwaitingGatewayInteraction, VerifyingPayment,
	Enrolled, OrderCreationFailed, GatewayFailed, VerificationFailed,
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return errors.Errorf("unknown checkout state %q", text)
}

// InFlight reports whether an attempt is running: new triggers are ignored.
func (s State) InFlight() bool {
	return s == CreatingOrder || s == AwaitingGatewayInteraction || s == VerifyingPayment
}

// Calling reports whether a payment backend call is running.
func (s State) Calling() bool {
	return s == CreatingOrder || s == VerifyingPayment
}

// Failed reports whether s is one of the failure exits.
func (s State) Failed() bool {
	return s == OrderCreationFailed || s == GatewayFailed || s == VerificationFailed
}

// Terminal reports whether the attempt is over.
func (s State) Terminal() bool {
	return s == Enrolled || s.Failed()
}
