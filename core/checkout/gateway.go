package checkout

import "context"

type (
	Prefill struct {
		Name    string `json:"name,omitempty"`
		Email   string `json:"email,omitempty"`
		Contact string `json:"contact,omitempty"`
	}

	// Options are what the gateway checkout UI is opened with.
	Options struct {
		Key         string            `json:"key"` // gateway public key id
		OrderID     string            `json:"order_id"`
		Amount      int64             `json:"amount"`
		Currency    string            `json:"currency"`
		Name        string            `json:"name"`
		Description string            `json:"description"`
		Prefill     Prefill           `json:"prefill"`
		Notes       map[string]string `json:"notes,omitempty"`
	}

	// PaymentConfirmation is the gateway's success handler response. It is forwarded to the backend as is.
	PaymentConfirmation struct {
		PaymentID string `json:"razorpay_payment_id" validate:"required"`
		OrderID   string `json:"razorpay_order_id" validate:"required"`
		Signature string `json:"razorpay_signature" validate:"required"`
	}

	// Gateway opens the payment gateway checkout UI. Its outcome comes back through
	// Orchestrator.OnGatewaySuccess, OnGatewayFailure or OnGatewayCancel.
	Gateway interface {
		// Ready reports whether the gateway can be opened (configured and loaded).
		Ready() bool
		// Key returns the gateway public key id.
		Key() string
		Open(ctx context.Context, opts Options) error
	}
)
