package checkout

import "context"

type (
	// OrderRequest is the create_order payload. Amount is in minor units.
	OrderRequest struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		CourseID string `json:"courseId"`
		UserID   string `json:"userId"`
	}

	// VerifyRequest is the verify_payment payload. The gateway fields keep the gateway's names.
	VerifyRequest struct {
		PaymentID   string `json:"razorpay_payment_id"`
		OrderID     string `json:"razorpay_order_id"`
		Signature   string `json:"razorpay_signature"`
		CourseID    string `json:"courseId"`
		CourseTitle string `json:"courseTitle"`
		UserID      string `json:"userId"`
	}

	// OrderResult is one of OrderCreated, OrderRejected.
	OrderResult interface {
		orderResult()
	}

	OrderCreated struct {
		OrderID  string
		Amount   int64
		Currency string
	}

	OrderRejected struct {
		Message string
	}

	// VerifyResult is one of PaymentVerified, VerificationRejected.
	VerifyResult interface {
		verifyResult()
	}

	PaymentVerified struct {
		Status  VerifyStatus
		Message string
	}

	VerificationRejected struct {
		Message string
	}

	VerifyStatus string

	// PaymentBackend is the payment backend holding the gateway secrets.
	// Errors are transport failures; backend refusals are OrderRejected / VerificationRejected.
	PaymentBackend interface {
		CreateOrder(ctx context.Context, token string, req OrderRequest) (OrderResult, error)
		VerifyPayment(ctx context.Context, token string, req VerifyRequest) (VerifyResult, error)
	}
)

const (
	VerifySuccess         VerifyStatus = "success"
	VerifyAlreadyEnrolled VerifyStatus = "already_enrolled"
)

func (OrderCreated) orderResult()  {}
func (OrderRejected) orderResult() {}

func (PaymentVerified) verifyResult()      {}
func (VerificationRejected) verifyResult() {}
