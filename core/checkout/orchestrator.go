package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/trezcool/edusource/core"
	"github.com/trezcool/edusource/core/course"
	"github.com/trezcool/edusource/core/enrollment"
	"github.com/trezcool/edusource/core/user"
)

var (
	tracer = otel.Tracer("github.com/trezcool/edusource/core/checkout")

	errNotPaid        = errors.New("only paid courses can be checked out")
	errMissingOrderID = errors.New("order created without an order id")
	errOrderRejected  = errors.New("order rejected by the payment backend")
)

type (
	// Deps are the collaborators shared by every Orchestrator.
	Deps struct {
		Backend      PaymentBackend
		Gateway      Gateway
		Logger       core.Logger
		Observer     Observer
		Currency     string
		MerchantName string
		SupportEmail string
		Timeout      time.Duration // per backend call
		// OnEnrolled refreshes the enrollment status once a payment is verified.
		OnEnrolled func(ctx context.Context, sess user.Session, crs course.Course)
	}

	Failure struct {
		Kind           enrollment.Kind `json:"kind"`
		Message        string          `json:"message"`
		RetrySafe      bool            `json:"retrySafe"`
		ContactSupport bool            `json:"contactSupport"`
	}

	// Snapshot is a consistent copy of an Orchestrator's state.
	Snapshot struct {
		CourseID string   `json:"courseId"`
		State    State    `json:"state"`
		Gateway  *Options `json:"gateway,omitempty"` // set while awaiting the gateway
		Message  string   `json:"message,omitempty"`
		Failure  *Failure `json:"failure,omitempty"`
	}

	// Orchestrator drives one user's paid checkout of one course:
	// Idle -> CreatingOrder -> AwaitingGatewayInteraction -> VerifyingPayment -> Enrolled,
	// failing into OrderCreationFailed, GatewayFailed or VerificationFailed.
	//
	// Transitions are serialized by mu. Backend calls run unlocked while the state marks the attempt in flight;
	// a completion whose attempt is no longer current is dropped.
	Orchestrator struct {
		deps *Deps

		mu           sync.Mutex
		sess         user.Session
		crs          course.Course
		state        State
		attempt      uint64
		order        *OrderCreated
		gateway      *Options
		confirmation *PaymentConfirmation
		err          *enrollment.Error
		message      string
		touchedAt    time.Time
	}
)

func New(sess user.Session, crs course.Course, deps Deps) *Orchestrator {
	return newOrchestrator(sess, crs, deps.withDefaults())
}

func newOrchestrator(sess user.Session, crs course.Course, deps *Deps) *Orchestrator {
	return &Orchestrator{
		deps:      deps,
		sess:      sess,
		crs:       crs,
		state:     Idle,
		touchedAt: time.Now(),
	}
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// Start begins a checkout. It is refused without side effects when the session is anonymous (AuthRequired) or the
// gateway is not ready (GatewayUnavailable). It is ignored while an attempt is in flight or after enrollment.
// After a VerificationFailed it keeps failing until Reset: the payment may already have been captured.
func (o *Orchestrator) Start(ctx context.Context) (Snapshot, error) {
	o.mu.Lock()
	switch {
	case o.state.InFlight() || o.state == Enrolled:
		snap := o.snapshotLocked()
		o.mu.Unlock()
		return snap, nil
	case o.state == VerificationFailed:
		snap, err := o.snapshotLocked(), o.err
		o.mu.Unlock()
		return snap, err
	}
	if err := o.checkStartLocked(); err != nil {
		snap := o.snapshotLocked()
		o.mu.Unlock()
		return snap, err
	}

	o.clearLocked()
	attempt := o.enterLocked(CreatingOrder)
	token := o.sess.Token
	req := OrderRequest{
		Amount:   o.crs.MinorUnits(),
		Currency: o.deps.Currency,
		CourseID: o.crs.ID,
		UserID:   o.sess.UserID(),
	}
	o.mu.Unlock()

	res, err := o.createOrder(ctx, token, req)

	o.mu.Lock()
	if o.staleLocked(attempt, CreatingOrder) {
		snap := o.snapshotLocked()
		o.mu.Unlock()
		return snap, nil
	}
	order, oerr := orderFromResult(res, err)
	if oerr != nil {
		o.failLocked(OrderCreationFailed, oerr)
		snap := o.snapshotLocked()
		o.mu.Unlock()
		return snap, oerr
	}
	if order.Amount <= 0 {
		order.Amount = req.Amount
	}
	if order.Currency == "" {
		order.Currency = req.Currency
	}
	o.order = &order
	opts := o.gatewayOptionsLocked(order)
	o.gateway = &opts
	attempt = o.enterLocked(AwaitingGatewayInteraction)
	o.mu.Unlock()

	if err = o.deps.Gateway.Open(ctx, opts); err != nil {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.staleLocked(attempt, AwaitingGatewayInteraction) {
			return o.snapshotLocked(), nil
		}
		gerr := enrollment.NewError(enrollment.GatewayError, "", errors.Wrap(err, "opening gateway"))
		o.failLocked(GatewayFailed, gerr)
		return o.snapshotLocked(), gerr
	}
	return o.Snapshot(), nil
}

// OnGatewaySuccess forwards the gateway's confirmation to the payment backend for verification.
// Ignored unless the gateway is awaited.
func (o *Orchestrator) OnGatewaySuccess(ctx context.Context, confirmation PaymentConfirmation) (Snapshot, error) {
	o.mu.Lock()
	if o.state != AwaitingGatewayInteraction {
		snap := o.snapshotLocked()
		o.mu.Unlock()
		return snap, nil
	}
	o.confirmation = &confirmation
	o.gateway = nil
	attempt := o.enterLocked(VerifyingPayment)
	token, req := o.sess.Token, o.verifyRequestLocked()
	o.mu.Unlock()

	return o.verify(ctx, attempt, token, req)
}

// OnGatewayFailure records a failed payment. description is shown as is when given.
// Ignored unless the gateway is awaited.
func (o *Orchestrator) OnGatewayFailure(ctx context.Context, description string) (Snapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != AwaitingGatewayInteraction {
		return o.snapshotLocked(), nil
	}
	err := enrollment.NewError(enrollment.GatewayError, core.CleanString(description), nil)
	o.failLocked(GatewayFailed, err)
	return o.snapshotLocked(), err
}

// OnGatewayCancel returns to Idle when the user closes the gateway. Nothing is sent to the backend.
// Ignored unless the gateway is awaited.
func (o *Orchestrator) OnGatewayCancel(ctx context.Context) Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == AwaitingGatewayInteraction {
		o.clearLocked()
		o.enterLocked(Idle)
	}
	return o.snapshotLocked()
}

// RetryVerification re-sends the stored confirmation from VerificationFailed.
// The backend answers already_enrolled on repeats, so no payment is ever retried.
func (o *Orchestrator) RetryVerification(ctx context.Context) (Snapshot, error) {
	o.mu.Lock()
	if o.state != VerificationFailed || o.confirmation == nil {
		snap := o.snapshotLocked()
		o.mu.Unlock()
		return snap, nil
	}
	o.err = nil
	attempt := o.enterLocked(VerifyingPayment)
	token, req := o.sess.Token, o.verifyRequestLocked()
	o.mu.Unlock()

	return o.verify(ctx, attempt, token, req)
}

// Reset returns a finished attempt to Idle. In-flight attempts cannot be interrupted.
func (o *Orchestrator) Reset(ctx context.Context) Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Terminal() {
		o.clearLocked()
		o.enterLocked(Idle)
	}
	return o.snapshotLocked()
}

func (o *Orchestrator) verify(ctx context.Context, attempt uint64, token string, req VerifyRequest) (Snapshot, error) {
	res, err := o.verifyPayment(ctx, token, req)

	o.mu.Lock()
	if o.staleLocked(attempt, VerifyingPayment) {
		snap := o.snapshotLocked()
		o.mu.Unlock()
		return snap, nil
	}
	msg, verr := o.verificationResult(res, err)
	if verr != nil {
		o.failLocked(VerificationFailed, verr)
		snap := o.snapshotLocked()
		o.mu.Unlock()
		return snap, verr
	}
	o.message = msg
	o.enterLocked(Enrolled)
	sess, crs := o.sess, o.crs
	snap := o.snapshotLocked()
	o.mu.Unlock()

	if sess.User != nil {
		o.deps.Logger.Info(fmt.Sprintf("checkout: enrolled in course %q", crs.ID), *sess.User)
	}
	if o.deps.OnEnrolled != nil {
		// the backend already enrolled the user: the local mirror must not depend on the caller staying
		o.deps.OnEnrolled(context.WithoutCancel(ctx), sess, crs)
	}
	return snap, nil
}

func (o *Orchestrator) verificationResult(res VerifyResult, err error) (string, *enrollment.Error) {
	msg := enrollment.VerificationError.DefaultMessage()
	if o.deps.SupportEmail != "" {
		msg = fmt.Sprintf(
			"Your payment went through but we could not complete your enrollment. "+
				"Please do not pay again and contact support at %s.", o.deps.SupportEmail,
		)
	}
	if err != nil {
		return "", enrollment.NewError(enrollment.VerificationError, msg, errors.Wrap(err, "verifying payment"))
	}

	switch r := res.(type) {
	case PaymentVerified:
		if r.Status == VerifySuccess || r.Status == VerifyAlreadyEnrolled {
			return r.Message, nil
		}
		return "", enrollment.NewError(enrollment.VerificationError, msg, errors.Errorf("unexpected verification status %q", r.Status))
	case VerificationRejected:
		return "", enrollment.NewError(enrollment.VerificationError, msg, errors.Errorf("verification rejected: %s", r.Message))
	default:
		return "", enrollment.NewError(enrollment.VerificationError, msg, errors.Errorf("unexpected verification result %T", res))
	}
}

func orderFromResult(res OrderResult, err error) (OrderCreated, *enrollment.Error) {
	if err != nil {
		return OrderCreated{}, enrollment.NewError(enrollment.OrderCreationError, userMessage(err), errors.Wrap(err, "creating order"))
	}

	switch r := res.(type) {
	case OrderCreated:
		if r.OrderID == "" {
			return OrderCreated{}, enrollment.NewError(enrollment.OrderCreationError, "", errMissingOrderID)
		}
		return r, nil
	case OrderRejected:
		return OrderCreated{}, enrollment.NewError(enrollment.OrderCreationError, core.CleanString(r.Message), errOrderRejected)
	default:
		return OrderCreated{}, enrollment.NewError(enrollment.OrderCreationError, "", errors.Errorf("unexpected order result %T", res))
	}
}

// userMessage returns the displayable message of a transport error, if it has one.
func userMessage(err error) string {
	var um interface{ UserMessage() string }
	if errors.As(err, &um) {
		return um.UserMessage()
	}
	return ""
}

func (o *Orchestrator) createOrder(ctx context.Context, token string, req OrderRequest) (OrderResult, error) {
	ctx, cancel := o.callContext(ctx)
	defer cancel()
	ctx, span := o.startSpan(ctx, "checkout.create_order", req.CourseID, req.UserID)
	defer span.End()
	span.SetAttributes(attribute.Int64("checkout.amount", req.Amount), attribute.String("checkout.currency", req.Currency))

	res, err := o.deps.Backend.CreateOrder(ctx, token, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create_order failed")
	} else if r, ok := res.(OrderCreated); ok {
		span.SetAttributes(attribute.String("checkout.order_id", r.OrderID))
	}
	return res, err
}

func (o *Orchestrator) verifyPayment(ctx context.Context, token string, req VerifyRequest) (VerifyResult, error) {
	ctx, cancel := o.callContext(ctx)
	defer cancel()
	ctx, span := o.startSpan(ctx, "checkout.verify_payment", req.CourseID, req.UserID)
	defer span.End()
	span.SetAttributes(attribute.String("checkout.order_id", req.OrderID))

	res, err := o.deps.Backend.VerifyPayment(ctx, token, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "verify_payment failed")
	}
	return res, err
}

// callContext detaches backend calls from the caller's cancellation: an attempt runs to completion or timeout.
func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if o.deps.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.deps.Timeout)
}

func (o *Orchestrator) startSpan(ctx context.Context, name, courseID, userID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("course.id", courseID),
		attribute.String("user.id", userID),
	))
}

func (o *Orchestrator) checkStartLocked() error {
	if !o.sess.Authenticated() {
		return enrollment.NewError(enrollment.AuthRequired, "", nil)
	}
	if o.deps.Gateway == nil || !o.deps.Gateway.Ready() {
		return enrollment.NewError(enrollment.GatewayUnavailable, "", nil)
	}
	if o.crs.Type != course.Paid || !o.crs.Price.IsPositive() {
		return core.NewValidationError(errNotPaid)
	}
	return nil
}

func (o *Orchestrator) gatewayOptionsLocked(order OrderCreated) Options {
	opts := Options{
		Key:         o.deps.Gateway.Key(),
		OrderID:     order.OrderID,
		Amount:      order.Amount,
		Currency:    order.Currency,
		Name:        o.deps.MerchantName,
		Description: o.crs.Title,
		Notes:       map[string]string{"courseId": o.crs.ID},
	}
	if usr := o.sess.User; usr != nil {
		opts.Prefill = Prefill{Name: usr.Name, Email: usr.Email, Contact: usr.Phone}
		opts.Notes["userId"] = usr.ID
	}
	return opts
}

func (o *Orchestrator) verifyRequestLocked() VerifyRequest {
	return VerifyRequest{
		PaymentID:   o.confirmation.PaymentID,
		OrderID:     o.confirmation.OrderID,
		Signature:   o.confirmation.Signature,
		CourseID:    o.crs.ID,
		CourseTitle: o.crs.Title,
		UserID:      o.sess.UserID(),
	}
}

// enterLocked moves to `to` and starts a new attempt, returning its number.
func (o *Orchestrator) enterLocked(to State) uint64 {
	from := o.state
	o.state = to
	o.attempt++
	o.touchedAt = time.Now()
	o.deps.Observer.Transition(from, to)
	return o.attempt
}

func (o *Orchestrator) staleLocked(attempt uint64, state State) bool {
	return o.attempt != attempt || o.state != state
}

func (o *Orchestrator) failLocked(to State, err *enrollment.Error) {
	o.err = err
	o.gateway = nil
	o.enterLocked(to)

	args := []interface{}{err.Err, map[string]interface{}{
		"course": o.crs.ID,
		"state":  to.String(),
		"kind":   err.Kind.String(),
	}}
	if o.sess.User != nil {
		args = append(args, *o.sess.User)
	}
	if to == VerificationFailed {
		o.deps.Logger.Error("checkout: payment captured but not verified", args...)
	} else {
		o.deps.Logger.Warn("checkout: "+err.Message, args...)
	}
}

func (o *Orchestrator) clearLocked() {
	o.order = nil
	o.gateway = nil
	o.confirmation = nil
	o.err = nil
	o.message = ""
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	snap := Snapshot{
		CourseID: o.crs.ID,
		State:    o.state,
		Message:  o.message,
	}
	if o.gateway != nil {
		opts := *o.gateway
		snap.Gateway = &opts
	}
	if o.err != nil {
		snap.Failure = &Failure{
			Kind:           o.err.Kind,
			Message:        o.err.Message,
			RetrySafe:      o.err.RetrySafe(),
			ContactSupport: o.err.ContactSupport(),
		}
	}
	return snap
}

// refresh updates the session and course used by the next attempt. In-flight attempts keep theirs.
func (o *Orchestrator) refresh(sess user.Session, crs course.Course) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.touchedAt = time.Now()
	if o.state.InFlight() {
		return
	}
	o.sess = sess
	o.crs = crs
}

// idleSince reports whether o was last touched before t and has no backend call running.
// An abandoned gateway (closed without a cancel event) counts as idle.
func (o *Orchestrator) idleSince(t time.Time) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return !o.state.Calling() && o.touchedAt.Before(t)
}
