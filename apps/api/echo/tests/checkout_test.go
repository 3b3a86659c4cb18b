package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/edusource/apps/api/echo"
	"github.com/trezcool/edusource/core"
	"github.com/trezcool/edusource/core/checkout"
	"github.com/trezcool/edusource/core/course"
	"github.com/trezcool/edusource/core/enrollment"
	"github.com/trezcool/edusource/tests"
)

const confirmation = `{"razorpay_payment_id":"pay_1","razorpay_order_id":"order_test","razorpay_signature":"sig_1"}`

type checkoutErr struct {
	kindErr
	Checkout checkout.Snapshot `json:"checkout"`
}

func checkoutPath(crs course.Course, action ...string) string {
	p := "/v1/courses/" + crs.ID + "/checkout"
	if len(action) > 0 {
		p += "/" + action[0]
	}
	return p
}

func (env *testEnv) checkoutSnapshot(t *testing.T, method, path, token string, wantCode int, data ...[]byte) checkout.Snapshot {
	t.Helper()
	rec := env.do(method, path, token, data...)
	require.Equal(t, wantCode, rec.Code, rec.Body.String())
	var snap checkout.Snapshot
	unmarshall(t, rec, &snap)
	return snap
}

func (env *testEnv) checkoutError(t *testing.T, method, path, token string, wantCode int, data ...[]byte) checkoutErr {
	t.Helper()
	rec := env.do(method, path, token, data...)
	require.Equal(t, wantCode, rec.Code, rec.Body.String())
	var cErr checkoutErr
	unmarshall(t, rec, &cErr)
	return cErr
}

func Test_checkoutApi_preconditions(t *testing.T) {
	env := setup(t)

	paid := testutil.CreateCourse(t, env.courseRepo, "Machine Learning", course.Paid, "499")
	free := testutil.CreateCourse(t, env.courseRepo, "Go Programming", course.Free, "0")

	tests := []httpTest{
		{
			name: "Auth required", method: http.MethodPost, path: checkoutPath(paid),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, map[string]interface{}{
				"error":    enrollment.AuthRequired.DefaultMessage(),
				"kind":     "auth_required",
				"checkout": map[string]string{"courseId": paid.ID, "state": "idle"},
			}),
		},
		{
			name: "instructors cannot enroll", method: http.MethodPost, path: checkoutPath(paid), token: getToken(t, env.conf, instructor),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "not found", method: http.MethodPost, path: "/v1/courses/lol/checkout", token: getToken(t, env.conf, student),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "free course", method: http.MethodPost, path: checkoutPath(free), token: getToken(t, env.conf, student),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "only paid courses can be checked out"}),
		},
		{
			name: "state (anonymous)", path: checkoutPath(paid),
			wantCode: http.StatusOK, wantData: marchallObj(t, map[string]string{"courseId": paid.ID, "state": "idle"}),
		},
	}
	runHTTPTests(t, env, tests)
	assert.Empty(t, env.backend.Calls())

	t.Run("gateway unavailable", func(t *testing.T) {
		env := setup(t, func(conf *core.Config) { conf.Gateway.KeyID = "" })
		paid := testutil.CreateCourse(t, env.courseRepo, "Machine Learning", course.Paid, "499")

		cErr := env.checkoutError(t, http.MethodPost, checkoutPath(paid), getToken(t, env.conf, student), http.StatusServiceUnavailable)
		assert.Equal(t, enrollment.GatewayUnavailable, cErr.Kind)
		assert.Equal(t, checkout.Idle, cErr.Checkout.State)
		assert.Empty(t, env.backend.Calls())
	})
}

func Test_checkoutApi_enrolled(t *testing.T) {
	for _, tc := range []struct {
		name        string
		verifyBody  string
		wantMessage string
	}{
		{name: "success", verifyBody: `{"success":true,"status":"success","message":"Enrollment successful"}`, wantMessage: "Enrollment successful"},
		{name: "already enrolled", verifyBody: `{"success":true,"status":"already_enrolled","message":"Already enrolled"}`, wantMessage: "Already enrolled"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := setup(t)
			env.backend.Respond("verify_payment", http.StatusOK, tc.verifyBody)

			paid := testutil.CreateCourse(t, env.courseRepo, "Machine Learning", course.Paid, "499.00")
			token := getToken(t, env.conf, student)

			// start: an order is created & the gateway is awaited
			snap := env.checkoutSnapshot(t, http.MethodPost, checkoutPath(paid), token, http.StatusOK)
			assert.Equal(t, checkout.AwaitingGatewayInteraction, snap.State)
			require.NotNil(t, snap.Gateway)
			assert.Equal(t, checkout.Options{
				Key:         "rzp_test_key",
				OrderID:     "order_test",
				Amount:      49900,
				Currency:    "INR",
				Name:        "EduSource",
				Description: paid.Title,
				Prefill:     checkout.Prefill{Name: student.Name, Email: student.Email, Contact: student.Phone},
				Notes:       map[string]string{"courseId": paid.ID, "userId": student.ID},
			}, *snap.Gateway)

			calls := env.backend.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, "Bearer "+token, calls[0].Auth)
			assert.Equal(t, map[string]interface{}{
				"action":   "create_order",
				"amount":   float64(49900),
				"currency": "INR",
				"courseId": paid.ID,
				"userId":   student.ID,
			}, calls[0].Body)

			// a second start is ignored while the gateway is open
			snap = env.checkoutSnapshot(t, http.MethodPost, checkoutPath(paid), token, http.StatusOK)
			assert.Equal(t, checkout.AwaitingGatewayInteraction, snap.State)
			assert.Len(t, env.backend.Calls(), 1)

			// gateway success: the payment is verified
			snap = env.checkoutSnapshot(t, http.MethodPost, checkoutPath(paid, "success"), token, http.StatusOK, []byte(confirmation))
			assert.Equal(t, checkout.Enrolled, snap.State)
			assert.Equal(t, tc.wantMessage, snap.Message)
			assert.Nil(t, snap.Failure)

			calls = env.backend.Calls()
			require.Len(t, calls, 2)
			assert.Equal(t, "Bearer "+token, calls[1].Auth)
			assert.Equal(t, map[string]interface{}{
				"action":              "verify_payment",
				"razorpay_payment_id": "pay_1",
				"razorpay_order_id":   "order_test",
				"razorpay_signature":  "sig_1",
				"courseId":            paid.ID,
				"courseTitle":         paid.Title,
				"userId":              student.ID,
			}, calls[1].Body)

			// the resolver now sees the enrollment
			var crs CourseResponse
			unmarshall(t, env.do(http.MethodGet, "/v1/courses/"+paid.ID, token), &crs)
			assert.Equal(t, enrollment.Enrolled, crs.EnrollmentStatus)
			assert.Len(t, env.mailSvc.SentMessages(), 1)
			assert.Len(t, env.events.Messages(), 1)

			// finished: triggers are ignored
			snap = env.checkoutSnapshot(t, http.MethodPost, checkoutPath(paid), token, http.StatusOK)
			assert.Equal(t, checkout.Enrolled, snap.State)
			snap = env.checkoutSnapshot(t, http.MethodPost, checkoutPath(paid, "success"), token, http.StatusOK, []byte(confirmation))
			assert.Equal(t, checkout.Enrolled, snap.State)
			assert.Len(t, env.backend.Calls(), 2)
		})
	}
}

func Test_checkoutApi_orderCreationFailed(t *testing.T) {
	for _, tc := range []struct {
		name        string
		status      int
		body        string
		unreachable bool
		wantMessage string
	}{
		{name: "rejected", status: http.StatusOK, body: `{"success":false,"error":"Course not available"}`, wantMessage: "Course not available"},
		{name: "server error", status: http.StatusInternalServerError, body: `{"message":"Razorpay is down"}`, wantMessage: "Razorpay is down"},
		{name: "no order id", status: http.StatusOK, body: `{"success":true}`, wantMessage: enrollment.OrderCreationError.DefaultMessage()},
		{name: "garbage", status: http.StatusBadGateway, body: `<html></html>`, wantMessage: enrollment.OrderCreationError.DefaultMessage()},
		{
			name: "unreachable", unreachable: true,
			wantMessage: "Could not reach the payment service. Please check your connection and try again.",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := setup(t)
			paid := testutil.CreateCourse(t, env.courseRepo, "Machine Learning", course.Paid, "499")
			token := getToken(t, env.conf, student)

			if tc.unreachable {
				env.backend.Close()
			} else {
				env.backend.Respond("create_order", tc.status, tc.body)
			}

			cErr := env.checkoutError(t, http.MethodPost, checkoutPath(paid), token, http.StatusBadGateway)
			assert.Equal(t, enrollment.OrderCreationError, cErr.Kind)
			assert.Equal(t, tc.wantMessage, cErr.Error)
			assert.False(t, cErr.ContactSupport)
			assert.Equal(t, checkout.OrderCreationFailed, cErr.Checkout.State)
			require.NotNil(t, cErr.Checkout.Failure)
			assert.True(t, cErr.Checkout.Failure.RetrySafe)
			assert.Nil(t, cErr.Checkout.Gateway)

			if tc.unreachable {
				return
			}
			// starting again resets the failure
			env.backend.Respond("create_order", http.StatusOK, `{"success":true,"orderId":"order_2"}`)
			snap := env.checkoutSnapshot(t, http.MethodPost, checkoutPath(paid), token, http.StatusOK)
			assert.Equal(t, checkout.AwaitingGatewayInteraction, snap.State)
			assert.Nil(t, snap.Failure)
			require.NotNil(t, snap.Gateway)
			assert.Equal(t, "order_2", snap.Gateway.OrderID)
		})
	}
}

func Test_checkoutApi_gatewayEvents(t *testing.T) {
	env := setup(t)
	paid := testutil.CreateCourse(t, env.courseRepo, "Machine Learning", course.Paid, "499")
	token := getToken(t, env.conf, student)

	// stale gateway events are ignored
	snap := env.checkoutSnapshot(t, http.MethodPost, checkoutPath(paid, "success"), token, http.StatusOK, []byte(confirmation))
	assert.Equal(t, checkout.Idle, snap.State)
	snap = env.checkoutSnapshot(t, http.MethodPost, checkoutPath(paid, "failure"), token, http.StatusOK, []byte(`{"description":"declined"}`))
	assert.Equal(t, checkout.Idle, snap.State)
	snap = env.checkoutSnapshot(t, http.MethodPost, checkoutPath(paid, "cancel"), token, http.StatusOK)
	assert.Equal(t, checkout.Idle, snap.State)
	assert.Empty(t, env.backend.Calls())

	// cancel: back to Idle, nothing sent
	env.checkoutSnapshot(t, http.MethodPost, checkoutPath(paid), token, http.StatusOK)
	snap = env.checkoutSnapshot(t, http.MethodPost, checkoutPath(paid, "cancel"), token, http.StatusOK)
	assert.Equal(t, checkout.Idle, snap.State)
	assert.Nil(t, snap.Gateway)
	assert.Equal(t, []string{"create_order"}, env.backend.Actions())

	// failure with the gateway's description
	env.checkoutSnapshot(t, http.MethodPost, checkoutPath(paid), token, http.StatusOK)
	cErr := env.checkoutError(t, http.MethodPost, checkoutPath(paid, "failure"), token, http.StatusPaymentRequired, []byte(`{"description":" Card declined by bank "}`))
	assert.Equal(t, enrollment.GatewayError, cErr.Kind)
	assert.Equal(t, "Card declined by bank", cErr.Error)
	assert.Equal(t, checkout.GatewayFailed, cErr.Checkout.State)

	// failure without description
	env.checkoutSnapshot(t, http.MethodPost, checkoutPath(paid), token, http.StatusOK)
	cErr = env.checkoutError(t, http.MethodPost, checkoutPath(paid, "failure"), token, http.StatusPaymentRequired)
	assert.Equal(t, enrollment.GatewayError.DefaultMessage(), cErr.Error)

	// invalid confirmation
	env.checkoutSnapshot(t, http.MethodPost, checkoutPath(paid), token, http.StatusOK)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, map[string]string{
			"razorpay_payment_id": "this field is required",
			"razorpay_order_id":   "this field is required",
			"razorpay_signature":  "this field is required",
		}),
	}, env.do(http.MethodPost, checkoutPath(paid, "success"), token, []byte(`{}`)))
	assert.Equal(t, checkout.AwaitingGatewayInteraction, env.checkoutSnapshot(t, http.MethodGet, checkoutPath(paid), token, http.StatusOK).State)
	assert.Equal(t, []string{"create_order", "create_order", "create_order", "create_order"}, env.backend.Actions())
}

func Test_checkoutApi_verificationFailed(t *testing.T) {
	for _, tc := range []struct {
		name        string
		status      int
		body        string
		unreachable bool
	}{
		{name: "rejected", status: http.StatusBadRequest, body: `{"success":false,"error":"Invalid signature"}`},
		{name: "unexpected status", status: http.StatusOK, body: `{"success":true,"status":"pending"}`},
		{name: "unreachable", unreachable: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := setup(t)
			paid := testutil.CreateCourse(t, env.courseRepo, "Machine Learning", course.Paid, "499")
			token := getToken(t, env.conf, student)

			env.checkoutSnapshot(t, http.MethodPost, checkoutPath(paid), token, http.StatusOK)
			if tc.unreachable {
				env.backend.Close()
			} else {
				env.backend.Respond("verify_payment", tc.status, tc.body)
			}

			cErr := env.checkoutError(t, http.MethodPost, checkoutPath(paid, "success"), token, http.StatusBadGateway, []byte(confirmation))
			assert.Equal(t, enrollment.VerificationError, cErr.Kind)
			assert.True(t, cErr.ContactSupport)
			assert.Contains(t, cErr.Error, "payment went through")
			assert.Contains(t, cErr.Error, env.conf.SupportEmail)
			assert.Equal(t, checkout.VerificationFailed, cErr.Checkout.State)
			require.NotNil(t, cErr.Checkout.Failure)
			assert.False(t, cErr.Checkout.Failure.RetrySafe)

			// starting again is refused: the payment may have been captured
			again := env.checkoutError(t, http.MethodPost, checkoutPath(paid), token, http.StatusBadGateway)
			assert.Equal(t, cErr.Error, again.Error)
			assert.Equal(t, checkout.VerificationFailed, again.Checkout.State)

			crs, err := env.courseRepo.GetCourse(context.Background(), paid.ID)
			require.NoError(t, err)
			assert.Empty(t, crs.EnrolledUsers)
			assert.Empty(t, env.mailSvc.SentMessages())
		})
	}

	t.Run("retry verification", func(t *testing.T) {
		env := setup(t)
		paid := testutil.CreateCourse(t, env.courseRepo, "Machine Learning", course.Paid, "499")
		token := getToken(t, env.conf, student)

		env.checkoutSnapshot(t, http.MethodPost, checkoutPath(paid), token, http.StatusOK)
		env.backend.Respond("verify_payment", http.StatusInternalServerError, `{"success":false}`)
		env.checkoutError(t, http.MethodPost, checkoutPath(paid, "success"), token, http.StatusBadGateway, []byte(confirmation))

		env.backend.Respond("verify_payment", http.StatusOK, `{"success":true,"status":"already_enrolled"}`)
		snap := env.checkoutSnapshot(t, http.MethodPost, checkoutPath(paid, "retry-verification"), token, http.StatusOK)
		assert.Equal(t, checkout.Enrolled, snap.State)
		assert.Equal(t, []string{"create_order", "verify_payment", "verify_payment"}, env.backend.Actions())

		calls := env.backend.Calls()
		assert.Equal(t, calls[1].Body, calls[2].Body, "the same confirmation is verified again")
	})

	t.Run("reset", func(t *testing.T) {
		env := setup(t)
		paid := testutil.CreateCourse(t, env.courseRepo, "Machine Learning", course.Paid, "499")
		token := getToken(t, env.conf, student)

		// nothing to reset while in flight
		env.checkoutSnapshot(t, http.MethodPost, checkoutPath(paid), token, http.StatusOK)
		snap := env.checkoutSnapshot(t, http.MethodPost, checkoutPath(paid, "reset"), token, http.StatusOK)
		assert.Equal(t, checkout.AwaitingGatewayInteraction, snap.State)

		env.backend.Respond("verify_payment", http.StatusOK, `{"success":false}`)
		env.checkoutError(t, http.MethodPost, checkoutPath(paid, "success"), token, http.StatusBadGateway, []byte(confirmation))

		snap = env.checkoutSnapshot(t, http.MethodPost, checkoutPath(paid, "reset"), token, http.StatusOK)
		assert.Equal(t, checkout.Idle, snap.State)
		assert.Nil(t, snap.Failure)

		snap = env.checkoutSnapshot(t, http.MethodPost, checkoutPath(paid), token, http.StatusOK)
		assert.Equal(t, checkout.AwaitingGatewayInteraction, snap.State)
	})
}

func Test_checkoutApi_perUser(t *testing.T) {
	env := setup(t)
	paid := testutil.CreateCourse(t, env.courseRepo, "Machine Learning", course.Paid, "499")

	env.checkoutSnapshot(t, http.MethodPost, checkoutPath(paid), getToken(t, env.conf, student), http.StatusOK)

	snap := env.checkoutSnapshot(t, http.MethodGet, checkoutPath(paid), getToken(t, env.conf, student2), http.StatusOK)
	assert.Equal(t, checkout.Idle, snap.State)
	snap = env.checkoutSnapshot(t, http.MethodGet, checkoutPath(paid), getToken(t, env.conf, student), http.StatusOK)
	assert.Equal(t, checkout.AwaitingGatewayInteraction, snap.State)
	assert.Equal(t, 2, env.checkouts.Len())
}

func Test_metrics(t *testing.T) {
	env := setup(t)
	paid := testutil.CreateCourse(t, env.courseRepo, "Machine Learning", course.Paid, "499")
	env.checkoutSnapshot(t, http.MethodPost, checkoutPath(paid), getToken(t, env.conf, student), http.StatusOK)

	rec := env.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `edusource_checkout_transitions_total{from="idle",state="creating_order"} 1`)
	assert.Contains(t, body, `edusource_checkout_transitions_total{from="creating_order",state="awaiting_gateway_interaction"} 1`)
	assert.Contains(t, body, `edusource_http_requests_total{method="POST",route="/v1/courses/:id/checkout",status="200"} 1`)
}
