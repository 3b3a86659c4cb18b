package paybackend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edusource/core/checkout"
)

type captured struct {
	auth string
	body map[string]interface{}
}

func newServer(t *testing.T, status int, resBody string, got *captured) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		if got != nil {
			got.auth = r.Header.Get("Authorization")
			data, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(data, &got.body))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, resBody)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(url string) *Client {
	return NewClientWithHTTP(url, &http.Client{Timeout: time.Second})
}

func TestClient_CreateOrder(t *testing.T) {
	req := checkout.OrderRequest{Amount: 49900, Currency: "INR", CourseID: "c1", UserID: "u1"}

	tests := []struct {
		name    string
		status  int
		resBody string
		want    checkout.OrderResult
		wantErr string // user message
	}{
		{
			name: "created", status: http.StatusOK,
			resBody: `{"success":true,"orderId":"order_1","amount":49900,"currency":"INR"}`,
			want:    checkout.OrderCreated{OrderID: "order_1", Amount: 49900, Currency: "INR"},
		},
		{
			name: "success without order id", status: http.StatusOK,
			resBody: `{"success":true}`,
			want:    checkout.OrderCreated{},
		},
		{
			name: "rejected", status: http.StatusOK,
			resBody: `{"success":false,"error":"Course not available"}`,
			want:    checkout.OrderRejected{Message: "Course not available"},
		},
		{
			name: "server error with message", status: http.StatusInternalServerError,
			resBody: `{"error":"Razorpay is down"}`,
			want:    checkout.OrderRejected{Message: "Razorpay is down"},
		},
		{
			name: "server error without json", status: http.StatusBadGateway,
			resBody: `<html>bad gateway</html>`,
			want:    checkout.OrderRejected{},
		},
		{
			name: "invalid json", status: http.StatusOK,
			resBody: `{"success":`,
			wantErr: msgBadResponse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got captured
			srv := newServer(t, tt.status, tt.resBody, &got)

			res, err := newTestClient(srv.URL).CreateOrder(context.Background(), "tok", req)
			if tt.wantErr != "" {
				require.Error(t, err)
				perr, ok := err.(*Error)
				require.True(t, ok)
				assert.Equal(t, tt.wantErr, perr.UserMessage())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, res)

			assert.Equal(t, "Bearer tok", got.auth)
			assert.Equal(t, map[string]interface{}{
				"action":   "create_order",
				"amount":   float64(49900),
				"currency": "INR",
				"courseId": "c1",
				"userId":   "u1",
			}, got.body)
		})
	}
}

func TestClient_VerifyPayment(t *testing.T) {
	req := checkout.VerifyRequest{
		PaymentID: "pay_1", OrderID: "order_1", Signature: "sig",
		CourseID: "c1", CourseTitle: "Go", UserID: "u1",
	}

	tests := []struct {
		name    string
		status  int
		resBody string
		want    checkout.VerifyResult
	}{
		{
			name: "success", status: http.StatusOK,
			resBody: `{"success":true,"status":"success","message":"Enrollment successful"}`,
			want:    checkout.PaymentVerified{Status: checkout.VerifySuccess, Message: "Enrollment successful"},
		},
		{
			name: "already enrolled", status: http.StatusOK,
			resBody: `{"success":true,"status":"already_enrolled"}`,
			want:    checkout.PaymentVerified{Status: checkout.VerifyAlreadyEnrolled},
		},
		{
			name: "invalid signature", status: http.StatusBadRequest,
			resBody: `{"success":false,"message":"Invalid signature"}`,
			want:    checkout.VerificationRejected{Message: "Invalid signature"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got captured
			srv := newServer(t, tt.status, tt.resBody, &got)

			res, err := newTestClient(srv.URL).VerifyPayment(context.Background(), "tok", req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res)

			assert.Equal(t, "Bearer tok", got.auth)
			assert.Equal(t, map[string]interface{}{
				"action":              "verify_payment",
				"razorpay_payment_id": "pay_1",
				"razorpay_order_id":   "order_1",
				"razorpay_signature":  "sig",
				"courseId":            "c1",
				"courseTitle":         "Go",
				"userId":              "u1",
			}, got.body)
		})
	}
}

func TestClient_unreachable(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{}`, nil)
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url).CreateOrder(context.Background(), "tok", checkout.OrderRequest{})
	require.Error(t, err)
	perr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, actionCreateOrder, perr.Action)
	assert.Equal(t, msgUnreachable, perr.UserMessage())
}

func TestClient_contextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newTestClient(srv.URL).VerifyPayment(ctx, "tok", checkout.VerifyRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
