// Package paybackend is the client of the payment backend: one endpoint dispatching on an "action" field,
// called with the user's bearer token.
package paybackend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/edusource/core"
	"github.com/trezcool/edusource/core/checkout"
)

const (
	actionCreateOrder   = "create_order"
	actionVerifyPayment = "verify_payment"

	msgUnreachable = "Could not reach the payment service. Please check your connection and try again."
	msgBadResponse = "The payment service sent an invalid response. Please try again."
)

// Error is a transport failure: the backend could not be reached or answered garbage.
type Error struct {
	Action     string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Action, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Action, e.Err)
}

func (e *Error) Unwrap() error       { return e.Err }
func (e *Error) UserMessage() string { return e.Message }

type (
	createOrderBody struct {
		Action string `json:"action"`
		checkout.OrderRequest
	}

	verifyPaymentBody struct {
		Action string `json:"action"`
		checkout.VerifyRequest
	}

	orderResponse struct {
		Success  bool   `json:"success"`
		OrderID  string `json:"orderId"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Error    string `json:"error"`
		Message  string `json:"message"`
	}

	verifyResponse struct {
		Success bool   `json:"success"`
		Status  string `json:"status"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
)

type Client struct {
	url  string
	http *rest.Client
}

var _ checkout.PaymentBackend = (*Client)(nil)

func NewClient(conf *core.Config) *Client {
	return NewClientWithHTTP(conf.PaymentBackend.URL, &http.Client{Timeout: conf.PaymentBackend.Timeout})
}

func NewClientWithHTTP(url string, hc *http.Client) *Client {
	return &Client{
		url:  url,
		http: &rest.Client{HTTPClient: hc},
	}
}

func (c *Client) CreateOrder(ctx context.Context, token string, req checkout.OrderRequest) (checkout.OrderResult, error) {
	var res orderResponse
	status, err := c.post(ctx, token, actionCreateOrder, createOrderBody{Action: actionCreateOrder, OrderRequest: req}, &res)
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) || !res.Success {
		return checkout.OrderRejected{Message: firstNonEmpty(res.Error, res.Message)}, nil
	}
	return checkout.OrderCreated{OrderID: res.OrderID, Amount: res.Amount, Currency: res.Currency}, nil
}

func (c *Client) VerifyPayment(ctx context.Context, token string, req checkout.VerifyRequest) (checkout.VerifyResult, error) {
	var res verifyResponse
	status, err := c.post(ctx, token, actionVerifyPayment, verifyPaymentBody{Action: actionVerifyPayment, VerifyRequest: req}, &res)
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) || !res.Success {
		return checkout.VerificationRejected{Message: firstNonEmpty(res.Error, res.Message)}, nil
	}
	return checkout.PaymentVerified{Status: checkout.VerifyStatus(res.Status), Message: res.Message}, nil
}

// post sends body and decodes the JSON answer into dst. Error answers are decoded too (they carry the message);
// only a 2xx answer that cannot be decoded is an error.
func (c *Client) post(ctx context.Context, token, action string, body, dst interface{}) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, &Error{Action: action, Message: msgBadResponse, Err: errors.Wrap(err, "encoding request")}
	}

	httpReq, err := rest.BuildRequestObject(rest.Request{
		Method:  rest.Post,
		BaseURL: c.url,
		Headers: map[string]string{
			"Authorization": "Bearer " + token,
			"Content-Type":  "application/json",
			"Accept":        "application/json",
		},
		Body: data,
	})
	if err != nil {
		return 0, &Error{Action: action, Message: msgUnreachable, Err: errors.Wrap(err, "building request")}
	}

	httpRes, err := c.http.HTTPClient.Do(httpReq.WithContext(ctx))
	if err != nil {
		return 0, &Error{Action: action, Message: msgUnreachable, Err: err}
	}
	res, err := rest.BuildResponse(httpRes)
	if err != nil {
		return 0, &Error{Action: action, StatusCode: httpRes.StatusCode, Message: msgUnreachable, Err: errors.Wrap(err, "reading response")}
	}

	if err = json.Unmarshal([]byte(res.Body), dst); err != nil && isSuccess(res.StatusCode) {
		return 0, &Error{Action: action, StatusCode: res.StatusCode, Message: msgBadResponse, Err: errors.Wrap(err, "decoding response")}
	}
	return res.StatusCode, nil
}

func isSuccess(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s = core.CleanString(s); s != "" {
			return s
		}
	}
	return ""
}
