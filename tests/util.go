// Package testutil holds fixtures shared by the package tests.
package testutil

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trezcool/edusource/core"
	"github.com/trezcool/edusource/core/course"
	logsvc "github.com/trezcool/edusource/services/logger"
)

// NewConfig returns a TEST config that does not depend on the environment.
func NewConfig() *core.Config {
	return &core.Config{
		Env:             "TEST",
		Build:           "test",
		AppName:         "EduSource",
		TestMode:        true,
		SecretKey:       "test-secret",
		FrontendBaseURL: "http://front.test",
		SupportEmail:    "support@edusource.test",
		Server: core.ServerConfig{
			Host:               "localhost",
			JWTExpirationDelta: time.Hour,
			AllowedOrigins:     []string{"http://front.test"},
		},
		Database:       core.DatabaseConfig{Engine: "memory", Timeout: time.Second},
		PaymentBackend: core.PaymentBackendConfig{Timeout: 2 * time.Second, Currency: "INR"},
		Gateway:        core.GatewayConfig{KeyID: "rzp_test_key", MerchantName: "EduSource"},
		Events:         core.EventsConfig{Driver: "none"},
	}
}

// NewLogger returns a logger that neither reports nor prints.
func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(nil, conf)
}

func CreateCourse(
	t *testing.T,
	repo course.Repository,
	title string,
	typ course.Type,
	price string,
	enrolledUsers ...string,
) course.Course {
	now := time.Now().UTC()
	crs := course.Course{
		ID:               uuid.New().String(),
		Title:            title,
		ShortDescription: title + " in a nutshell",
		Price:            decimal.RequireFromString(price),
		Type:             typ,
		EnrolledUsers:    append([]string{}, enrolledUsers...),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := crs.Validate(); err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	crs, err := repo.CreateCourse(context.Background(), crs)
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

type (
	// BackendCall is a request received by PaymentBackend.
	BackendCall struct {
		Auth string
		Body map[string]interface{}
	}

	backendAnswer struct {
		status int
		body   string
	}

	// PaymentBackend is a fake payment backend answering each action with a canned response.
	PaymentBackend struct {
		*httptest.Server

		mu      sync.Mutex
		calls   []BackendCall
		answers map[string]backendAnswer
	}
)

func NewPaymentBackend(t *testing.T) *PaymentBackend {
	b := &PaymentBackend{
		answers: map[string]backendAnswer{
			"create_order":   {http.StatusOK, `{"success":true,"orderId":"order_test","amount":0,"currency":"INR"}`},
			"verify_payment": {http.StatusOK, `{"success":true,"status":"success","message":"Enrolled"}`},
		},
	}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Close)
	return b
}

func (b *PaymentBackend) serve(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	var body map[string]interface{}
	_ = json.Unmarshal(data, &body)
	action, _ := body["action"].(string)

	b.mu.Lock()
	b.calls = append(b.calls, BackendCall{Auth: r.Header.Get("Authorization"), Body: body})
	answer, ok := b.answers[action]
	b.mu.Unlock()

	if !ok {
		answer = backendAnswer{http.StatusBadRequest, `{"success":false,"error":"unknown action"}`}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(answer.status)
	_, _ = io.WriteString(w, answer.body)
}

// Respond sets the answer to action.
func (b *PaymentBackend) Respond(action string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.answers[action] = backendAnswer{status, body}
}

func (b *PaymentBackend) Calls() []BackendCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]BackendCall(nil), b.calls...)
}

// Actions returns the actions received, in order.
func (b *PaymentBackend) Actions() []string {
	calls := b.Calls()
	actions := make([]string, 0, len(calls))
	for _, c := range calls {
		action, _ := c.Body["action"].(string)
		actions = append(actions, action)
	}
	return actions
}
