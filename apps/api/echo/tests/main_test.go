package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/edusource/apps/api/echo"
	"github.com/trezcool/edusource/core"
	"github.com/trezcool/edusource/core/checkout"
	"github.com/trezcool/edusource/core/course"
	"github.com/trezcool/edusource/core/enrollment"
	"github.com/trezcool/edusource/core/user"
	emailsvc "github.com/trezcool/edusource/services/email"
	eventsvc "github.com/trezcool/edusource/services/events"
	metricsvc "github.com/trezcool/edusource/services/metrics"
	"github.com/trezcool/edusource/services/paybackend"
	inmemdb "github.com/trezcool/edusource/storage/database/inmem"
	"github.com/trezcool/edusource/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testEnv struct {
	app        *Server
	conf       *core.Config
	courseRepo course.Repository
	enrollRepo enrollment.Repository
	checkouts  *checkout.Registry
	backend    *testutil.PaymentBackend
	mailSvc    *emailsvc.ConsoleServiceMock
	events     *eventsvc.NopPublisher
}

func setup(t *testing.T, configure ...func(*core.Config)) *testEnv {
	conf := testutil.NewConfig()
	for _, fn := range configure {
		fn(conf)
	}
	logger := testutil.NewLogger(conf)

	// set up DB & repos
	db := inmemdb.Open()
	env := &testEnv{
		conf:       conf,
		courseRepo: inmemdb.NewCourseRepository(db),
		enrollRepo: inmemdb.NewEnrollmentRepository(db),
		backend:    testutil.NewPaymentBackend(t),
		mailSvc:    emailsvc.NewConsoleServiceMock(conf, logger),
		events:     eventsvc.NewNopPublisher(),
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)

	// set up services
	courseSvc := course.NewService(env.courseRepo, validate, conf)
	enrollSvc := enrollment.NewService(courseSvc, env.enrollRepo, env.mailSvc, env.events, logger)
	metrics := metricsvc.New()
	env.checkouts = checkout.NewRegistry(checkout.Deps{
		Backend:      paybackend.NewClientWithHTTP(env.backend.URL, env.backend.Client()),
		Gateway:      NewHostedGateway(conf.Gateway.KeyID),
		Logger:       logger,
		Observer:     metrics,
		Currency:     conf.PaymentBackend.Currency,
		MerchantName: conf.Gateway.MerchantName,
		SupportEmail: conf.SupportEmail,
		Timeout:      conf.PaymentBackend.Timeout,
		OnEnrolled:   enrollSvc.OnPaidEnrollment,
	})

	// set up server
	env.app = NewServer(ServerDeps{
		Conf:          conf,
		Logger:        logger,
		CourseSvc:     courseSvc,
		EnrollmentSvc: enrollSvc,
		Checkouts:     env.checkouts,
		Metrics:       metrics,
		Validate:      validate,
		Translator:    translator,
	})
	return env
}

func (env *testEnv) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	env.app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type kindErr struct {
	Error          string          `json:"error"`
	Kind           enrollment.Kind `json:"kind"`
	ContactSupport bool            `json:"contact_support,omitempty"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	token, err := GenerateToken(GetUserClaims(usr, conf), conf.SecretKey)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func unmarshall(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("unmarshall() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if _, ok := j1.([]interface{}); !ok {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, env *testEnv, tests []httpTest) {
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			method := tc.method
			if method == "" {
				method = http.MethodGet
			}
			checkCodeAndData(t, tc, env.do(method, tc.path, tc.token, tc.body))
		})
	}
}
