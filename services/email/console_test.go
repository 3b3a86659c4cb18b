package emailsvc

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edusource/core"
)

type testLogger struct{ errors []string }

func (l *testLogger) Debug(string, ...interface{})       {}
func (l *testLogger) Info(string, ...interface{})        {}
func (l *testLogger) Warn(string, ...interface{})        {}
func (l *testLogger) Error(msg string, _ ...interface{}) { l.errors = append(l.errors, msg) }
func (l *testLogger) Fatal(string, ...interface{})       {}

func testConfig() *core.Config {
	return &core.Config{AppName: "EduSource", FrontendBaseURL: "http://front.test", TestMode: true}
}

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	logger := new(testLogger)
	svc := NewConsoleServiceMock(testConfig(), logger)

	svc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: "Ada", Address: "ada@example.com"}},
			Subject:      "Enrollment confirmed: Go 101",
			TemplateName: "enrollment_confirmation",
			TemplateData: map[string]string{"Name": "Ada", "CourseID": "go-101", "CourseTitle": "Go 101"},
		},
		&core.EmailMessage{Subject: "no recipients", BodyStr: "dropped"},
		&core.EmailMessage{To: []mail.Address{{Address: "bob@example.com"}}, Subject: "plain", BodyStr: "hello"},
	)

	require.Empty(t, logger.errors)
	sent := svc.SentMessages()
	require.Len(t, sent, 2)

	msg := sent[0]
	assert.Contains(t, msg.TextContent, "Hi Ada,")
	assert.Contains(t, msg.TextContent, `You are now enrolled in "Go 101".`)
	assert.Contains(t, msg.TextContent, "http://front.test/courses/go-101")
	assert.Contains(t, msg.HTMLContent, "<strong>Go 101</strong>")
	assert.Contains(t, msg.HTMLContent, `href="http://front.test/courses/go-101"`)

	assert.Equal(t, "hello", sent[1].TextContent)
	assert.Empty(t, sent[1].HTMLContent)
}

func TestNew(t *testing.T) {
	conf := testConfig()
	logger := new(testLogger)

	assert.IsType(t, &ConsoleServiceMock{}, New(conf, logger))

	conf.TestMode = false
	assert.IsType(t, &consoleService{}, New(conf, logger))

	conf.SMTP.Host = "smtp.example.com"
	assert.IsType(t, &smtpService{}, New(conf, logger))

	conf.SendgridApiKey = "SG.key"
	assert.IsType(t, &sendgridService{}, New(conf, logger))
}

func TestSMTPService_prepare(t *testing.T) {
	svc := NewSMTPService(testConfig(), new(testLogger)).(*smtpService)
	m := svc.prepare(core.EmailMessage{
		To:          []mail.Address{{Name: "Ada", Address: "ada@example.com"}},
		Subject:     "hi",
		TextContent: "text",
	})
	assert.Equal(t, []string{"[EduSource] hi"}, m.GetHeader("Subject"))
	assert.Equal(t, []string{`"Ada" <ada@example.com>`}, m.GetHeader("To"))
	assert.Empty(t, m.GetHeader("Cc"))
}
