package logsvc

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/edusource/core"
	"github.com/trezcool/edusource/core/user"
)

func TestRollbarLogger_prepare(t *testing.T) {
	logger := NewRollbarLogger(nil, &core.Config{TestMode: true})
	usr := user.User{ID: "u1", Name: "Ada", Email: "ada@example.com"}
	err := errors.New("boom")

	tests := []struct {
		name string
		args []interface{}
		want []interface{}
	}{
		{name: "no args", args: nil, want: []interface{}{"msg"}},
		{name: "user is dropped", args: []interface{}{err, usr}, want: []interface{}{"msg", err}},
		{name: "user pointer is dropped", args: []interface{}{&usr, err}, want: []interface{}{"msg", err}},
		{name: "extras are kept", args: []interface{}{map[string]interface{}{"k": 1}}, want: []interface{}{"msg", map[string]interface{}{"k": 1}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, logger.prepare("msg", tc.args))
		})
	}
}

func TestRollbarLogger_print(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := NewRollbarLogger(log.New(buf, "", 0), &core.Config{TestMode: true})

	logger.Warn("checkout failed", "order_creation_error")

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "checkout failed\n"))
	assert.Contains(t, out, "order_creation_error")
}
