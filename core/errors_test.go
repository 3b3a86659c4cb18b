package core

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	errPrice := errors.New("a paid course must have a price greater than 0")

	tests := []struct {
		name      string
		err       ValidationError
		wantMsg   string
		wantField map[string]string
	}{
		{name: "empty", err: ValidationError{}},
		{name: "error only", err: ValidationError{Err: errPrice}, wantMsg: errPrice.Error()},
		{
			name:      "fields only",
			err:       ValidationError{Fields: []FieldError{{Field: "price", Error: "required"}, {Field: "type", Error: "invalid"}}},
			wantMsg:   "price: required",
			wantField: map[string]string{"price": "required", "type": "invalid"},
		},
		{
			name:      "error and fields",
			err:       ValidationError{Err: errPrice, Fields: []FieldError{{Field: "price", Error: errPrice.Error()}}},
			wantMsg:   errPrice.Error(),
			wantField: map[string]string{"price": errPrice.Error()},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
			assert.Equal(t, tt.wantField, tt.err.FieldMap())
		})
	}
}

func TestIsValidationError(t *testing.T) {
	err := NewValidationError(errors.New("bad"))
	assert.True(t, IsValidationError(err))
	assert.True(t, IsValidationError(errors.Wrap(err, "creating course")))
	assert.False(t, IsValidationError(errors.New("bad")))
	assert.False(t, IsValidationError(nil))
}
