package validation

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/posflow/posflow/internal/errors"
)

func TestWrapValidationError(t *testing.T) {
	t.Run("nil error stays nil", func(t *testing.T) {
		assert.NoError(t, WrapValidationError(nil))
	})

	t.Run("wraps as invalid input", func(t *testing.T) {
		err := WrapValidationError(errors.New("boom"))
		assert.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
		assert.Contains(t, err.Error(), "boom")
	})
}

func TestEventTypeTag(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{name: "simple tag", value: "sale", wantErr: false},
		{name: "dotted tag", value: "order.status_changed", wantErr: false},
		{name: "multi segment", value: "stock.movement.removed", wantErr: false},
		{name: "uppercase rejected", value: "Order.Created", wantErr: true},
		{name: "leading dot rejected", value: ".order", wantErr: true},
		{name: "trailing dot rejected", value: "order.", wantErr: true},
		{name: "spaces rejected", value: "order created", wantErr: true},
		{name: "digit start rejected", value: "1order", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := EventTypeTag.Validate(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestJSONPayload(t *testing.T) {
	tests := []struct {
		name    string
		value   interface{}
		wantErr bool
	}{
		{name: "valid object", value: json.RawMessage(`{"a":1}`), wantErr: false},
		{name: "valid array", value: []byte(`[1,2,3]`), wantErr: false},
		{name: "valid string input", value: `{"ok":true}`, wantErr: false},
		{name: "empty passes through", value: json.RawMessage(nil), wantErr: false},
		{name: "malformed json", value: json.RawMessage(`{"a":`), wantErr: true},
		{name: "wrong type", value: 42, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := JSONPayload.Validate(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNoWhitespace(t *testing.T) {
	assert.NoError(t, NoWhitespace.Validate("order-1"))
	assert.Error(t, NoWhitespace.Validate(" order-1"))
	assert.Error(t, NoWhitespace.Validate("order-1 "))
}

func TestNotBlank(t *testing.T) {
	assert.NoError(t, NotBlank.Validate("order"))
	assert.Error(t, NotBlank.Validate("   "))
	assert.Error(t, NotBlank.Validate(""))
}
