package log

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestToFields(t *testing.T) {
	now := time.Now()
	err := errors.New("boom")

	tests := []struct {
		name   string
		input  []any
		wantN  int
		wantK0 string
	}{
		{"empty input", []any{}, 0, ""},
		{"string-int-bool", []any{"a", "x", "b", 123, "c", true}, 3, "a"},
		{"time type", []any{"t", now}, 1, "t"},
		{"duration", []any{"d", 2 * time.Second}, 1, "d"},
		{"bytes", []any{"data", []byte("xyz")}, 1, "data"},
		{"error only", []any{err}, 1, "error"},
		{"mixed field types", []any{"msg", "ok", zap.String("x", "y"), "num", 42}, 3, "msg"},
		{"odd number of args", []any{"key1", "val1", "key2"}, 2, "key1"},
		{"non-string key", []any{123, "value"}, 1, "invalid_key_1"},
		{"nil values", []any{"a", nil, "b", (*int)(nil)}, 2, "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := toFields(tt.input...)
			require.Len(t, fields, tt.wantN)
			for _, f := range fields {
				assert.NotEmpty(t, f.Key)
			}
			if tt.wantN > 0 {
				assert.Equal(t, tt.wantK0, fields[0].Key)
			}
		})
	}
}

func TestToFieldKeepsDomainTypesReadable(t *testing.T) {
	raw := toField("directive", json.RawMessage(`{"name":"TurnOn"}`))
	assert.Equal(t, zapcore.ByteStringType, raw.Type)
	assert.Equal(t, `{"name":"TurnOn"}`, string(raw.Interface.([]byte)))

	bin := toField("payload", []byte{0x01})
	assert.Equal(t, zapcore.BinaryType, bin.Type)

	changed := toField("changed", []string{"brightness", "power"})
	assert.Equal(t, zapcore.ArrayMarshalerType, changed.Type)

	assert.Equal(t, zapcore.StringerType, toField("topic", stringer("voicelink/state")).Type)
	assert.Equal(t, zapcore.DurationType, toField("ttl", 2*time.Second).Type)
}

func TestFromContext(t *testing.T) {
	assert.Equal(t, Std(), FromContext(context.Background()))

	l := NewNopLogger().WithValues("user", "alice")
	ctx := IntoContext(context.Background(), l)
	assert.Equal(t, l, FromContext(ctx))
}

func TestOptionsValidate(t *testing.T) {
	o := NewOptions()
	assert.Empty(t, o.Validate())

	o.Format = "xml"
	o.Level = "loud"
	assert.Len(t, o.Validate(), 2)
}

type stringer string

func (s stringer) String() string { return string(s) }
