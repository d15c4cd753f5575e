package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEcho_Execute(t *testing.T) {
	out, err := NewEcho().Execute(context.Background(), map[string]any{"x": 1.0}, nil)
	require.NoError(t, err)
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, "Executed with {'x': 1}", out["result"])
}

func TestEcho_Definition(t *testing.T) {
	def := NewEcho().Definition()
	assert.Equal(t, EchoName, def.Name)
	assert.NotEmpty(t, def.Description)
}

func TestFormatArguments(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"empty", map[string]any{}, "{}"},
		{"nil", nil, "{}"},
		{"sorted keys", map[string]any{"b": "two", "a": 1.5}, "{'a': 1.5, 'b': 'two'}"},
		{"bool and none", map[string]any{"ok": true, "v": nil}, "{'ok': True, 'v': None}"},
		{"nested", map[string]any{"m": map[string]any{"k": []any{1.0, "s"}}}, "{'m': {'k': [1, 's']}}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatArguments(tt.args))
		})
	}
}
