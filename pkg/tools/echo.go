// Package tools provides the local tools bundled with the service.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/opspawn/agentkit/pkg/catalogue"
)

// EchoName is the catalogue name of the echo tool.
const EchoName = "echo"

// Echo reports back the arguments it was called with.
type Echo struct{}

// NewEcho creates the echo tool.
func NewEcho() *Echo {
	return &Echo{}
}

func (e *Echo) Definition() catalogue.Definition {
	return catalogue.Definition{
		Name:        EchoName,
		Description: "Returns the arguments it was invoked with.",
		Parameters: map[string]any{
			"type":                 "object",
			"additionalProperties": true,
		},
	}
}

func (e *Echo) Execute(_ context.Context, arguments, _ map[string]any) (map[string]any, error) {
	return map[string]any{
		"status": "success",
		"result": "Executed with " + FormatArguments(arguments),
	}, nil
}

// FormatArguments renders a mapping as {'key': value, ...} with keys sorted.
func FormatArguments(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quote(k))
		b.WriteString(": ")
		b.WriteString(formatValue(args[k]))
	}
	b.WriteByte('}')
	return b.String()
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case string:
		return quote(t)
	case bool:
		if t {
			return "True"
		}
		return "False"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any:
		return FormatArguments(t)
	case []any:
		parts := make([]string, len(t))
		for i, item := range t {
			parts[i] = formatValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprint(t)
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}
