package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/opspawn/agentkit/pkg/catalogue"
)

// remoteTool adapts a RemoteBinding to the catalogue.Tool capability.
type remoteTool struct {
	binding catalogue.RemoteBinding
	caller  RemoteCaller
}

func (t *remoteTool) Definition() catalogue.Definition {
	return t.binding.Definition()
}

// Execute POSTs {"arguments": ...} to the endpoint. The session context is not sent.
func (t *remoteTool) Execute(ctx context.Context, arguments, _ map[string]any) (map[string]any, error) {
	if t.caller == nil {
		return nil, fmt.Errorf("%s - no outbound caller configured for remote tools", logPrefix)
	}
	resp, err := t.caller.PostJSON(ctx, t.binding.EndpointURL, map[string]any{"arguments": arguments})
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(string(resp.Body)) == "" {
		return map[string]any{}, nil
	}
	var decoded any
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return nil, &InvalidResponseError{URL: t.binding.EndpointURL, Err: err}
	}
	if m, ok := decoded.(map[string]any); ok {
		return m, nil
	}
	return map[string]any{"result": decoded}, nil
}
