package server

import (
	"github.com/opspawn/agentkit/pkg/catalogue"
	"github.com/opspawn/agentkit/pkg/message"
)

// openAPI3 types for documenting how a tool is invoked through the run endpoint.
type openAPI3Spec struct {
	OpenAPI string                      `json:"openapi"`
	Info    openAPI3Info                `json:"info"`
	Paths   map[string]openAPI3PathItem `json:"paths"`
}

type openAPI3Info struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
}

type openAPI3PathItem struct {
	Post *openAPI3Operation `json:"post,omitempty"`
}

type openAPI3Operation struct {
	Summary     string                      `json:"summary"`
	Description string                      `json:"description,omitempty"`
	OperationID string                      `json:"operationId"`
	Parameters  []openAPI3Parameter         `json:"parameters,omitempty"`
	RequestBody *openAPI3RequestBody        `json:"requestBody,omitempty"`
	Responses   map[string]openAPI3Response `json:"responses"`
}

type openAPI3Parameter struct {
	Name     string         `json:"name"`
	In       string         `json:"in"`
	Required bool           `json:"required"`
	Schema   map[string]any `json:"schema"`
}

type openAPI3RequestBody struct {
	Content map[string]openAPI3MediaType `json:"content"`
}

type openAPI3Response struct {
	Description string                       `json:"description"`
	Content     map[string]openAPI3MediaType `json:"content,omitempty"`
}

type openAPI3MediaType struct {
	Schema map[string]any `json:"schema,omitempty"`
}

// buildOpenAPISpec describes the tool_invocation message that runs tool d, with d's
// parameter schema as the arguments object.
func buildOpenAPISpec(d catalogue.Descriptor) *openAPI3Spec {
	arguments := d.Parameters
	if arguments == nil {
		arguments = map[string]any{"type": "object"}
	}
	desc := d.Description
	if desc == "" {
		desc = "Tool " + d.Name
	}

	body := map[string]any{
		"type":     "object",
		"required": []string{"senderId", "messageType", "payload"},
		"properties": map[string]any{
			"senderId":    map[string]any{"type": "string"},
			"messageType": map[string]any{"type": "string", "enum": []string{message.KindToolInvocation}},
			"payload": map[string]any{
				"type":     "object",
				"required": []string{message.BodyToolName},
				"properties": map[string]any{
					message.BodyToolName:  map[string]any{"type": "string", "enum": []string{d.Name}},
					message.BodyArguments: arguments,
				},
			},
		},
	}
	outcome := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"status":     map[string]any{"type": "string", "enum": []string{"success", "error"}},
			"message":    map[string]any{"type": "string"},
			"data":       map[string]any{"type": "object"},
			"error_code": map[string]any{"type": "string"},
		},
	}
	jsonOutcome := map[string]openAPI3MediaType{"application/json": {Schema: outcome}}

	return &openAPI3Spec{
		OpenAPI: "3.0.0",
		Info:    openAPI3Info{Title: d.Name, Description: desc, Version: "1.0.0"},
		Paths: map[string]openAPI3PathItem{
			"/v1/agents/{agentId}/run": {
				Post: &openAPI3Operation{
					Summary:     d.Name,
					Description: d.Description,
					OperationID: d.Name,
					Parameters: []openAPI3Parameter{
						{Name: "agentId", In: "path", Required: true, Schema: map[string]any{"type": "string"}},
					},
					RequestBody: &openAPI3RequestBody{
						Content: map[string]openAPI3MediaType{"application/json": {Schema: body}},
					},
					Responses: map[string]openAPI3Response{
						"200": {Description: "Tool result or handled tool error", Content: jsonOutcome},
						"404": {Description: "Agent or tool not found", Content: jsonOutcome},
						"500": {Description: "Tool crashed", Content: jsonOutcome},
					},
				},
			},
		},
	}
}
