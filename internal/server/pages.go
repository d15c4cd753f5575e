package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/opspawn/agentkit/pkg/catalogue"
	"github.com/opspawn/agentkit/pkg/directory"
)

const pagesLogPrefix = "server:pages"

const pageStyle = `
    * { box-sizing: border-box; }
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    a { color: #0066cc; }
    h1, h2, h3 { color: #0066cc; }
    .status-healthy { color: #0066cc; font-weight: bold; }
    .status-unhealthy { color: #cc0000; font-weight: bold; }
    table { border-collapse: collapse; width: 100%; max-width: 900px; margin-top: 0.5rem; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; vertical-align: top; }
    th { background: #f0f4f8; color: #0066cc; }
    .stat { font-weight: bold; color: #0066cc; }
    .meta { color: #333; font-size: 0.9rem; margin-top: 1rem; }
    section { margin-bottom: 2rem; }
    pre { background: #f5f5f5; padding: 0.75rem; overflow-x: auto; font-size: 0.85rem; border: 1px solid #eee; }
    .btn { display: inline-block; padding: 0.5rem 1rem; background: #0066cc; color: #fff; text-decoration: none; border-radius: 4px; }
`

// homePageTemplate lists health, registered agents and the tool catalogue.
const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>agentkit</title>
  <style>{{.Style}}</style>
</head>
<body>
  <h1>agentkit</h1>
  <p class="meta">Agent directory, tool catalogue and dispatch status.</p>

  <section>
    <h2>Health</h2>
    <p>Status: <span class="status-{{.Health.Status}}">{{.Health.Status}}</span></p>
    {{with .Health.Scheduler}}<p>Dispatch queue: <span class="stat">{{.Queued}}</span> / {{.Capacity}} ({{.Delivered}} delivered, {{.Failed}} failed)</p>{{end}}
    <p>Timestamp: {{.Health.Timestamp}}</p>
  </section>

  <section>
    <h2>Agents ({{len .Agents}})</h2>
    {{if not .Agents}}
    <p>No agents registered.</p>
    {{else}}
    <table>
      <thead><tr><th>Name</th><th>Version</th><th>Capabilities</th><th>Agent ID</th><th>Callback</th></tr></thead>
      <tbody>
        {{range .Agents}}
        <tr>
          <td>{{.AgentName}}</td>
          <td>{{.Version}}</td>
          <td>{{range .Capabilities}}{{.}} {{end}}</td>
          <td><code>{{.AgentID}}</code></td>
          <td>{{if .CallbackAddress}}{{.CallbackAddress}}{{else}}-{{end}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>
    {{end}}
  </section>

  <section>
    <h2>Tools ({{len .Tools}})</h2>
    {{if not .Tools}}
    <p>No tools registered.</p>
    {{else}}
    <table>
      <thead><tr><th>Tool</th><th>Kind</th><th>Description</th></tr></thead>
      <tbody>
        {{range .Tools}}
        <tr>
          <td><a href="/tools/{{.Name}}">{{.Name}}</a></td>
          <td>{{.Kind}}</td>
          <td>{{.Description}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>
    {{end}}
  </section>
</body>
</html>
`

// toolDetailPageTemplate renders one catalogue entry.
const toolDetailPageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Tool.Name}} - agentkit</title>
  <style>{{.Style}}</style>
</head>
<body>
  <p><a href="/">&larr; Back</a></p>
  <h1>{{.Tool.Name}}</h1>
  {{if .Tool.Description}}<p class="meta">{{.Tool.Description}}</p>{{end}}
  <p><a href="/tools/{{.Tool.Name}}/docs" class="btn">View API (Swagger)</a></p>
  <table>
    <tr><th>Kind</th><td>{{.Tool.Kind}}</td></tr>
    {{if .Tool.Endpoint}}<tr><th>Endpoint</th><td>{{.Tool.Endpoint}}</td></tr>{{end}}
  </table>
  <section>
    <h2>Parameters</h2>
    {{if .Tool.Parameters}}<pre>{{json .Tool.Parameters}}</pre>{{else}}<p>No parameter schema.</p>{{end}}
  </section>
</body>
</html>
`

// swaggerUIPage embeds Swagger UI from CDN and loads the tool's OpenAPI document.
const swaggerUIPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>API - {{.Name}}</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.onload = function() {
      SwaggerUIBundle({
        url: "{{.SpecURL}}",
        dom_id: "#swagger-ui",
        presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset]
      });
    };
  </script>
</body>
</html>
`

type homeData struct {
	Style  template.CSS
	Health *HealthOutput
	Agents []directory.AgentRecord
	Tools  []catalogue.Descriptor
}

type toolDetailData struct {
	Style template.CSS
	Tool  catalogue.Descriptor
}

func (s *Server) handleHome() http.HandlerFunc {
	tmpl := template.Must(template.New("home").Parse(homePageTemplate))
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()

		agents, _ := s.dir.List(directory.ListInput{})
		data := homeData{
			Style:  template.CSS(pageStyle),
			Health: s.health(ctx),
			Agents: agents,
			Tools:  s.cat.List(),
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template execute: %v", pagesLogPrefix, err))
		}
	}
}

// describeTool returns the catalogue descriptor for name.
func (s *Server) describeTool(name string) (catalogue.Descriptor, bool) {
	for _, d := range s.cat.List() {
		if d.Name == name {
			return d, true
		}
	}
	return catalogue.Descriptor{}, false
}

func (s *Server) handleToolDetail() http.HandlerFunc {
	tmpl := template.Must(template.New("toolDetail").Funcs(template.FuncMap{
		"json": func(v any) string {
			b, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return fmt.Sprintf("%v", v)
			}
			return string(b)
		},
	}).Parse(toolDetailPageTemplate))
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := s.describeTool(r.PathValue("name"))
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, toolDetailData{Style: template.CSS(pageStyle), Tool: d}); err != nil {
			slog.Error(fmt.Sprintf("%s - tool detail template execute: %v", pagesLogPrefix, err))
		}
	}
}

func (s *Server) handleToolOpenAPI() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := s.describeTool(r.PathValue("name"))
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=60")
		if err := json.NewEncoder(w).Encode(buildOpenAPISpec(d)); err != nil {
			slog.Error(fmt.Sprintf("%s - openapi json encode: %v", pagesLogPrefix, err))
		}
	}
}

func (s *Server) handleToolDocs() http.HandlerFunc {
	tmpl := template.Must(template.New("swagger").Parse(swaggerUIPage))
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := s.describeTool(r.PathValue("name"))
		if !ok {
			http.NotFound(w, r)
			return
		}
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		specURL := scheme + "://" + r.Host + "/tools/" + url.PathEscape(d.Name) + "/openapi.json"
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, map[string]string{"Name": d.Name, "SpecURL": specURL}); err != nil {
			slog.Error(fmt.Sprintf("%s - swagger template execute: %v", pagesLogPrefix, err))
		}
	}
}
