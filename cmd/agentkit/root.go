package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/opspawn/agentkit/pkg/sdk"
)

// Version is set at build time.
var Version = "dev"

// envAPIURL overrides the default API URL when --api-url is not given.
const envAPIURL = "AGENTKIT_API_URL"

type outputFormat string

const (
	outputTable outputFormat = "table"
	outputJSON  outputFormat = "json"
)

func parseOutputFormat(s string) outputFormat {
	if strings.EqualFold(s, string(outputJSON)) {
		return outputJSON
	}
	return outputTable
}

// cliOptions are the persistent flags shared by every command.
type cliOptions struct {
	apiURL  string
	timeout time.Duration
	output  string
}

func (o *cliOptions) client() *sdk.Client {
	return sdk.NewClient(sdk.NewClientParams{
		BaseURL:    o.apiURL,
		HTTPClient: newHTTPClient(o.timeout),
	})
}

func (o *cliOptions) format() outputFormat {
	return parseOutputFormat(o.output)
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "agentkit",
		Short:         "agentkit CLI - interact with the agentkit API",
		Long:          "agentkit registers agents and tools with a running agentkitd and sends messages between agents.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := os.Getenv(envAPIURL)
	if defaultURL == "" {
		defaultURL = sdk.DefaultBaseURL
	}
	root.PersistentFlags().StringVar(&opts.apiURL, "api-url", defaultURL, "agentkit API URL (env "+envAPIURL+")")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", sdk.DefaultTimeout, "per-request timeout")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", string(outputTable), "output format: table or json")

	root.AddCommand(
		newRegisterCmd(opts),
		newAgentsCmd(opts),
		newAgentCmd(opts),
		newRemoveCmd(opts),
		newSendCmd(opts),
		newToolsCmd(opts),
		newRegisterToolCmd(opts),
		newDeliveriesCmd(opts),
	)
	return root
}

// parseJSONObject decodes a flag or argument that must hold a JSON object. Empty input is nil.
func parseJSONObject(what, raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("invalid JSON provided for %s: %w", what, err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s must be a JSON object", what)
	}
	return m, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
