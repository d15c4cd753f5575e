// Command agentkit is the command-line client for an agentkit service.
package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/opspawn/agentkit/pkg/sdk"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var apiErr *sdk.APIError
		if errors.As(err, &apiErr) && len(apiErr.Body) > 0 {
			fmt.Fprintf(os.Stderr, "API Response Data: %s\n", apiErr.Body)
		}
		os.Exit(1)
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = sdk.DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}
