package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opspawn/agentkit/pkg/catalogue"
	"github.com/opspawn/agentkit/pkg/sdk"
)

func newToolsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List tools in the service catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tools, err := opts.client().ListTools(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing tools: %w", err)
			}
			w := cmd.OutOrStdout()
			if opts.format() == outputJSON {
				return printJSON(w, tools)
			}
			if len(tools) == 0 {
				fmt.Fprintln(w, "No tools registered")
				return nil
			}
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tKIND\tENDPOINT\tDESCRIPTION")
			for _, d := range tools {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Name, d.Kind, orDash(d.Endpoint), d.Description)
			}
			return tw.Flush()
		},
	}
}

func newRegisterToolCmd(opts *cliOptions) *cobra.Command {
	var (
		tool       sdk.ExternalTool
		paramsJSON string
	)
	cmd := &cobra.Command{
		Use:   "register-tool",
		Short: "Bind an external HTTP tool in the service catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := catalogue.ValidateEndpoint(tool.Endpoint); err != nil {
				return fmt.Errorf("invalid endpoint URL provided: %s", tool.Endpoint)
			}
			params, err := parseJSONObject("parameters", paramsJSON)
			if err != nil {
				return err
			}
			tool.Parameters = params
			if err := opts.client().RegisterExternalTool(cmd.Context(), tool); err != nil {
				return fmt.Errorf("registering tool: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tool '%s' registered -> %s\n", tool.Name, tool.Endpoint)
			return nil
		},
	}
	cmd.Flags().StringVarP(&tool.Name, "name", "n", "", "tool name")
	cmd.Flags().StringVarP(&tool.Endpoint, "endpoint", "e", "", "URL the tool is invoked at with POST {\"arguments\": ...}")
	cmd.Flags().StringVarP(&tool.Description, "description", "d", "", "tool description")
	cmd.Flags().StringVarP(&paramsJSON, "parameters", "p", "", "parameter schema as a JSON object")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("endpoint")
	return cmd
}

func newDeliveriesCmd(opts *cliOptions) *cobra.Command {
	var params sdk.ListDeliveriesParams
	cmd := &cobra.Command{
		Use:   "deliveries <agent-id>",
		Short: "Show recorded deferred deliveries for an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := opts.client().ListDeliveries(cmd.Context(), args[0], params)
			if err != nil {
				return fmt.Errorf("listing deliveries: %w", err)
			}
			w := cmd.OutOrStdout()
			if opts.format() == outputJSON {
				return printJSON(w, records)
			}
			if len(records) == 0 {
				fmt.Fprintln(w, "No deliveries recorded")
				return nil
			}
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "DELIVERY\tSTATUS\tFAILURE\tHTTP\tDURATION\tSENDER\tTYPE")
			for _, r := range records {
				failure, code := "-", "-"
				if r.FailureKind != nil {
					failure = *r.FailureKind
				}
				if r.StatusCode != nil {
					code = strconv.Itoa(*r.StatusCode)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%dms\t%s\t%s\n", r.ID, r.Status, failure, code, r.DurationMs, r.SenderID, r.MessageKind)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&params.Status, "status", "", "filter by status (delivered or failed)")
	cmd.Flags().IntVar(&params.Limit, "limit", 0, "maximum number of records")
	return cmd
}
