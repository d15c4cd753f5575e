package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/opspawn/agentkit/pkg/directory"
	"github.com/opspawn/agentkit/pkg/sdk"
)

func newRegisterCmd(opts *cliOptions) *cobra.Command {
	var (
		name         string
		version      string
		endpoint     string
		capabilities []string
		metadataJSON string
		agentID      string
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if endpoint != "" {
				if err := directory.ValidateCallbackAddress(endpoint); err != nil {
					return fmt.Errorf("invalid endpoint URL provided: %s", endpoint)
				}
			}
			metadata, err := parseJSONObject("metadata", metadataJSON)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			c := opts.client()
			fmt.Fprintf(out, "Registering agent '%s' with API at %s...\n", name, c.BaseURL())
			id, err := c.RegisterAgent(cmd.Context(), directory.RegisterInput{
				AgentID:         agentID,
				AgentName:       name,
				Version:         version,
				Capabilities:    capabilities,
				CallbackAddress: endpoint,
				Metadata:        metadata,
			})
			if err != nil {
				return fmt.Errorf("registering agent: %w", err)
			}
			fmt.Fprintf(out, "Agent '%s' registered successfully!\n", name)
			fmt.Fprintf(out, "Agent ID: %s\n", id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "unique name for the agent")
	cmd.Flags().StringVarP(&version, "agent-version", "v", "", "version string for the agent")
	cmd.Flags().StringVarP(&endpoint, "endpoint", "e", "", "callback URL where the agent receives forwarded messages")
	cmd.Flags().StringArrayVarP(&capabilities, "capability", "c", nil, "capability of the agent (repeatable)")
	cmd.Flags().StringVarP(&metadataJSON, "metadata", "m", "", "metadata as a JSON object")
	cmd.Flags().StringVar(&agentID, "id", "", "explicit agent ID (generated when empty)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("agent-version")
	return cmd
}

func newAgentsCmd(opts *cliOptions) *cobra.Command {
	var params sdk.ListAgentsParams
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List registered agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			agents, err := opts.client().ListAgents(cmd.Context(), params)
			if err != nil {
				return fmt.Errorf("listing agents: %w", err)
			}
			if opts.format() == outputJSON {
				return printJSON(cmd.OutOrStdout(), agents)
			}
			return printAgentTable(cmd.OutOrStdout(), agents)
		},
	}
	cmd.Flags().StringVar(&params.Name, "name", "", "filter by agent name")
	cmd.Flags().StringVar(&params.Capability, "capability", "", "filter by capability")
	cmd.Flags().StringVar(&params.Version, "version-constraint", "", "filter by version constraint (e.g. ^1.2)")
	return cmd
}

func newAgentCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "agent <agent-id>",
		Short: "Show one registered agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := opts.client().GetAgent(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("getting agent: %w", err)
			}
			if opts.format() == outputJSON {
				return printJSON(cmd.OutOrStdout(), rec)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:           %s\n", rec.AgentID)
			fmt.Fprintf(out, "Name:         %s\n", rec.AgentName)
			fmt.Fprintf(out, "Version:      %s\n", rec.Version)
			fmt.Fprintf(out, "Capabilities: %s\n", strings.Join(rec.Capabilities, ", "))
			fmt.Fprintf(out, "Endpoint:     %s\n", orDash(rec.CallbackAddress))
			fmt.Fprintf(out, "Registered:   %s\n", rec.RegisteredAt.Format(time.RFC3339))
			return nil
		},
	}
}

func newRemoveCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <agent-id>",
		Short: "Deregister an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.client().RemoveAgent(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("removing agent: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Agent %s removed\n", args[0])
			return nil
		},
	}
}

func printAgentTable(w io.Writer, agents []directory.AgentRecord) error {
	if len(agents) == 0 {
		fmt.Fprintln(w, "No agents registered")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tVERSION\tCAPABILITIES\tENDPOINT")
	for _, a := range agents {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.AgentID, a.AgentName, a.Version, strings.Join(a.Capabilities, ","), orDash(a.CallbackAddress))
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
