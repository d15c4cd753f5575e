package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opspawn/agentkit/pkg/dispatcher"
	"github.com/opspawn/agentkit/pkg/message"
)

func newSendCmd(opts *cliOptions) *cobra.Command {
	var (
		senderID    string
		kind        string
		sessionJSON string
		taskName    string
	)
	cmd := &cobra.Command{
		Use:   "send <target-agent-id> <payload-json>",
		Short: "Send a message to an agent",
		Long: `Send a message to an agent through the service.
A message of type tool_invocation runs the tool named in payload.tool_name and prints its result;
any other type is accepted for deferred delivery to the agent's callback endpoint.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := args[0]
			payload, err := parseJSONObject("payload", args[1])
			if err != nil {
				return err
			}
			session, err := parseJSONObject("session context", sessionJSON)
			if err != nil {
				return err
			}

			msg := message.New(senderID, kind, payload)
			msg.SessionContext = session
			msg.TaskName = taskName

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Sending message type '%s' from '%s' to agent '%s'...\n", kind, senderID, target)
			outcome, err := opts.client().SendMessage(cmd.Context(), target, msg)
			if err != nil {
				return fmt.Errorf("sending message: %w", err)
			}
			return printOutcome(cmd, opts, outcome)
		},
	}
	cmd.Flags().StringVarP(&senderID, "sender", "s", "", "ID of the sending agent")
	cmd.Flags().StringVarP(&kind, "type", "t", "", "message type (e.g. intent_query, tool_invocation)")
	cmd.Flags().StringVar(&sessionJSON, "session", "", "session context as a JSON object")
	cmd.Flags().StringVar(&taskName, "task", "", "task name carried with the message")
	_ = cmd.MarkFlagRequired("sender")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func printOutcome(cmd *cobra.Command, opts *cliOptions, outcome *dispatcher.Outcome) error {
	w := cmd.OutOrStdout()
	if opts.format() == outputJSON {
		return printJSON(w, outcome)
	}
	switch outcome.Status {
	case dispatcher.StatusAccepted:
		fmt.Fprintln(w, "Message accepted for delivery")
	default:
		fmt.Fprintln(w, "Message sent successfully!")
	}
	if outcome.Summary != "" {
		fmt.Fprintln(w, outcome.Summary)
	}
	fmt.Fprintln(w, "Response Data:")
	return printJSON(w, outcome.Payload)
}
