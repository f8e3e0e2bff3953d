package glowctl

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"glowhost/pkg/types"
)

// Config holds the persistent flags shared by every subcommand.
type Config struct {
	Addr string
}

// BuildRootCmd constructs the Cobra command tree wired against a Client
// built from the --addr persistent flag.
func BuildRootCmd() *cobra.Command {
	cfg := &Config{Addr: "http://localhost:8080"}
	var client *Client

	root := &cobra.Command{
		Use:           "glowctl",
		Short:         "Command-line client for glowhostd",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfg.Addr, "addr", cfg.Addr, "glowhostd base URL")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		client = NewClient(cfg.Addr)
	}

	addCmd := &cobra.Command{
		Use:   "add <module.json>",
		Short: "Add a network from a module definition file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read module file: %w", err)
			}
			var body any
			if err := json.Unmarshal(b, &body); err != nil {
				return fmt.Errorf("parse module file: %w", err)
			}
			return client.AddNetwork(context.Background(), body)
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a published network",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.RemoveNetwork(context.Background(), args[0])
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List published and in-flight-add networks",
		RunE: func(cmd *cobra.Command, args []string) error {
			nets, err := client.ListNetworks(context.Background())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), nets)
		},
	}

	dagCmd := &cobra.Command{
		Use:   "dag <name>",
		Short: "Print the compiled DAG for a published network",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dag, err := client.GetNetworkDAG(context.Background(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), dag)
		},
	}

	inferCmd := &cobra.Command{
		Use:   "infer <name> <exec_context.json>",
		Short: "Run a network synchronously against an ExecContext file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read exec context file: %w", err)
			}
			var execCtx types.ExecContext
			if err := json.Unmarshal(b, &execCtx); err != nil {
				return fmt.Errorf("parse exec context file: %w", err)
			}
			out, err := client.Infer(context.Background(), args[0], &execCtx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the host's aggregate status",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := client.Status(context.Background())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), status)
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Tear down every network and release all device resources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.ClearHost(context.Background())
		},
	}

	root.AddCommand(addCmd, removeCmd, listCmd, dagCmd, inferCmd, statusCmd, clearCmd)

	completionCmd := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell"}
	completionCmd.AddCommand(&cobra.Command{Use: "bash", RunE: func(cmd *cobra.Command, args []string) error { return root.GenBashCompletion(os.Stdout) }})
	completionCmd.AddCommand(&cobra.Command{Use: "zsh", RunE: func(cmd *cobra.Command, args []string) error { return root.GenZshCompletion(os.Stdout) }})
	completionCmd.AddCommand(&cobra.Command{Use: "fish", RunE: func(cmd *cobra.Command, args []string) error { return root.GenFishCompletion(os.Stdout, true) }})
	root.AddCommand(completionCmd)

	return root
}
