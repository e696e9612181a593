package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	switchboard "github.com/omnihelp/switchboard"
	"github.com/omnihelp/switchboard/internal/cli"
)

var askCmd = &cobra.Command{
	Use:   "ask [query]",
	Short: "Run one support turn from the terminal",
	Long: `Runs a single turn for the given query. With --interactive, clarifying
questions are asked inline on the terminal; otherwise an ambiguous turn
suspends and prints the session ID to continue with 'ask --reply'.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		sessionID, _ := cmd.Flags().GetString("session")
		reply, _ := cmd.Flags().GetBool("reply")
		interactive, _ := cmd.Flags().GetBool("interactive")
		showTrail, _ := cmd.Flags().GetBool("trail")
		query := strings.Join(args, " ")

		var opts []switchboard.Option
		if interactive {
			opts = append(opts, switchboard.WithElicitor(&cli.PromptElicitor{
				In:  os.Stdin,
				Out: os.Stderr,
			}))
		}

		board, cleanup, err := cli.Build(cmd.Context(), cfg, logger, opts...)
		if err != nil {
			return err
		}
		defer cleanup()

		var out *switchboard.Outcome
		if reply {
			if sessionID == "" {
				return fmt.Errorf("--reply requires --session")
			}
			out, err = board.Reply(cmd.Context(), sessionID, query)
		} else {
			out, err = board.Ask(cmd.Context(), sessionID, query)
		}
		if err != nil {
			return err
		}

		cli.PrintOutcome(os.Stdout, out, cli.NewMarkdownRenderer(), showTrail)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringP("session", "s", "", "Session ID (generated when empty)")
	askCmd.Flags().Bool("reply", false, "Treat the query as a clarification reply for a suspended session")
	askCmd.Flags().BoolP("interactive", "i", false, "Answer clarifying questions inline instead of suspending")
	askCmd.Flags().Bool("trail", false, "Print the decision trail after the answer")
}
