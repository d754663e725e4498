package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var voteCmd = &cobra.Command{
	Use:   "vote",
	Short: "Vote on issues",
}

var voteCastCmd = &cobra.Command{
	Use:   "cast <issue-id>",
	Short: "Vote for an issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cleanup, err := newRestoredClient(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := client.Votes.Cast(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("vote recorded")
		return nil
	},
}

var voteRetractCmd = &cobra.Command{
	Use:   "retract <issue-id>",
	Short: "Withdraw a vote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cleanup, err := newRestoredClient(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := client.Votes.Retract(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("vote withdrawn")
		return nil
	},
}

var voteStatusCmd = &cobra.Command{
	Use:   "status <issue-id>",
	Short: "Check whether you have voted for an issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cleanup, err := newRestoredClient(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		voted, err := client.Votes.Check(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if voted {
			fmt.Println("voted")
		} else {
			fmt.Println("not voted")
		}
		return nil
	},
}

func init() {
	voteCmd.AddCommand(voteCastCmd, voteRetractCmd, voteStatusCmd)
	rootCmd.AddCommand(voteCmd)
}
