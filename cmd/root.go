package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chemtalk",
	Short: "chemtalk - terminal console for the chemical process simulation agent",
	Long: `chemtalk connects to a process-simulation agent backend over a
websocket and renders the conversation in the terminal: the agent's
reasoning, its tool calls against the simulator, and the flowsheet
artifacts it produces.

Running chemtalk with no arguments opens the interactive console.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
