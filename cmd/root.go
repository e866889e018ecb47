// Package cmd implements the llamagate command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "llamagate",
	Short: "llamagate - HTTP gateway for local LLM inference",
	Long: `llamagate serves an HTTP API in front of a local inference engine.

It manages chat sessions with automatic history trimming, caches uploaded
documents as one-shot prompt context, and streams generated tokens over
Server-Sent Events.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Bare invocation starts the server
		return runServe(cmd.Context())
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
