package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "taskweave",
	Short: "Hierarchical task decomposition and workforce orchestration",
	Long: `Taskweave breaks a task into subtasks with an LLM planner, dispatches
each subtask to a worker agent, and composes the results back up the tree.

When a worker fails its subtask, the supervisor re-decomposes the failed
work and staffs the replacement subtasks with fresh workers, growing the
workforce in response to failure instead of retrying in place.

Core capabilities:
- Decomposes tasks into dependency-ordered subtasks
- Dispatches work to worker agents over a shared channel
- Recovers from failures by re-decomposition with fresh workers
- Composes subtask results into the parent's result
- Persists a full packet trace of every run`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(traceCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
