package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/taskweave/taskweave/internal/config"
	"github.com/taskweave/taskweave/internal/trace"
)

var (
	runsLimit int
	traceYAML bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List persisted runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openTraceDB()
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.Runs(runsLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		for _, run := range runs {
			marker := color.GreenString("✓")
			switch run.Status {
			case trace.RunStatusFailed:
				marker = color.RedString("✗")
			case trace.RunStatusCancelled:
				marker = color.YellowString("⚠")
			}
			fmt.Printf("%s %s  %s  %s\n", marker, run.ID, run.StartedAt.Local().Format("2006-01-02 15:04"), run.RootContent)
		}
		return nil
	},
}

var traceCmd = &cobra.Command{
	Use:   "trace <run-id>",
	Short: "Show the packet trace of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openTraceDB()
		if err != nil {
			return err
		}
		defer db.Close()

		run, err := db.LoadRun(args[0])
		if err != nil {
			return err
		}

		if traceYAML {
			out, err := trace.ExportYAML(run)
			if err != nil {
				return err
			}
			os.Stdout.Write(out)
			return nil
		}

		fmt.Printf("%s %s\n", color.New(color.Bold).Sprint("Run:"), run.ID)
		fmt.Printf("Task:   %s\n", run.RootContent)
		fmt.Printf("Status: %s\n", run.Status)
		if run.Error != "" {
			fmt.Printf("Error:  %s\n", run.Error)
		}
		fmt.Println()
		for _, record := range run.Packets {
			line := fmt.Sprintf("%-12s %-10s %s -> %s", record.TaskID, record.Status, record.PublisherID, record.AssigneeID)
			if record.Attempt > 0 {
				line += fmt.Sprintf("  (attempt %d)", record.Attempt)
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs to list")
	traceCmd.Flags().BoolVar(&traceYAML, "yaml", false, "Export the run as YAML")
}

// openTraceDB opens and migrates the trace database from config.
func openTraceDB() (*trace.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	path := cfg.Trace.DBPath
	if path == "" {
		path = trace.DefaultDBPath()
	}

	db, err := trace.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
