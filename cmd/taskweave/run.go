package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/taskweave/taskweave/internal/channel"
	"github.com/taskweave/taskweave/internal/config"
	"github.com/taskweave/taskweave/internal/oracle"
	"github.com/taskweave/taskweave/internal/trace"
	"github.com/taskweave/taskweave/internal/workforce"
	"github.com/taskweave/taskweave/pkg/models"
)

var (
	runWorkers     int
	runModel       string
	runTimeout     time.Duration
	runMaxRecovery int
	runPolicy      string
	runNoTrace     bool
	runShowTree    bool
)

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Decompose a task and run it with a workforce of agents",
	Long: `Run a task through the workforce.

The task is decomposed into dependency-ordered subtasks by an LLM planner.
Each subtask is dispatched to a worker agent over the shared channel; a
subtask blocks until everything it depends on has finished. Failed
subtasks are re-decomposed and staffed with fresh workers, recursively,
until the work succeeds or the recovery budget for that lineage runs out.

When the run finishes, the composed result is printed and the full packet
trace is saved so it can be inspected later with 'taskweave trace'.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTask,
}

func init() {
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "Number of workers staffed at startup (default from config)")
	runCmd.Flags().StringVar(&runModel, "model", "", "Claude model to use (default from config)")
	runCmd.Flags().DurationVar(&runTimeout, "task-timeout", 0, "Per-subtask timeout (default from config)")
	runCmd.Flags().IntVar(&runMaxRecovery, "max-recovery", -1, "Recovery attempts per task lineage (default from config)")
	runCmd.Flags().StringVar(&runPolicy, "policy", "", "Assignment policy: round_robin or random")
	runCmd.Flags().BoolVar(&runNoTrace, "no-trace", false, "Skip persisting the run trace")
	runCmd.Flags().BoolVar(&runShowTree, "tree", false, "Print the final task tree")
}

func runTask(cmd *cobra.Command, args []string) error {
	taskDescription := args[0]

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyRunFlags(cfg)

	if cfg.Debug.LogFile != "" {
		logger, err := workforce.NewDebugLogger(cfg.Debug.LogFile)
		if err != nil {
			return fmt.Errorf("open debug log: %w", err)
		}
		defer logger.Close()
		workforce.SetDebugLogger(logger)
	}

	factory, err := buildFactory(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootTask := models.NewTask(taskDescription, "0")
	ch := channel.New()

	opts := []workforce.Option{
		workforce.WithInitialTask(rootTask),
		workforce.WithMaxRecoveryAttempts(cfg.Workforce.MaxRecoveryAttempts),
		workforce.WithTaskTimeout(cfg.Workforce.TaskTimeout),
		workforce.WithEventBuffer(cfg.Workforce.EventBuffer),
	}
	if cfg.Workforce.Policy == "random" {
		opts = append(opts, workforce.WithPolicy(workforce.NewRandomPolicy(time.Now().UnixNano())))
	}

	var workers []workforce.Node
	for i := 0; i < cfg.Workforce.Workers; i++ {
		id := uuid.New().String()[:8]
		workers = append(workers, workforce.NewSingleAgentWorker(
			id,
			fmt.Sprintf("worker %d", i+1),
			ch,
			factory.NewSession("You are a diligent worker agent. You complete assigned tasks."),
			cfg.Workforce.TaskTimeout,
		))
	}
	opts = append(opts, workforce.WithChildren(workers...))

	wf := workforce.New("root", "root supervisor", ch, factory, opts...)

	stopEvents := make(chan struct{})
	go printEvents(wf.Events(), stopEvents)

	fmt.Printf("Running: %s\n\n", taskDescription)
	started := time.Now()
	packets, runErr := wf.Start(ctx)
	close(stopEvents)

	printSummary(rootTask, packets, runErr, time.Since(started))

	if cfg.Trace.Enabled && !runNoTrace {
		if err := persistRun(cfg, rootTask, packets, runErr, started); err != nil {
			fmt.Fprintf(os.Stderr, "warning: save trace: %v\n", err)
		}
	}

	return runErr
}

// applyRunFlags layers command-line flags over the loaded config.
func applyRunFlags(cfg *config.Config) {
	if runWorkers > 0 {
		cfg.Workforce.Workers = runWorkers
	}
	if runModel != "" {
		cfg.Anthropic.Model = runModel
	}
	if runTimeout > 0 {
		cfg.Workforce.TaskTimeout = runTimeout
	}
	if runMaxRecovery >= 0 {
		cfg.Workforce.MaxRecoveryAttempts = runMaxRecovery
	}
	if runPolicy == "round_robin" || runPolicy == "random" {
		cfg.Workforce.Policy = runPolicy
	}
}

// buildFactory wires the Anthropic session factory from configuration.
func buildFactory(cfg *config.Config) (*oracle.ClientFactory, error) {
	apiKey, err := config.GetAPIKey(cfg)
	if err != nil && !cfg.Anthropic.AWSBedrock {
		return nil, fmt.Errorf("%w\n\nSet ANTHROPIC_API_KEY or add anthropic.api_key to %s", err, config.GetUserConfigPath())
	}

	return oracle.NewClientFactory(oracle.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        apiKey,
		MaxTokens:     int64(cfg.Anthropic.MaxTokens),
		UseAWSBedrock: cfg.Anthropic.AWSBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	}), nil
}

// printEvents streams workforce events to the terminal until stop closes.
func printEvents(events <-chan workforce.Event, stop <-chan struct{}) {
	for {
		select {
		case ev := <-events:
			switch ev.Type {
			case workforce.EventTaskDispatched:
				fmt.Printf("  %s %s -> %s\n", color.CyanString("→"), ev.TaskID, ev.AssigneeID)
			case workforce.EventTaskCompleted:
				fmt.Printf("  %s %s\n", color.GreenString("✓"), ev.TaskID)
			case workforce.EventTaskFailed:
				fmt.Printf("  %s %s failed\n", color.RedString("✗"), ev.TaskID)
			case workforce.EventRecoveryStarted:
				fmt.Printf("  %s re-decomposing %s (attempt %d)\n", color.YellowString("↻"), ev.TaskID, ev.Attempt)
			case workforce.EventWorkerSpawned:
				fmt.Printf("  %s spawned worker %s for %s\n", color.YellowString("+"), ev.AssigneeID, ev.TaskID)
			}
		case <-stop:
			return
		}
	}
}

// printSummary renders the run outcome.
func printSummary(rootTask *models.Task, packets map[string]*models.Packet, runErr error, elapsed time.Duration) {
	fmt.Println()
	if runErr != nil {
		var permanent *workforce.PermanentFailureError
		if errors.As(runErr, &permanent) {
			fmt.Printf("%s task %s could not be recovered after %d attempts\n",
				color.RedString("✗"), permanent.TaskID, permanent.Attempts)
		} else {
			fmt.Printf("%s run failed: %v\n", color.RedString("✗"), runErr)
		}
	} else {
		fmt.Printf("%s completed in %s (%d packets)\n", color.GreenString("✓"), elapsed.Round(time.Millisecond), len(packets))
		fmt.Printf("\n%s\n%s\n", color.New(color.Bold).Sprint("Result:"), rootTask.Result)
	}

	if runShowTree {
		fmt.Printf("\n%s\n%s", color.New(color.Bold).Sprint("Task tree:"), rootTask.String())
	}
}

// persistRun writes the run and its packet map into the trace database.
func persistRun(cfg *config.Config, rootTask *models.Task, packets map[string]*models.Packet, runErr error, started time.Time) error {
	path := cfg.Trace.DBPath
	if path == "" {
		path = trace.DefaultDBPath()
	}

	db, err := trace.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return err
	}

	status := trace.RunStatusCompleted
	errMsg := ""
	if runErr != nil {
		status = trace.RunStatusFailed
		if errors.Is(runErr, context.Canceled) {
			status = trace.RunStatusCancelled
		}
		errMsg = runErr.Error()
	}

	finished := time.Now()
	runID := uuid.New().String()
	run := trace.Run{
		ID:          runID,
		RootContent: rootTask.Content,
		RootResult:  rootTask.Result,
		Status:      status,
		Error:       errMsg,
		StartedAt:   started,
		FinishedAt:  &finished,
	}

	if err := db.SaveRun(run, packets); err != nil {
		return err
	}

	fmt.Printf("\ntrace saved: %s\n", runID)
	return nil
}
