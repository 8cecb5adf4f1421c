package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opencode-webapp/agentdesk"
)

var (
	executeAgent  string
	executeModel  string
	executeFollow bool
	executeJSON   bool

	agentsRunFollow bool
	agentsRunJSON   bool
)

// ============================================================================
// execute
// ============================================================================

var executeCmd = &cobra.Command{
	Use:   "execute <session-id> <message>",
	Short: "Run an agent in a session and wait for its response",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, message := args[0], strings.Join(args[1:], " ")
		client, cfg := getClient()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if executeFollow {
			s, err := openSession(ctx, client, cfg, sessionID, []string{agentdesk.FeedExecution})
			if err != nil {
				return err
			}
			defer s.Close()
		}

		opts := &agentdesk.ExecuteOptions{AgentName: executeAgent, UserMessage: message}
		if executeModel != "" {
			opts.Options = map[string]any{"model": executeModel}
		}
		res, taskID, err := client.Sessions.Execute(ctx, sessionID, opts)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		if executeJSON {
			return printJSON(res)
		}
		if executeFollow {
			// The stream already rendered the conversation.
			fmt.Printf("Task %s done in %.1fs\n", taskID, res.Duration)
		} else {
			fmt.Println(res.Response)
			fmt.Println()
			fmt.Printf("Task:     %s\n", taskID)
			fmt.Printf("Duration: %.1fs\n", res.Duration)
		}
		if len(res.ToolsUsed) > 0 {
			fmt.Printf("Tools:    %s\n", strings.Join(res.ToolsUsed, ", "))
		}
		if res.Error != nil {
			return fmt.Errorf("agent error: %s", *res.Error)
		}
		return nil
	},
}

// ============================================================================
// agents run
// ============================================================================

var agentsRunCmd = &cobra.Command{
	Use:   "run <agent> <message>",
	Short: "Queue an agent run in a new session",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, message := args[0], strings.Join(args[1:], " ")
		client, cfg := getClient()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		reqCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()

		task, err := client.Agents.Execute(reqCtx, agent, &agentdesk.AgentExecuteOptions{Message: message})
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		if agentsRunJSON {
			return printJSON(task)
		}
		fmt.Printf("Task %s %s (session %s)\n", task.TaskID, task.Status, task.SessionID)
		if !agentsRunFollow || task.SessionID == "" {
			return nil
		}

		s, err := openSession(ctx, client, cfg, task.SessionID, []string{agentdesk.FeedExecution, agentdesk.FeedTelemetry})
		if err != nil {
			return err
		}
		defer s.Close()

		phase := waitForCompletion(ctx, s.store)
		if phase == agentdesk.ExecutionFailed {
			return fmt.Errorf("agent %s failed", agent)
		}
		return nil
	},
}

// waitForCompletion blocks until the session's execution reaches a terminal
// phase or ctx is done.
func waitForCompletion(ctx context.Context, store *agentdesk.MemoryStore) agentdesk.ExecutionPhase {
	changed := make(chan struct{}, 1)
	store.Subscribe(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	for {
		switch phase := store.Snapshot().Execution.Phase; phase {
		case agentdesk.ExecutionFinished, agentdesk.ExecutionFailed, agentdesk.ExecutionStopped:
			return phase
		}
		select {
		case <-ctx.Done():
			return store.Snapshot().Execution.Phase
		case <-changed:
		}
	}
}

// ============================================================================
// Registration
// ============================================================================

func init() {
	executeCmd.Flags().StringVarP(&executeAgent, "agent", "a", "build", "Agent to run")
	executeCmd.Flags().StringVarP(&executeModel, "model", "m", "", "Model override")
	executeCmd.Flags().BoolVarP(&executeFollow, "follow", "f", false, "Render the execution stream while waiting")
	executeCmd.Flags().BoolVar(&executeJSON, "json", false, "Output raw JSON")

	agentsRunCmd.Flags().BoolVarP(&agentsRunFollow, "follow", "f", false, "Follow the session until the run ends")
	agentsRunCmd.Flags().BoolVar(&agentsRunJSON, "json", false, "Output raw JSON")

	rootCmd.AddCommand(executeCmd)
}
