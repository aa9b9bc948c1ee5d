package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/todosync/internal/app"
	"github.com/nhle/todosync/internal/queue"
	appsync "github.com/nhle/todosync/internal/sync"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connectivity and queue depth",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Backend: %s (%s)\n", cfg.API.BaseURL, onlineLabel(e.Monitor.Online()))
		fmt.Fprintf(out, "Store:   %s\n", cfg.Store.Path)
		counts := e.Queue.Counts()
		fmt.Fprintf(out, "Queue:   %d pending, %d parked, %d unreadable\n",
			counts[queue.StatusPending],
			counts[queue.StatusMaxRetriesExceeded],
			counts[queue.StatusFailed])
		return nil
	},
}

var drainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Replay queued operations against the backend now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		out := cmd.OutOrStdout()
		if !e.Monitor.Online() {
			fmt.Fprintf(out, "Backend unreachable; %d operations stay queued.\n", e.Queue.Counts()[queue.StatusPending])
			return nil
		}

		res := e.Queue.Drain(cmd.Context())
		printDrain(cmd, appsync.TriggerManual, res)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Stay in the foreground and drain whenever the backend is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := app.NewEngine(ctx, cfg, logger, tokenStore())
		if err != nil {
			return err
		}
		defer e.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "Watching %s. Press Ctrl+C to stop.\n", cfg.Connectivity.ProbeURL)
		e.Start(ctx)

		results := make(chan appsync.DrainResultMsg)
		go func() {
			defer close(results)
			wait := e.Scheduler.WaitForResult()
			for {
				msg, ok := wait().(appsync.DrainResultMsg)
				if !ok {
					return
				}
				select {
				case results <- msg:
				case <-ctx.Done():
					return
				}
			}
		}()

		for {
			select {
			case <-ctx.Done():
				fmt.Fprintln(cmd.OutOrStdout(), "Stopping.")
				return nil
			case msg, ok := <-results:
				if !ok {
					return nil
				}
				printDrain(cmd, msg.Trigger, msg.Result)
			}
		}
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Browse the sync queue interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := app.NewEngine(ctx, cfg, logger, tokenStore())
		if err != nil {
			return err
		}
		defer e.Close()

		e.Start(ctx)
		p := tea.NewProgram(app.New(e.Queue, e.Scheduler), tea.WithAltScreen(), tea.WithContext(ctx))
		_, err = p.Run()
		if err != nil && ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func printDrain(cmd *cobra.Command, t appsync.Trigger, res queue.DrainResult) {
	out := cmd.OutOrStdout()
	if res.Skipped {
		fmt.Fprintln(out, "A drain is already running.")
		return
	}
	fmt.Fprintf(out, "%s drain: %d attempted, %d succeeded, %d will retry, %d parked, %d deferred\n",
		t, res.Attempted, res.Succeeded, res.Retried, res.Exhausted+res.Rejected, res.Deferred)
	if res.Interrupted {
		fmt.Fprintln(out, "Drain interrupted; remaining operations stay queued.")
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(drainCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(inspectCmd)
}
