package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/todosync/internal/app"
	"github.com/nhle/todosync/internal/queue"
)

var queueYes bool

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and manage deferred operations",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued operations in replay order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := app.NewEngine(cmd.Context(), cfg, logger, tokenStore())
		if err != nil {
			return err
		}
		defer e.Close()

		ops := e.Queue.Operations()
		if len(ops) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty.")
			return nil
		}

		rows := make([][]string, 0, len(ops))
		for _, op := range ops {
			target := "?"
			if op.Payload != nil {
				target = op.Payload.EntityID()
			}
			rows = append(rows, []string{
				shortID(op.ID),
				string(op.Kind),
				target,
				string(op.Status),
				fmt.Sprintf("%d/%d", op.RetryCount, queue.MaxRetries),
				op.CreatedAt.Local().Format(time.DateTime),
				op.LastError,
			})
		}
		printTable(cmd.OutOrStdout(),
			[]string{"ID", "KIND", "TARGET", "STATUS", "RETRY", "CREATED", "LAST ERROR"}, rows)
		return nil
	},
}

var queueRequeueCmd = &cobra.Command{
	Use:   "requeue <id>",
	Short: "Give an exhausted operation a fresh set of retries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := app.NewEngine(cmd.Context(), cfg, logger, tokenStore())
		if err != nil {
			return err
		}
		defer e.Close()

		op, err := findOperation(e.Queue.Operations(), args[0])
		if err != nil {
			return err
		}
		if err := e.Queue.Requeue(cmd.Context(), op.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Requeued %s %s.\n", op.Kind, shortID(op.ID))
		return nil
	},
}

var queueDiscardCmd = &cobra.Command{
	Use:   "discard <id>",
	Short: "Drop an operation without sending it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := app.NewEngine(cmd.Context(), cfg, logger, tokenStore())
		if err != nil {
			return err
		}
		defer e.Close()

		op, err := findOperation(e.Queue.Operations(), args[0])
		if err != nil {
			return err
		}

		if !queueYes {
			confirmed := false
			err := huh.NewConfirm().
				Title(fmt.Sprintf("Discard %s %s?", op.Kind, shortID(op.ID))).
				Description("The change will never reach the server.").
				Affirmative("Yes, discard").
				Negative("Cancel").
				Value(&confirmed).
				Run()
			if err != nil {
				return err
			}
			if !confirmed {
				return nil
			}
		}

		if err := e.Queue.Discard(cmd.Context(), op.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Discarded %s %s.\n", op.Kind, shortID(op.ID))
		return nil
	},
}

// findOperation resolves a full id or a unique id prefix.
func findOperation(ops []queue.Operation, ref string) (queue.Operation, error) {
	var matches []queue.Operation
	for _, op := range ops {
		if op.ID == ref {
			return op, nil
		}
		if strings.HasPrefix(op.ID, ref) {
			matches = append(matches, op)
		}
	}
	switch len(matches) {
	case 0:
		return queue.Operation{}, fmt.Errorf("operation %s: %w", ref, queue.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return queue.Operation{}, fmt.Errorf("operation prefix %s is ambiguous (%d matches)", ref, len(matches))
	}
}

func init() {
	queueDiscardCmd.Flags().BoolVarP(&queueYes, "yes", "y", false, "Skip the confirmation prompt")

	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueRequeueCmd)
	queueCmd.AddCommand(queueDiscardCmd)
	rootCmd.AddCommand(queueCmd)
}
