package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/todosync/internal/model"
)

var (
	todoDate       string
	todoDeadline   string
	todoMemo       string
	todoDifficulty int
	todoMinutes    int
	todoImportant  bool
	todoLife       bool
	todoTag        string
)

var todoCmd = &cobra.Command{
	Use:   "todo",
	Short: "Work with todos",
}

var todoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List todos, optionally for one day or month",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := userID()
		if err != nil {
			return err
		}
		e, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		todos, err := e.Todos.List(cmd.Context(), user, todoDate)
		if err != nil {
			return err
		}
		if len(todos) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No todos.")
			return nil
		}

		rows := make([][]string, 0, len(todos))
		for _, t := range todos {
			done := " "
			if t.IsCompleted {
				done = "x"
			}
			tag := ""
			if t.TagID != nil {
				tag = shortID(*t.TagID)
			}
			rows = append(rows, []string{
				shortID(t.ID), done, t.Deadline, t.Title,
				fmt.Sprintf("%d", t.Difficulty), fmt.Sprintf("%dm", t.EstimatedMinutes),
				yesNo(t.IsImportant), tag,
			})
		}
		printTable(cmd.OutOrStdout(),
			[]string{"ID", "DONE", "DEADLINE", "TITLE", "DIFF", "EST", "IMPORTANT", "TAG"}, rows)
		return nil
	},
}

var todoAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a todo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := userID()
		if err != nil {
			return err
		}
		e, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		deadline := todoDeadline
		if deadline == "" {
			deadline = time.Now().Format(model.DateLayout)
		}
		todo := model.Todo{
			UserID:           user,
			Title:            args[0],
			Memo:             todoMemo,
			Deadline:         deadline,
			IsImportant:      todoImportant,
			IsLife:           todoLife,
			Difficulty:       todoDifficulty,
			EstimatedMinutes: todoMinutes,
		}
		if todoTag != "" {
			todo.TagID = &todoTag
		}

		created, err := e.Todos.Create(cmd.Context(), todo)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s %q (%s).\n", shortID(created.ID), created.Title, onlineLabel(e.Monitor.Online()))
		return nil
	},
}

var todoToggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Flip a todo between done and not done",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		todo, err := e.Todos.Toggle(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		state := "open"
		if todo.IsCompleted {
			state = "done"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s.\n", shortID(todo.ID), state)
		return nil
	},
}

var todoEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change fields of a todo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		todo, err := e.Todos.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("title") {
			todo.Title, _ = flags.GetString("title")
		}
		if flags.Changed("deadline") {
			todo.Deadline = todoDeadline
		}
		if flags.Changed("memo") {
			todo.Memo = todoMemo
		}
		if flags.Changed("difficulty") {
			todo.Difficulty = todoDifficulty
		}
		if flags.Changed("minutes") {
			todo.EstimatedMinutes = todoMinutes
		}
		if flags.Changed("important") {
			todo.IsImportant = todoImportant
		}
		if flags.Changed("life") {
			todo.IsLife = todoLife
		}
		if flags.Changed("tag") {
			if todoTag == "" {
				todo.TagID = nil
			} else {
				todo.TagID = &todoTag
			}
		}
		todo.UpdatedAt = time.Now().UTC()

		updated, err := e.Todos.Update(cmd.Context(), todo)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s %q.\n", shortID(updated.ID), updated.Title)
		return nil
	},
}

var todoRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a todo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.Todos.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", shortID(args[0]))
		return nil
	},
}

func init() {
	todoListCmd.Flags().StringVar(&todoDate, "date", "", "Deadline prefix, e.g. 2026-10 or 2026-10-14")

	todoAddCmd.Flags().StringVar(&todoDeadline, "deadline", "", "Deadline as YYYY-MM-DD (default today)")
	todoAddCmd.Flags().StringVar(&todoMemo, "memo", "", "Free-form note")
	todoAddCmd.Flags().IntVar(&todoDifficulty, "difficulty", model.DifficultyMin, "Difficulty from 1 to 5")
	todoAddCmd.Flags().IntVar(&todoMinutes, "minutes", 0, "Estimated minutes")
	todoAddCmd.Flags().BoolVar(&todoImportant, "important", false, "Mark as important")
	todoAddCmd.Flags().BoolVar(&todoLife, "life", false, "Mark as a life (non-work) task")
	todoAddCmd.Flags().StringVar(&todoTag, "tag", "", "Tag id")

	todoEditCmd.Flags().String("title", "", "New title")
	todoEditCmd.Flags().StringVar(&todoDeadline, "deadline", "", "Deadline as YYYY-MM-DD")
	todoEditCmd.Flags().StringVar(&todoMemo, "memo", "", "Free-form note")
	todoEditCmd.Flags().IntVar(&todoDifficulty, "difficulty", model.DifficultyMin, "Difficulty from 1 to 5")
	todoEditCmd.Flags().IntVar(&todoMinutes, "minutes", 0, "Estimated minutes")
	todoEditCmd.Flags().BoolVar(&todoImportant, "important", false, "Mark as important")
	todoEditCmd.Flags().BoolVar(&todoLife, "life", false, "Mark as a life (non-work) task")
	todoEditCmd.Flags().StringVar(&todoTag, "tag", "", "Tag id; empty clears it")

	todoCmd.AddCommand(todoListCmd)
	todoCmd.AddCommand(todoAddCmd)
	todoCmd.AddCommand(todoEditCmd)
	todoCmd.AddCommand(todoToggleCmd)
	todoCmd.AddCommand(todoRmCmd)
	rootCmd.AddCommand(todoCmd)
}
