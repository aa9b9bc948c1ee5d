package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/repository"
)

var tagColor string

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Work with tags",
}

var tagListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tags",
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

		tags, err := e.Tags.List(cmd.Context(), user)
		if err != nil {
			return err
		}
		if len(tags) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No tags.")
			return nil
		}

		rows := make([][]string, 0, len(tags))
		for _, t := range tags {
			rows = append(rows, []string{t.ID, t.Name, "#" + t.Color})
		}
		printTable(cmd.OutOrStdout(), []string{"ID", "NAME", "COLOR"}, rows)
		return nil
	},
}

var tagAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a tag",
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

		created, err := e.Tags.Create(cmd.Context(), model.Tag{
			UserID: user,
			Name:   args[0],
			Color:  strings.TrimPrefix(tagColor, "#"),
		})
		if err != nil {
			return explainTagError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created tag %s %q.\n", shortID(created.ID), created.Name)
		return nil
	},
}

var tagRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a tag",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		tag, err := e.Tags.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		tag.Name = args[1]
		if cmd.Flags().Changed("color") {
			tag.Color = strings.TrimPrefix(tagColor, "#")
		}

		updated, err := e.Tags.Update(cmd.Context(), tag)
		if err != nil {
			return explainTagError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Tag %s is now %q.\n", shortID(updated.ID), updated.Name)
		return nil
	},
}

var tagRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a tag; todos using it become untagged",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.Tags.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted tag %s.\n", shortID(args[0]))
		return nil
	},
}

func explainTagError(err error) error {
	if repository.IsDuplicateName(err) {
		return fmt.Errorf("%w (names are compared case-insensitively)", err)
	}
	return err
}

func init() {
	tagAddCmd.Flags().StringVar(&tagColor, "color", "3366FF", "Color as 6 hex digits")
	tagRenameCmd.Flags().StringVar(&tagColor, "color", "", "New color as 6 hex digits")

	tagCmd.AddCommand(tagListCmd)
	tagCmd.AddCommand(tagAddCmd)
	tagCmd.AddCommand(tagRenameCmd)
	tagCmd.AddCommand(tagRmCmd)
	rootCmd.AddCommand(tagCmd)
}
