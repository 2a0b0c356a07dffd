package cmd

import (
	"fmt"

	"github.com/marcus/kanban/internal/output"
	"github.com/spf13/cobra"
)

var labelCmd = &cobra.Command{
	Use:     "label",
	Short:   "Manage board labels",
	GroupID: "board",
}

var labelCreateCmd = &cobra.Command{
	Use:     "create <name>",
	Aliases: []string{"add"},
	Short:   "Create a label on the board",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bc, err := openBoardContext(boardFlagOf(cmd))
		if err != nil {
			return err
		}
		defer bc.Close()

		color, _ := cmd.Flags().GetString("color")
		if err := bc.actions.CreateLabel(args[0], color); err != nil {
			output.Error("create label: %v", err)
			return err
		}

		output.Success("Created label %s", args[0])
		autoSyncAfterMutation()
		return nil
	},
}

var labelRenameCmd = &cobra.Command{
	Use:   "rename <name> <new-name>",
	Short: "Rename a label everywhere it is used",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		bc, err := openBoardContext(boardFlagOf(cmd))
		if err != nil {
			return err
		}
		defer bc.Close()

		color, _ := cmd.Flags().GetString("color")
		if err := bc.actions.RenameLabel(args[0], args[1], color); err != nil {
			output.Error("rename label: %v", err)
			return err
		}

		output.Success("Renamed label %s to %s", args[0], args[1])
		autoSyncAfterMutation()
		return nil
	},
}

var labelDeleteCmd = &cobra.Command{
	Use:     "delete <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a label and detach it from all tasks",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bc, err := openBoardContext(boardFlagOf(cmd))
		if err != nil {
			return err
		}
		defer bc.Close()

		if err := bc.actions.DeleteLabel(args[0]); err != nil {
			output.Error("delete label: %v", err)
			return err
		}

		output.Success("Deleted label %s", args[0])
		autoSyncAfterMutation()
		return nil
	},
}

var labelAttachCmd = &cobra.Command{
	Use:   "attach <task> <name>",
	Short: "Attach a label to a task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		bc, err := openBoardContext(boardFlagOf(cmd))
		if err != nil {
			return err
		}
		defer bc.Close()

		doc := bc.actions.Document()
		view, err := findTask(doc, args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if !boardHasLabel(doc, args[1]) {
			if err := bc.actions.CreateLabel(args[1], ""); err != nil {
				output.Error("create label: %v", err)
				return err
			}
		}
		if err := bc.actions.AttachLabel(view.ID, args[1]); err != nil {
			output.Error("attach label: %v", err)
			return err
		}

		output.Success("Attached #%s to %s", args[1], view.ID)
		autoSyncAfterMutation()
		return nil
	},
}

var labelDetachCmd = &cobra.Command{
	Use:   "detach <task> <name>",
	Short: "Remove a label from a task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		bc, err := openBoardContext(boardFlagOf(cmd))
		if err != nil {
			return err
		}
		defer bc.Close()

		view, err := findTask(bc.actions.Document(), args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if err := bc.actions.DetachLabel(view.ID, args[1]); err != nil {
			output.Error("detach label: %v", err)
			return err
		}

		output.Success("Detached #%s from %s", args[1], view.ID)
		autoSyncAfterMutation()
		return nil
	},
}

var labelListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the board's labels",
	RunE: func(cmd *cobra.Command, args []string) error {
		bc, err := openBoardContext(boardFlagOf(cmd))
		if err != nil {
			return err
		}
		defer bc.Close()

		doc := bc.actions.Document()
		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(doc.Labels)
		}
		if len(doc.Labels) == 0 {
			fmt.Println("No labels.")
			return nil
		}
		for _, name := range doc.Labels {
			fmt.Printf("#%s\n", name)
		}
		return nil
	},
}

func init() {
	labelCmd.AddCommand(labelCreateCmd)
	labelCmd.AddCommand(labelRenameCmd)
	labelCmd.AddCommand(labelDeleteCmd)
	labelCmd.AddCommand(labelAttachCmd)
	labelCmd.AddCommand(labelDetachCmd)
	labelCmd.AddCommand(labelListCmd)

	labelCmd.PersistentFlags().String("board", "", "Board id (defaults to current)")
	labelCreateCmd.Flags().String("color", "", "Label color (hex)")
	labelRenameCmd.Flags().String("color", "", "Label color (hex)")
	labelListCmd.Flags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(labelCmd)
}
