package cmd

import (
	"fmt"

	"github.com/marcus/kanban/internal/output"
	"github.com/spf13/cobra"
)

var columnCmd = &cobra.Command{
	Use:     "column",
	Aliases: []string{"col"},
	Short:   "Manage columns on the current board",
	GroupID: "board",
}

var columnAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Append a column to the board",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bc, err := openBoardContext(boardFlagOf(cmd))
		if err != nil {
			return err
		}
		defer bc.Close()

		col, err := bc.actions.AddColumn(args[0])
		if err != nil {
			output.Error("add column: %v", err)
			return err
		}

		output.Success("Added column %s (%s)", col.Title, col.ID)
		autoSyncAfterMutation()
		return nil
	},
}

var columnRenameCmd = &cobra.Command{
	Use:   "rename <column> <title>",
	Short: "Rename a column",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		bc, err := openBoardContext(boardFlagOf(cmd))
		if err != nil {
			return err
		}
		defer bc.Close()

		col, err := findColumn(bc.actions.Document(), args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if err := bc.actions.RenameColumn(col.ID, args[1]); err != nil {
			output.Error("rename column: %v", err)
			return err
		}

		output.Success("Renamed column to %s", args[1])
		autoSyncAfterMutation()
		return nil
	},
}

var columnMoveCmd = &cobra.Command{
	Use:   "move <column> <before-column>",
	Short: "Move a column to another column's position",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		bc, err := openBoardContext(boardFlagOf(cmd))
		if err != nil {
			return err
		}
		defer bc.Close()

		doc := bc.actions.Document()
		active, err := findColumn(doc, args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		over, err := findColumn(doc, args[1])
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if err := bc.actions.MoveColumn(active.ID, over.ID); err != nil {
			output.Error("move column: %v", err)
			return err
		}

		output.Success("Moved column %s", active.Title)
		autoSyncAfterMutation()
		return nil
	},
}

var columnDeleteCmd = &cobra.Command{
	Use:     "delete <column>",
	Aliases: []string{"rm"},
	Short:   "Delete a column (its tasks land in the deleted pool)",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bc, err := openBoardContext(boardFlagOf(cmd))
		if err != nil {
			return err
		}
		defer bc.Close()

		col, err := findColumn(bc.actions.Document(), args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if n := len(col.TaskIDs); n > 0 {
			output.Warning("column holds %d task(s); they move to the deleted pool", n)
		}

		if err := bc.actions.DeleteColumn(col.ID); err != nil {
			output.Error("delete column: %v", err)
			return err
		}

		output.Success("Deleted column %s", col.Title)
		autoSyncAfterMutation()
		return nil
	},
}

var columnListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List columns with task counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		bc, err := openBoardContext(boardFlagOf(cmd))
		if err != nil {
			return err
		}
		defer bc.Close()

		doc := bc.actions.Document()
		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(doc.Columns)
		}
		for _, col := range doc.Columns {
			fmt.Println(output.FormatColumnSummary(col))
		}
		return nil
	},
}

func init() {
	columnCmd.AddCommand(columnAddCmd)
	columnCmd.AddCommand(columnRenameCmd)
	columnCmd.AddCommand(columnMoveCmd)
	columnCmd.AddCommand(columnDeleteCmd)
	columnCmd.AddCommand(columnListCmd)

	columnCmd.PersistentFlags().String("board", "", "Board id (defaults to current)")
	columnListCmd.Flags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(columnCmd)
}
