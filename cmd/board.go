package cmd

import (
	"fmt"
	"strings"

	"github.com/marcus/kanban/internal/output"
	"github.com/spf13/cobra"
)

var boardCmd = &cobra.Command{
	Use:     "board",
	Short:   "Manage boards",
	GroupID: "board",
}

var boardListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List boards",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openStore()
		if err != nil {
			return err
		}
		defer database.Close()

		boards, err := database.ListBoards()
		if err != nil {
			output.Error("list boards: %v", err)
			return err
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(boards)
		}

		if len(boards) == 0 {
			fmt.Println("No boards. Run 'kanban init' or 'kanban board create'.")
			return nil
		}

		settings, _ := database.GetUserSettings(localUserID)
		for i := range boards {
			current := settings != nil && settings.CurrentBoardID == boards[i].ID
			fmt.Println(output.FormatBoardLine(&boards[i], current))
		}
		return nil
	},
}

var boardCreateCmd = &cobra.Command{
	Use:     "create <title>",
	Aliases: []string{"add"},
	Short:   "Create a new board",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openStore()
		if err != nil {
			return err
		}
		defer database.Close()

		ident, err := loadIdentity()
		if err != nil {
			return err
		}

		board, err := database.CreateBoard(args[0], "", ident.SessionID)
		if err != nil {
			output.Error("create board: %v", err)
			return err
		}

		output.Success("Created board %s (%s)", board.Title, board.ID)
		return nil
	},
}

var boardUseCmd = &cobra.Command{
	Use:   "use <board>",
	Short: "Set the current board",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openStore()
		if err != nil {
			return err
		}
		defer database.Close()

		board, err := database.GetBoard(args[0])
		if err != nil {
			return err
		}
		if board == nil {
			// Try matching by title
			boards, err := database.ListBoards()
			if err != nil {
				return err
			}
			for i := range boards {
				if strings.EqualFold(boards[i].Title, args[0]) {
					board = &boards[i]
					break
				}
			}
		}
		if board == nil {
			output.Error("unknown board: %s", args[0])
			return fmt.Errorf("unknown board")
		}

		ident, err := loadIdentity()
		if err != nil {
			return err
		}

		settings, err := database.GetUserSettings(localUserID)
		if err != nil {
			return err
		}
		settings.CurrentBoardID = board.ID
		if err := database.SetUserSettings(settings, ident.SessionID); err != nil {
			output.Error("save settings: %v", err)
			return err
		}

		output.Success("Current board: %s", board.Title)
		return nil
	},
}

var boardRenameCmd = &cobra.Command{
	Use:   "rename <title>",
	Short: "Rename the current board",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bc, err := openBoardContext(boardFlagOf(cmd))
		if err != nil {
			return err
		}
		defer bc.Close()

		if err := bc.store.RenameBoard(bc.boardID, args[0], bc.ident.SessionID); err != nil {
			output.Error("rename board: %v", err)
			return err
		}

		output.Success("Renamed board to %s", args[0])
		autoSyncAfterMutation()
		return nil
	},
}

var boardDeleteCmd = &cobra.Command{
	Use:     "delete",
	Aliases: []string{"rm"},
	Short:   "Delete the current board and everything on it",
	RunE: func(cmd *cobra.Command, args []string) error {
		bc, err := openBoardContext(boardFlagOf(cmd))
		if err != nil {
			return err
		}
		defer bc.Close()

		force, _ := cmd.Flags().GetBool("force")
		if !force {
			output.Error("refusing to delete without --force")
			return fmt.Errorf("refusing to delete without --force")
		}

		if err := bc.store.DeleteBoard(bc.boardID, bc.ident.SessionID); err != nil {
			output.Error("delete board: %v", err)
			return err
		}

		output.Success("Deleted board %s", bc.boardID)
		autoSyncAfterMutation()
		return nil
	},
}

var boardShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current board's columns and counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		bc, err := openBoardContext(boardFlagOf(cmd))
		if err != nil {
			return err
		}
		defer bc.Close()

		doc := bc.actions.Document()
		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(doc)
		}

		fmt.Println(output.SectionHeader(doc.Title))
		for _, col := range doc.Columns {
			fmt.Println("  " + output.FormatColumnSummary(col))
		}
		if len(doc.Labels) > 0 {
			fmt.Printf("\nLabels: %s\n", strings.Join(doc.Labels, ", "))
		}
		if len(doc.DeletedTasks) > 0 {
			fmt.Printf("Deleted tasks: %d (kanban task deleted)\n", len(doc.DeletedTasks))
		}
		return nil
	},
}

var boardSettingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the current board's settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		bc, err := openBoardContext(boardFlagOf(cmd))
		if err != nil {
			return err
		}
		defer bc.Close()

		settings, err := bc.store.GetBoardSettings(bc.boardID)
		if err != nil {
			output.Error("load settings: %v", err)
			return err
		}

		changed := false
		if cmd.Flags().Changed("show-completed") {
			settings.ShowCompleted, _ = cmd.Flags().GetBool("show-completed")
			changed = true
		}
		if cmd.Flags().Changed("save-deleted") {
			settings.SaveDeleted, _ = cmd.Flags().GetBool("save-deleted")
			changed = true
		}
		if cmd.Flags().Changed("retention") {
			settings.DeletedRetention, _ = cmd.Flags().GetInt("retention")
			changed = true
		}
		if cmd.Flags().Changed("auto-cleanup") {
			settings.AutoCleanup, _ = cmd.Flags().GetBool("auto-cleanup")
			changed = true
		}

		if changed {
			if err := bc.store.SetBoardSettings(settings, bc.ident.SessionID); err != nil {
				output.Error("save settings: %v", err)
				return err
			}
			output.Success("Settings updated")
			autoSyncAfterMutation()
			return nil
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(settings)
		}
		fmt.Printf("Show completed:  %v\n", settings.ShowCompleted)
		fmt.Printf("Save deleted:    %v\n", settings.SaveDeleted)
		fmt.Printf("Retention days:  %d\n", settings.DeletedRetention)
		fmt.Printf("Auto cleanup:    %v\n", settings.AutoCleanup)
		if settings.LastCleanupAt != nil {
			fmt.Printf("Last cleanup:    %s\n", output.FormatTimeAgo(*settings.LastCleanupAt))
		}
		return nil
	},
}

func init() {
	boardCmd.AddCommand(boardListCmd)
	boardCmd.AddCommand(boardCreateCmd)
	boardCmd.AddCommand(boardUseCmd)
	boardCmd.AddCommand(boardRenameCmd)
	boardCmd.AddCommand(boardDeleteCmd)
	boardCmd.AddCommand(boardShowCmd)
	boardCmd.AddCommand(boardSettingsCmd)

	boardSettingsCmd.Flags().String("board", "", "Board id (defaults to current)")
	boardSettingsCmd.Flags().Bool("json", false, "Output as JSON")
	boardSettingsCmd.Flags().Bool("show-completed", false, "Show completed tasks on the board")
	boardSettingsCmd.Flags().Bool("save-deleted", false, "Keep soft-deleted tasks in the deleted pool")
	boardSettingsCmd.Flags().Int("retention", 30, "Days to keep deleted tasks (0 = forever)")
	boardSettingsCmd.Flags().Bool("auto-cleanup", false, "Purge expired deleted tasks automatically")

	boardListCmd.Flags().Bool("json", false, "Output as JSON")
	boardShowCmd.Flags().Bool("json", false, "Output the full document as JSON")
	boardShowCmd.Flags().String("board", "", "Board id (defaults to current)")
	boardRenameCmd.Flags().String("board", "", "Board id (defaults to current)")
	boardDeleteCmd.Flags().String("board", "", "Board id (defaults to current)")
	boardDeleteCmd.Flags().Bool("force", false, "Skip confirmation")

	rootCmd.AddCommand(boardCmd)
}
