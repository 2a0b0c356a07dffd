package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/marcus/kanban/internal/db"
	"github.com/marcus/kanban/internal/output"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:     "init [title]",
	Short:   "Create the board database in the current directory",
	GroupID: "core",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := getBaseDir()
		dbPath := filepath.Join(dir, ".kanban", "board.db")
		if _, err := os.Stat(dbPath); err == nil {
			output.Error("already initialized: %s", dbPath)
			return fmt.Errorf("already initialized")
		}

		title := "My Board"
		if len(args) > 0 {
			title = args[0]
		}

		database, err := db.Initialize(dir)
		if err != nil {
			output.Error("initialize: %v", err)
			return err
		}
		defer database.Close()

		ident, err := loadIdentity()
		if err != nil {
			return err
		}

		board, err := database.CreateBoard(title, "", ident.SessionID)
		if err != nil {
			output.Error("create board: %v", err)
			return err
		}

		settings, err := database.GetUserSettings(localUserID)
		if err != nil {
			return err
		}
		settings.CurrentBoardID = board.ID
		if err := database.SetUserSettings(settings, ident.SessionID); err != nil {
			return err
		}

		output.Success("Created board %s (%s) with columns: %v", board.Title, board.ID, db.DefaultColumnTitles)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

// boardFlagOf reads the --board flag shared by board-scoped commands.
func boardFlagOf(cmd *cobra.Command) string {
	v, _ := cmd.Flags().GetString("board")
	return v
}
