package cmd

import (
	"fmt"
	"os"

	"github.com/marcus/kanban/internal/db"
	"github.com/marcus/kanban/internal/models"
	"github.com/marcus/kanban/internal/output"
	"github.com/marcus/kanban/internal/state"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:     "export [file]",
	Short:   "Export the current board as JSON",
	GroupID: "core",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bc, err := openBoardContext(boardFlagOf(cmd))
		if err != nil {
			return err
		}
		defer bc.Close()

		data, err := state.Export(bc.actions.Document())
		if err != nil {
			output.Error("export: %v", err)
			return err
		}

		if len(args) == 0 {
			fmt.Println(string(data))
			return nil
		}
		if err := os.WriteFile(args[0], data, 0o644); err != nil {
			output.Error("write %s: %v", args[0], err)
			return err
		}
		output.Success("Exported board to %s", args[0])
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:     "import <file>",
	Short:   "Import a board export into a new board",
	GroupID: "core",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			output.Error("read %s: %v", args[0], err)
			return err
		}

		doc, err := state.Import(data)
		if err != nil {
			output.Error("import: %v", err)
			return err
		}

		database, err := openStore()
		if err != nil {
			return err
		}
		defer database.Close()

		ident, err := loadIdentity()
		if err != nil {
			return err
		}

		board, err := importDocument(database, doc, ident.SessionID)
		if err != nil {
			output.Error("import: %v", err)
			return err
		}

		output.Success("Imported board %s (%s): %d columns, %d tasks",
			board.Title, board.ID, len(doc.Columns), len(doc.Tasks))
		autoSyncAfterMutation()
		return nil
	},
}

// importDocument materializes an imported document as a fresh board. The
// seeded default columns are replaced by the document's own columns, and
// completed flags are set at the store level so tasks keep their columns.
func importDocument(database *db.DB, doc *models.Document, sessionID string) (*models.Board, error) {
	title := doc.Title
	if title == "" {
		title = "Imported Board"
	}

	board, err := database.CreateBoard(title, "", sessionID)
	if err != nil {
		return nil, err
	}

	seeded, err := database.ListColumns(board.ID)
	if err != nil {
		return nil, err
	}
	for _, col := range seeded {
		if err := database.DeleteColumn(col.ID, sessionID); err != nil {
			return nil, err
		}
	}

	// Imported ids are not preserved; old ids map to their new rows.
	colIDs := make(map[string]string, len(doc.Columns))
	taskIDs := make(map[string]string, len(doc.Tasks))
	labelIDs := make(map[string]string)

	for i := range doc.Columns {
		col, err := database.CreateColumn(board.ID, doc.Columns[i].Title, sessionID)
		if err != nil {
			return nil, err
		}
		colIDs[doc.Columns[i].ID] = col.ID
	}

	for _, name := range doc.Labels {
		label, err := database.CreateLabel(board.ID, name, "", sessionID)
		if err != nil {
			return nil, err
		}
		labelIDs[name] = label.ID
	}

	for i := range doc.Columns {
		src := &doc.Columns[i]
		ordered := make([]string, 0, len(src.TaskIDs))
		for _, oldID := range src.TaskIDs {
			view, ok := doc.Tasks[oldID]
			if !ok {
				continue
			}
			task, err := database.CreateTask(board.ID, colIDs[src.ID], db.TaskInput{
				Title:       view.Title,
				Description: view.Description,
				Priority:    view.Priority,
				DueAt:       view.DueAt,
			}, sessionID)
			if err != nil {
				return nil, err
			}
			taskIDs[oldID] = task.ID
			ordered = append(ordered, task.ID)

			if view.Completed {
				if _, err := database.SetTaskCompleted(task.ID, true, sessionID); err != nil {
					return nil, err
				}
			}
			for _, name := range view.Labels {
				labelID, ok := labelIDs[name]
				if !ok {
					label, err := database.CreateLabel(board.ID, name, "", sessionID)
					if err != nil {
						return nil, err
					}
					labelID = label.ID
					labelIDs[name] = labelID
				}
				if err := database.AttachLabel(task.ID, labelID, sessionID); err != nil {
					return nil, err
				}
			}
			if len(view.Subtasks) > 0 {
				in := make([]db.SubtaskInput, len(view.Subtasks))
				for j, st := range view.Subtasks {
					in[j] = db.SubtaskInput{Title: st.Title, Completed: st.Completed}
				}
				if _, err := database.ReplaceSubtasks(task.ID, in, sessionID); err != nil {
					return nil, err
				}
			}
		}
		// New tasks insert at the top; restore the document's order.
		if err := database.SetColumnTaskOrder(colIDs[src.ID], ordered, sessionID); err != nil {
			return nil, err
		}
	}

	return board, nil
}

func init() {
	exportCmd.Flags().String("board", "", "Board id (defaults to current)")
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
