package cmd

import (
	"fmt"
	"strings"

	"github.com/marcus/kanban/internal/db"
	"github.com/marcus/kanban/internal/models"
	"github.com/marcus/kanban/internal/output"
	"github.com/spf13/cobra"
)

var subtaskCmd = &cobra.Command{
	Use:     "subtask",
	Aliases: []string{"sub"},
	Short:   "Manage a task's subtask checklist",
	GroupID: "core",
}

var subtaskAddCmd = &cobra.Command{
	Use:   "add <task> <title>",
	Short: "Append a subtask to a task",
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

		in := make([]db.SubtaskInput, 0, len(view.Subtasks)+1)
		for _, st := range view.Subtasks {
			in = append(in, db.SubtaskInput{ID: st.ID, Title: st.Title, Completed: st.Completed})
		}
		in = append(in, db.SubtaskInput{Title: args[1]})

		if err := bc.actions.SetSubtasks(view.ID, in); err != nil {
			output.Error("add subtask: %v", err)
			return err
		}

		output.Success("Added subtask to %s", view.ID)
		autoSyncAfterMutation()
		return nil
	},
}

var subtaskToggleCmd = &cobra.Command{
	Use:   "toggle <task> <subtask>",
	Short: "Toggle a subtask's completed state",
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
		st, err := findSubtask(view, args[1])
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if err := bc.actions.ToggleSubtask(view.ID, st.ID); err != nil {
			output.Error("toggle subtask: %v", err)
			return err
		}

		output.Success("Toggled %s", st.Title)
		autoSyncAfterMutation()
		return nil
	},
}

var subtaskRemoveCmd = &cobra.Command{
	Use:     "remove <task> <subtask>",
	Aliases: []string{"rm"},
	Short:   "Remove a subtask from a task",
	Args:    cobra.ExactArgs(2),
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
		st, err := findSubtask(view, args[1])
		if err != nil {
			output.Error("%v", err)
			return err
		}

		var in []db.SubtaskInput
		for _, s := range view.Subtasks {
			if s.ID == st.ID {
				continue
			}
			in = append(in, db.SubtaskInput{ID: s.ID, Title: s.Title, Completed: s.Completed})
		}

		if err := bc.actions.SetSubtasks(view.ID, in); err != nil {
			output.Error("remove subtask: %v", err)
			return err
		}

		output.Success("Removed %s", st.Title)
		autoSyncAfterMutation()
		return nil
	},
}

var subtaskListCmd = &cobra.Command{
	Use:     "list <task>",
	Aliases: []string{"ls"},
	Short:   "List a task's subtasks",
	Args:    cobra.ExactArgs(1),
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

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(view.Subtasks)
		}
		if len(view.Subtasks) == 0 {
			fmt.Println("No subtasks.")
			return nil
		}
		for _, st := range view.Subtasks {
			fmt.Println(output.SubtaskLine(st))
		}
		return nil
	},
}

// findSubtask resolves a subtask by id, unique id prefix, or 1-based
// position in the checklist.
func findSubtask(view *models.TaskView, ref string) (*models.Subtask, error) {
	for i := range view.Subtasks {
		if view.Subtasks[i].ID == ref {
			return &view.Subtasks[i], nil
		}
	}
	if n := parsePosition(ref); n >= 1 && n <= len(view.Subtasks) {
		return &view.Subtasks[n-1], nil
	}
	var match *models.Subtask
	for i := range view.Subtasks {
		if strings.HasPrefix(view.Subtasks[i].ID, ref) {
			if match != nil {
				return nil, fmt.Errorf("ambiguous subtask: %s", ref)
			}
			match = &view.Subtasks[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("unknown subtask: %s", ref)
	}
	return match, nil
}

func parsePosition(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

func init() {
	subtaskCmd.AddCommand(subtaskAddCmd)
	subtaskCmd.AddCommand(subtaskToggleCmd)
	subtaskCmd.AddCommand(subtaskRemoveCmd)
	subtaskCmd.AddCommand(subtaskListCmd)

	subtaskCmd.PersistentFlags().String("board", "", "Board id (defaults to current)")
	subtaskListCmd.Flags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(subtaskCmd)
}
