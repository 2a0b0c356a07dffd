package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/marcus/kanban/internal/dateparse"
	"github.com/marcus/kanban/internal/db"
	"github.com/marcus/kanban/internal/models"
	"github.com/marcus/kanban/internal/output"
	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:     "task",
	Short:   "Manage tasks",
	GroupID: "core",
}

// parseDueFlag parses the --due flag: exact dates, "+Nd" offsets, day
// names, and keywords like "tomorrow".
func parseDueFlag(cmd *cobra.Command) (*time.Time, error) {
	due, _ := cmd.Flags().GetString("due")
	if due == "" {
		return nil, nil
	}
	t, err := dateparse.ParseDue(due)
	if err != nil {
		return nil, fmt.Errorf("invalid due date: %w", err)
	}
	return &t, nil
}

// priorityFromFlag validates the --priority flag value.
func priorityFromFlag(cmd *cobra.Command) (models.Priority, error) {
	p, _ := cmd.Flags().GetString("priority")
	if p == "" {
		return "", nil
	}
	prio := models.Priority(strings.ToLower(p))
	if !models.ValidPriority(prio) {
		return "", fmt.Errorf("invalid priority %q (valid: low, medium, high, urgent)", p)
	}
	return prio, nil
}

var taskAddCmd = &cobra.Command{
	Use:     "add <title>",
	Aliases: []string{"create", "new"},
	Short:   "Create a task at the top of a column",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bc, err := openBoardContext(boardFlagOf(cmd))
		if err != nil {
			return err
		}
		defer bc.Close()

		doc := bc.actions.Document()
		col := &doc.Columns[0]
		if ref, _ := cmd.Flags().GetString("column"); ref != "" {
			col, err = findColumn(doc, ref)
			if err != nil {
				output.Error("%v", err)
				return err
			}
		}

		prio, err := priorityFromFlag(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		due, err := parseDueFlag(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		desc, _ := cmd.Flags().GetString("description")

		view, err := bc.actions.CreateTask(col.ID, db.TaskInput{
			Title:       args[0],
			Description: desc,
			Priority:    prio,
			DueAt:       due,
		})
		if err != nil {
			output.Error("create task: %v", err)
			return err
		}

		if labels, _ := cmd.Flags().GetString("labels"); labels != "" {
			for _, name := range splitFlagList(labels) {
				if !boardHasLabel(doc, name) {
					if err := bc.actions.CreateLabel(name, ""); err != nil {
						output.Error("create label %q: %v", name, err)
						return err
					}
				}
				if err := bc.actions.AttachLabel(view.ID, name); err != nil {
					output.Error("attach label %q: %v", name, err)
					return err
				}
			}
		}

		output.Success("Created %s", output.TaskOneLinerPlain(&view.Task))
		autoSyncAfterMutation()
		return nil
	},
}

var taskUpdateCmd = &cobra.Command{
	Use:     "update <task>",
	Aliases: []string{"edit"},
	Short:   "Update a task's fields",
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

		// Start from current values; flags override individually.
		in := db.TaskInput{
			Title:       view.Title,
			Description: view.Description,
			Priority:    view.Priority,
			DueAt:       view.DueAt,
		}
		if title, _ := cmd.Flags().GetString("title"); title != "" {
			in.Title = title
		}
		if cmd.Flags().Changed("description") {
			in.Description, _ = cmd.Flags().GetString("description")
		}
		if prio, err := priorityFromFlag(cmd); err != nil {
			output.Error("%v", err)
			return err
		} else if prio != "" {
			in.Priority = prio
		}
		if cmd.Flags().Changed("due") {
			due, err := parseDueFlag(cmd)
			if err != nil {
				output.Error("%v", err)
				return err
			}
			in.DueAt = due // --due "" clears the date
		}

		if err := bc.actions.UpdateTask(view.ID, in); err != nil {
			output.Error("update task: %v", err)
			return err
		}

		output.Success("Updated %s", view.ID)
		autoSyncAfterMutation()
		return nil
	},
}

var taskMoveCmd = &cobra.Command{
	Use:   "move <task> <column> [before-task]",
	Short: "Move a task to a column, optionally before another task",
	Args:  cobra.RangeArgs(2, 3),
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
		col, err := findColumn(doc, args[1])
		if err != nil {
			output.Error("%v", err)
			return err
		}

		overID := ""
		if len(args) == 3 {
			over, err := findTask(doc, args[2])
			if err != nil {
				output.Error("%v", err)
				return err
			}
			overID = over.ID
		}

		if err := bc.actions.MoveTask(view.ID, col.ID, overID); err != nil {
			output.Error("move task: %v", err)
			return err
		}

		output.Success("Moved %s to %s", view.ID, col.Title)
		autoSyncAfterMutation()
		return nil
	},
}

var taskDoneCmd = &cobra.Command{
	Use:     "done <task>",
	Aliases: []string{"complete"},
	Short:   "Mark a task completed (moves it to the done column)",
	Args:    cobra.ExactArgs(1),
	RunE:    func(cmd *cobra.Command, args []string) error { return setCompleted(cmd, args[0], true) },
}

var taskUndoneCmd = &cobra.Command{
	Use:     "undone <task>",
	Aliases: []string{"reopen"},
	Short:   "Clear a task's completed state",
	Args:    cobra.ExactArgs(1),
	RunE:    func(cmd *cobra.Command, args []string) error { return setCompleted(cmd, args[0], false) },
}

func setCompleted(cmd *cobra.Command, ref string, completed bool) error {
	bc, err := openBoardContext(boardFlagOf(cmd))
	if err != nil {
		return err
	}
	defer bc.Close()

	celebrated := ""
	bc.actions.OnCelebrate(func(taskID string) { celebrated = taskID })

	view, err := findTask(bc.actions.Document(), ref)
	if err != nil {
		output.Error("%v", err)
		return err
	}

	if err := bc.actions.SetTaskCompleted(view.ID, completed); err != nil {
		output.Error("set completed: %v", err)
		return err
	}

	if celebrated != "" {
		output.Success("🎉 %s done!", view.Title)
	} else {
		output.Success("Reopened %s", view.ID)
	}
	autoSyncAfterMutation()
	return nil
}

var taskDeleteCmd = &cobra.Command{
	Use:     "delete <task>",
	Aliases: []string{"rm"},
	Short:   "Soft-delete a task (restorable)",
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

		if err := bc.actions.DeleteTask(view.ID); err != nil {
			output.Error("delete task: %v", err)
			return err
		}

		output.Success("Deleted %s (restore with 'kanban task restore %s')", view.ID, view.ID)
		autoSyncAfterMutation()
		return nil
	},
}

var taskRestoreCmd = &cobra.Command{
	Use:   "restore <task>",
	Short: "Restore a soft-deleted task to its original spot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bc, err := openBoardContext(boardFlagOf(cmd))
		if err != nil {
			return err
		}
		defer bc.Close()

		if err := bc.actions.RestoreTask(args[0]); err != nil {
			output.Error("restore task: %v", err)
			return err
		}

		output.Success("Restored %s", args[0])
		autoSyncAfterMutation()
		return nil
	},
}

var taskPurgeCmd = &cobra.Command{
	Use:   "purge <task>",
	Short: "Permanently delete a soft-deleted task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bc, err := openBoardContext(boardFlagOf(cmd))
		if err != nil {
			return err
		}
		defer bc.Close()

		if err := bc.actions.PurgeTask(args[0]); err != nil {
			output.Error("purge task: %v", err)
			return err
		}

		output.Success("Purged %s", args[0])
		autoSyncAfterMutation()
		return nil
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show <task>",
	Short: "Show a task with description, labels, and subtasks",
	Args:  cobra.ExactArgs(1),
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

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(view)
		}

		columnTitle := ""
		for _, col := range doc.Columns {
			for _, id := range col.TaskIDs {
				if id == view.ID {
					columnTitle = col.Title
				}
			}
		}

		// Markdown descriptions render through glamour in the long view.
		if view.Description != "" {
			if rendered, err := output.RenderDescription(view.Description); err == nil && rendered != "" {
				shown := *view
				shown.Description = rendered
				fmt.Print(output.FormatTaskLong(&shown, columnTitle))
				return nil
			}
		}
		fmt.Print(output.FormatTaskLong(view, columnTitle))
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks, optionally filtered by column or label",
	RunE: func(cmd *cobra.Command, args []string) error {
		bc, err := openBoardContext(boardFlagOf(cmd))
		if err != nil {
			return err
		}
		defer bc.Close()

		doc := bc.actions.Document()

		deleted, _ := cmd.Flags().GetBool("deleted")
		if deleted {
			if len(doc.DeletedTasks) == 0 {
				fmt.Println("No deleted tasks.")
				return nil
			}
			for i := range doc.DeletedTasks {
				fmt.Println(output.FormatTaskDeleted(&doc.DeletedTasks[i]))
			}
			return nil
		}

		columnRef, _ := cmd.Flags().GetString("column")
		labelFilter, _ := cmd.Flags().GetString("label")

		var views []*models.TaskView
		for _, col := range doc.Columns {
			if columnRef != "" && col.ID != columnRef && !strings.EqualFold(col.Title, columnRef) {
				continue
			}
			for _, id := range col.TaskIDs {
				view, ok := doc.Tasks[id]
				if !ok {
					continue
				}
				if labelFilter != "" && !hasLabel(view, labelFilter) {
					continue
				}
				views = append(views, view)
			}
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(views)
		}
		if len(views) == 0 {
			fmt.Println("No tasks.")
			return nil
		}
		for _, view := range views {
			fmt.Println(output.FormatTaskShort(view))
		}
		return nil
	},
}

func hasLabel(view *models.TaskView, name string) bool {
	for _, l := range view.Labels {
		if strings.EqualFold(l, name) {
			return true
		}
	}
	return false
}

func boardHasLabel(doc *models.Document, name string) bool {
	for _, l := range doc.Labels {
		if strings.EqualFold(l, name) {
			return true
		}
	}
	return false
}

func splitFlagList(s string) []string {
	var result []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

func init() {
	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskUpdateCmd)
	taskCmd.AddCommand(taskMoveCmd)
	taskCmd.AddCommand(taskDoneCmd)
	taskCmd.AddCommand(taskUndoneCmd)
	taskCmd.AddCommand(taskDeleteCmd)
	taskCmd.AddCommand(taskRestoreCmd)
	taskCmd.AddCommand(taskPurgeCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskListCmd)

	taskCmd.PersistentFlags().String("board", "", "Board id (defaults to current)")

	taskAddCmd.Flags().String("column", "", "Column id or title (defaults to the first column)")
	taskAddCmd.Flags().String("description", "", "Task description (markdown)")
	taskAddCmd.Flags().String("priority", "", "Priority: low, medium, high, urgent")
	taskAddCmd.Flags().String("due", "", "Due date (YYYY-MM-DD, +7d, tomorrow, ...)")
	taskAddCmd.Flags().String("labels", "", "Comma-separated labels")

	taskUpdateCmd.Flags().String("title", "", "New title")
	taskUpdateCmd.Flags().String("description", "", "New description")
	taskUpdateCmd.Flags().String("priority", "", "New priority")
	taskUpdateCmd.Flags().String("due", "", "New due date (empty clears)")

	taskShowCmd.Flags().Bool("json", false, "Output as JSON")
	taskListCmd.Flags().Bool("json", false, "Output as JSON")
	taskListCmd.Flags().String("column", "", "Filter by column id or title")
	taskListCmd.Flags().String("label", "", "Filter by label")
	taskListCmd.Flags().Bool("deleted", false, "List soft-deleted tasks")

	rootCmd.AddCommand(taskCmd)
}
