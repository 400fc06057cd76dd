package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/phrazzld/tasker-api/pkg/client"
	"github.com/spf13/cobra"
)

func newTasksCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task", "t"},
		Short:   "List and change tasks",
	}
	cmd.AddCommand(
		newTasksListCmd(opts),
		newTasksAddCmd(opts),
		newTasksDoneCmd(opts),
		newTasksRmCmd(opts),
		newTasksRestoreCmd(opts),
	)
	return cmd
}

func newTasksListCmd(opts *rootOptions) *cobra.Command {
	var (
		list    client.ListOptions
		overdue bool
		deleted bool
		tags    string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("overdue") {
				list.Overdue = &overdue
			}
			if list.TagIDs, err = parseIDs(tags); err != nil {
				return err
			}

			fetch := c.ListTasks
			if deleted {
				fetch = c.ListDeletedTasks
			}
			page, err := fetch(cmd.Context(), list)
			if err != nil {
				return err
			}
			printTasks(cmd.OutOrStdout(), page)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&list.Status, "status", "", "todo, in_progress or completed")
	f.StringVar(&list.Priority, "priority", "", "low, medium or high")
	f.StringVarP(&list.Search, "search", "s", "", "match title or description")
	f.StringVar(&list.Ordering, "order", "", "sort field, prefix with - for descending")
	f.IntVar(&list.Page, "page", 1, "page number")
	f.BoolVar(&overdue, "overdue", false, "only overdue tasks")
	f.BoolVar(&deleted, "deleted", false, "list deleted tasks")
	f.StringVar(&tags, "tags", "", "comma-separated tag ids")
	return cmd
}

func newTasksAddCmd(opts *rootOptions) *cobra.Command {
	var (
		in    client.TaskInput
		due   string
		tags  string
		times int
	)
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			in.Title = strings.Join(args, " ")
			if due != "" {
				d, err := time.Parse(time.DateOnly, due)
				if err != nil {
					return fmt.Errorf("--due must be YYYY-MM-DD")
				}
				in.DueDate = &d
			}
			if times > 0 {
				in.TimesPerPeriod = &times
			}
			if in.TagIDs, err = parseIDs(tags); err != nil {
				return err
			}

			task, err := c.CreateTask(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created task %d\n", task.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Priority, "priority", "", "low, medium or high")
	f.StringVar(&due, "due", "", "due date, YYYY-MM-DD")
	f.StringVar(&tags, "tags", "", "comma-separated tag ids")
	f.StringVar(&in.RecurrencePattern, "recur", "", "daily, weekly or monthly")
	f.IntVar(&times, "times", 0, "completions per period")
	return cmd
}

func newTasksDoneCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Complete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, c, err := idAndClient(opts, args[0])
			if err != nil {
				return err
			}
			status := "completed"
			task, err := c.UpdateTask(cmd.Context(), id, client.TaskUpdate{Status: &status})
			if err != nil {
				return err
			}
			printCompletion(cmd.OutOrStdout(), task)
			return nil
		},
	}
}

func newTasksRmCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a task (restorable)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, c, err := idAndClient(opts, args[0])
			if err != nil {
				return err
			}
			if err := c.DeleteTask(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %d\n", id)
			return nil
		},
	}
}

func newTasksRestoreCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id>",
		Short: "Restore a deleted task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, c, err := idAndClient(opts, args[0])
			if err != nil {
				return err
			}
			task, err := c.RestoreTask(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored task %d: %s\n", task.ID, task.Title)
			return nil
		},
	}
}

func idAndClient(opts *rootOptions, arg string) (int64, *client.Client, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, nil, fmt.Errorf("invalid task id %q", arg)
	}
	c, err := opts.client()
	return id, c, err
}

func parseIDs(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid tag id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func printTasks(w io.Writer, page *client.TaskPage) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tDUE\tTITLE")
	for _, t := range page.Results {
		due := "-"
		if t.DueDate != nil {
			due = t.DueDate.Format(time.DateOnly)
			if t.IsOverdue {
				due += "!"
			}
		}
		title := t.Title
		if t.IsRecurring {
			title += fmt.Sprintf(" (%s %d/%d)", t.RecurrencePattern, t.CurrentPeriodCount, periodTarget(t))
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", t.ID, t.Status, t.Priority, due, title)
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "%d task(s)", page.Count)
	if page.Next != nil {
		fmt.Fprint(w, ", more with --page")
	}
	fmt.Fprintln(w)
}

func periodTarget(t client.Task) int {
	if t.TimesPerPeriod == nil {
		return 1
	}
	return *t.TimesPerPeriod
}

func printCompletion(w io.Writer, t *client.Task) {
	c := t.Completion
	switch {
	case c == nil:
		fmt.Fprintf(w, "Completed task %d\n", t.ID)
	case !c.Counted:
		fmt.Fprintf(w, "Task %d was already completed\n", t.ID)
	case c.RolledOver && c.NextTaskID != nil:
		fmt.Fprintf(w, "Completed task %d, next occurrence is task %d\n", t.ID, *c.NextTaskID)
	case c.RolledOver:
		fmt.Fprintf(w, "Completed task %d, a new period has started\n", t.ID)
	default:
		fmt.Fprintf(w, "Progress on task %d: %d/%d this period\n", t.ID, c.PeriodCount, c.PeriodTarget)
	}
}
