// Habit commands: add, list, delete.
package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/habitgrid/pkg/types"
)

func newAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <name>",
		Short: "Add a habit starting today",
		Long:  "Add a habit. Words are joined with spaces; surrounding whitespace is trimmed.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			name := strings.Join(args, " ")
			// Reject before touching storage.
			if _, err := types.NormalizeName(name); err != nil {
				return userError(err)
			}

			s, err := a.open(0)
			if err != nil {
				return err
			}
			defer closeSession(s, &err)

			res, err := s.tracker.AddHabit(cmd.Context(), name).Wait(cmd.Context())
			if err != nil {
				return classify(err)
			}
			row, _ := res.Grid.Row(res.HabitID)

			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), row.Habit)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %q (%s)\n", row.Habit.Name, res.HabitID)
			return nil
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List habits in the order they were added",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, err := a.open(0)
			if err != nil {
				return err
			}
			defer closeSession(s, &err)

			habits, err := s.habits.List(cmd.Context())
			if err != nil {
				return classify(err)
			}

			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), habits)
			}
			if len(habits) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No habits yet. Add one with: habitgrid add <name>")
				return nil
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("ID", "NAME", "CREATED")
			for _, h := range habits {
				t.Row(h.HabitID, h.Name, h.Created.String())
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return nil
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <habit>",
		Short: "Delete a habit and all of its completions",
		Long:  "Delete a habit given its ID, a unique ID prefix, or its name.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, err := a.open(0)
			if err != nil {
				return err
			}
			defer closeSession(s, &err)

			h, err := resolveHabit(cmd.Context(), s.habits, args[0])
			if err != nil {
				return err
			}
			if _, err := s.tracker.DeleteHabit(cmd.Context(), h.HabitID).Wait(cmd.Context()); err != nil {
				return classify(err)
			}

			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]string{"deleted": h.HabitID})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %q (%s)\n", h.Name, h.HabitID)
			return nil
		},
	}
}

// closeSession closes s and reports a close failure unless the command
// already failed.
func closeSession(s *session, errp *error) {
	if cerr := s.close(); cerr != nil && *errp == nil {
		*errp = cerr
	}
}
