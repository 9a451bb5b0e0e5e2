// Completion commands: check, uncheck, toggle.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/habitgrid/pkg/days"
	"github.com/mesh-intelligence/habitgrid/pkg/types"
)

// decideFunc returns the requested state given the current one.
type decideFunc func(ctx context.Context, checks types.CheckStore, habitID string, day days.Day) (bool, error)

func setChecked(value bool) decideFunc {
	return func(context.Context, types.CheckStore, string, days.Day) (bool, error) {
		return value, nil
	}
}

func flipChecked(ctx context.Context, checks types.CheckStore, habitID string, day days.Day) (bool, error) {
	current, err := checks.IsChecked(ctx, habitID, day)
	if err != nil {
		return false, err
	}
	return !current, nil
}

func newCheckCmd(a *app, use, short string, decide decideFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <habit> [day]",
		Short: short,
		Long: short + ".\n\n" +
			"The habit is an ID, a unique ID prefix, or a name. The day is YYYY-MM-DD,\n" +
			"\"today\", or \"yesterday\", and defaults to today. It must fall inside the\n" +
			"displayed window and on or after the day the habit was added.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			day, err := a.parseDayArg(args, 1)
			if err != nil {
				return err
			}

			s, err := a.open(0)
			if err != nil {
				return err
			}
			defer closeSession(s, &err)

			ctx := cmd.Context()
			h, err := resolveHabit(ctx, s.habits, args[0])
			if err != nil {
				return err
			}
			value, err := decide(ctx, s.checks, h.HabitID, day)
			if err != nil {
				return classify(err)
			}

			res, err := s.tracker.Toggle(ctx, h.HabitID, day, value).Wait(ctx)
			if err != nil {
				return classify(err)
			}

			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"habit_id": res.HabitID,
					"day":      res.Day,
					"checked":  res.Checked,
				})
			}
			state := "checked"
			if !res.Checked {
				state = "unchecked"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s %s\n", h.Name, res.Day, state)
			return nil
		},
	}
}
