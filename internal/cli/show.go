package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/habitgrid/pkg/types"
)

func newShowCmd(a *app) *cobra.Command {
	var window int
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the habit grid for the trailing window",
		Long: "Show every habit as a row and every day of the window as a column, oldest\n" +
			"first and today last. Days before a habit was added are left blank.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if cmd.Flags().Changed("window") && window <= 0 {
				return userError(&types.ValidationError{
					Field:  "window",
					Reason: fmt.Sprintf("must be a positive number of days, got %d", window),
				})
			}
			s, err := a.open(window)
			if err != nil {
				return err
			}
			defer closeSession(s, &err)

			g, err := s.tracker.Grid(cmd.Context())
			if err != nil {
				return classify(err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), g)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderGrid(g, defaultGridStyles()))
			return nil
		},
	}
	cmd.Flags().IntVarP(&window, "window", "w", 0, "number of trailing days to show, including today (default: window_size)")
	return cmd
}
