package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/calm-cli/calm/internal/calendar"
)

// now is the clock used by the event commands.
var now = time.Now

// rangeFunc computes the [start, end] window of an event command.
type rangeFunc func(args []string, loc *time.Location) (time.Time, time.Time, error)

func newEventsCmds() []*cobra.Command {
	return []*cobra.Command{
		newRangeCmd("today", []string{"t"}, "List all events for today", cobra.NoArgs,
			func(_ []string, loc *time.Location) (time.Time, time.Time, error) {
				start, end := calendar.DayRange(now(), loc)
				return start, end, nil
			}),
		newRangeCmd("tomorrow", []string{"tmr"}, "List all events for tomorrow", cobra.NoArgs,
			func(_ []string, loc *time.Location) (time.Time, time.Time, error) {
				start, end := calendar.DayRange(now().In(loc).AddDate(0, 0, 1), loc)
				return start, end, nil
			}),
		newRangeCmd("week", []string{"w"}, "List all events for this week", cobra.NoArgs,
			func(_ []string, loc *time.Location) (time.Time, time.Time, error) {
				start, end := calendar.WeekRange(now(), loc)
				return start, end, nil
			}),
		newRangeCmd("date <YYYY-MM-DD|YYYY/MM/DD>", []string{"d"}, "List all events for a specific date", cobra.ExactArgs(1),
			func(args []string, loc *time.Location) (time.Time, time.Time, error) {
				d, err := calendar.ParseDate(args[0])
				if err != nil {
					return time.Time{}, time.Time{}, fmt.Errorf("invalid date format. Please use YYYY/MM/DD or YYYY-MM-DD")
				}
				start, end := calendar.DayRange(d.In(loc), loc)
				return start, end, nil
			}),
	}
}

func newRangeCmd(use string, aliases []string, short string, args cobra.PositionalArgs, window rangeFunc) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:     use,
		Aliases: aliases,
		Short:   short,
		Args:    args,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			start, end, err := window(args, rt.cfg.Location)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), colorize(err.Error(), ansiRed))
				return &exitError{code: 1}
			}

			if err := ensureOnboarded(cmd, rt, newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())); err != nil {
				return err
			}
			store, err := storeFactory(cmd.Context(), cmd, rt, true)
			if err != nil {
				return err
			}

			events, err := store.ListEventsBetween(cmd.Context(), start, end, "")
			if err != nil {
				return fmt.Errorf("failed to list events: %w", err)
			}
			if jsonOut {
				if events == nil {
					events = []calendar.Event{}
				}
				return printJSON(cmd.OutOrStdout(), events)
			}
			printEvents(cmd.OutOrStdout(), events, now(), rt.cfg.Location)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Use JSON output")
	return cmd
}
