package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/calm-cli/calm/internal/apperr"
	"github.com/calm-cli/calm/internal/calendar"
)

type addOptions struct {
	allDay      bool
	description string
	location    string
	jsonOut     bool
}

func newAddCmd() *cobra.Command {
	var opts addOptions

	cmd := &cobra.Command{
		Use:   "add <title> <start> [end]",
		Short: "Add an event",
		Long: `Add an event to the primary calendar.

Timed events take "YYYY-MM-DD HH:MM" (or YYYY/MM/DD HH:MM) in the configured
time zone; the end defaults to one hour after the start.

With --all-day, start and end are dates. The end is exclusive and defaults to
the day after the start.`,
		Example: `  calm add "Dentist" "2025-08-14 15:00"
  calm add "Offsite" 2025-08-20 2025-08-22 --all-day`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			input, err := buildNewEvent(args, opts, rt.cfg.Location)
			if err != nil {
				return err
			}

			if err := ensureOnboarded(cmd, rt, newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())); err != nil {
				return err
			}
			store, err := storeFactory(cmd.Context(), cmd, rt, true)
			if err != nil {
				return err
			}

			created, err := store.CreateEvent(cmd.Context(), input)
			if err != nil {
				return fmt.Errorf("failed to create event: %w", err)
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), created)
			}
			fmt.Fprintln(cmd.OutOrStdout(), colorize(fmt.Sprintf("✓ Created: %s (%s)", created.Title, created.Span(rt.cfg.Location)), ansiGreen))
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.allDay, "all-day", false, "Create an all-day event; start and end are dates")
	cmd.Flags().StringVar(&opts.description, "description", "", "Event description")
	cmd.Flags().StringVar(&opts.location, "location", "", "Event location")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print the created event as JSON")
	return cmd
}

// buildNewEvent parses the positional arguments of add.
func buildNewEvent(args []string, opts addOptions, loc *time.Location) (calendar.NewEvent, error) {
	const op = "add"

	title := strings.TrimSpace(args[0])
	if title == "" {
		return calendar.NewEvent{}, apperr.Invalid(op, "title must not be empty")
	}
	input := calendar.NewEvent{
		Title:       title,
		Description: opts.description,
		Location:    opts.location,
	}

	if opts.allDay {
		start, err := calendar.ParseDate(args[1])
		if err != nil {
			return calendar.NewEvent{}, apperr.Invalid(op, "%v", err)
		}
		end := start.AddDays(1)
		if len(args) == 3 {
			if end, err = calendar.ParseDate(args[2]); err != nil {
				return calendar.NewEvent{}, apperr.Invalid(op, "%v", err)
			}
		}
		if !start.Before(end) {
			return calendar.NewEvent{}, apperr.Invalid(op, "end date must be after the start date (the end is exclusive)")
		}
		input.Time = calendar.AllDay{StartDate: start, EndDate: end}
		return input, nil
	}

	start, err := calendar.ParseLocalDateTime(args[1], loc)
	if err != nil {
		return calendar.NewEvent{}, apperr.Invalid(op, "%v", err)
	}
	end := start.Add(time.Hour)
	if len(args) == 3 {
		if end, err = calendar.ParseLocalDateTime(args[2], loc); err != nil {
			return calendar.NewEvent{}, apperr.Invalid(op, "%v", err)
		}
	}
	if !end.After(start) {
		return calendar.NewEvent{}, apperr.Invalid(op, "end must be after start")
	}
	input.Time = calendar.Timed{Start: start, End: end, TimeZone: loc.String()}
	return input, nil
}
