package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/smazurov/camrecorder/internal/clock"
	"github.com/smazurov/camrecorder/internal/schedule"
	"github.com/spf13/cobra"
)

// CheckScheduleOptions describes a dry run of a schedule.
type CheckScheduleOptions struct {
	Name   string
	Ranges string
	From   time.Time // treated as node clock time (UTC)
	Step   time.Duration
	Count  int
}

// CreateCheckScheduleCmd creates the check-schedule command.
func CreateCheckScheduleCmd() *cobra.Command {
	var opts CheckScheduleOptions
	var from string

	cmd := &cobra.Command{
		Use:   "check-schedule RANGES",
		Short: "Show which segments a schedule produces",
		Long: `Parses RANGES the way the control page does and prints, for a series of instants, ` +
			`the segment that would be written and whether the recording encoder runs. ` +
			`Times are node clock times, i.e. the operator's local time.`,
		Example: `  camrecorder check-schedule "08:00-12:00, 13:00-17:30" --name lecture --from "2024-05-17 07:50" --step 30m`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Ranges = args[0]
			if from == "" {
				now := time.Now()
				opts.From = time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), 0, 0, time.UTC)
			} else {
				t, err := parseFrom(from)
				if err != nil {
					return err
				}
				opts.From = t
			}
			return RunCheckSchedule(opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "recording", "Recording name")
	cmd.Flags().StringVar(&from, "from", "", `First instant, "YYYY-MM-DD HH:MM" (default: now, local wall time)`)
	cmd.Flags().DurationVar(&opts.Step, "step", 15*time.Minute, "Interval between instants")
	cmd.Flags().IntVar(&opts.Count, "count", 24, "Number of instants")

	return cmd
}

func parseFrom(value string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --from %q, want YYYY-MM-DD HH:MM", value)
}

// RunCheckSchedule prints a table of instants with the segment id and the
// encoder state the schedule implies.
func RunCheckSchedule(opts CheckScheduleOptions, out io.Writer) error {
	sched := schedule.New()
	if err := sched.Set(opts.Ranges, opts.Name); err != nil {
		return err
	}
	if opts.Step <= 0 {
		return fmt.Errorf("step must be positive, got %s", opts.Step)
	}

	snap := sched.Snapshot()
	fmt.Fprintf(out, "schedule %q: %s\n", snap.Name, snap.RangesString())

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tENCODER\tSEGMENT")
	for i := range opts.Count {
		ts := opts.From.Add(time.Duration(i) * opts.Step).UnixNano()
		encoder := "off"
		if snap.ShouldRunEncoder(ts) {
			encoder = "on"
		}
		segment := "-"
		if id, ok := snap.ShouldRecord(ts); ok {
			segment = id
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", clock.DisplayString(ts), encoder, segment)
	}
	return tw.Flush()
}
