package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/smazurov/camrecorder/internal/logging"
	"github.com/smazurov/camrecorder/internal/recorder"
	"github.com/spf13/cobra"
)

// FinalizeOptions selects the segments to mux and how.
type FinalizeOptions struct {
	WorkDir   string
	OutputDir string
	Command   string
	Keep      bool          // keep raw and timestamp files after success
	DryRun    bool          // print commands only
	Timeout   time.Duration // per segment, 0 = none
}

// CreateFinalizeCmd creates the finalize command.
func CreateFinalizeCmd() *cobra.Command {
	var opts FinalizeOptions
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "finalize",
		Short: "Mux segments left behind in the work directory",
		Long: `Runs mkvmerge for every raw segment in the work directory that has a timestamp file, ` +
			`for example after a crash or power loss. Do not run it while the recorder is writing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			initLogging("info", logJSON)
			return RunFinalize(cmd.Context(), opts, cmd.OutOrStdout(), logging.GetLogger("recorder"))
		},
	}

	cmd.Flags().StringVar(&opts.WorkDir, "work-dir", "tmp", "Directory holding raw segments")
	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", "recordings", "Directory for finalized recordings")
	cmd.Flags().StringVar(&opts.Command, "command", recorder.DefaultMKVMergeCommand, "Muxing command template")
	cmd.Flags().BoolVar(&opts.Keep, "keep", false, "Keep raw and timestamp files after muxing")
	cmd.Flags().BoolVarP(&opts.DryRun, "dry-run", "n", false, "Print the commands without running them")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Minute, "Maximum time per segment")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}

// RunFinalize muxes every pending segment one after another and reports a
// summary to out. It fails if any segment failed.
func RunFinalize(ctx context.Context, opts FinalizeOptions, out io.Writer, logger logging.Logger) error {
	pending, err := recorder.Pending(opts.WorkDir, opts.OutputDir)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Fprintf(out, "no pending segments in %s\n", opts.WorkDir)
		return nil
	}

	mkv := recorder.NewMKVMerge(recorder.MKVMergeOptions{
		Command:       opts.Command,
		RemoveSources: !opts.Keep,
		Logger:        logger,
	})

	failed := 0
	for _, files := range pending {
		if opts.DryRun {
			fmt.Fprintln(out, mkv.Command(files))
			continue
		}

		segCtx, cancel := ctx, context.CancelFunc(func() {})
		if opts.Timeout > 0 {
			segCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		}
		err := mkv.FinalizeSync(segCtx, files)
		cancel()

		if err != nil {
			failed++
			fmt.Fprintf(out, "FAILED %s: %v\n", files.ID, err)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		fmt.Fprintf(out, "ok     %s -> %s\n", files.ID, files.Output)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d segments: %w", failed, len(pending), recorder.ErrFinalizeFailed)
	}
	return nil
}
