// Package process runs the external tools the recorder depends on: the
// capture pipeline, the preview and recording encoders and mkvmerge.
//
// A Process is one run of one command line. Output is logged line by line
// through a LogParser, or stdout is handed to a StdoutSink when it carries
// video. Stopping sends SIGINT to the process group and SIGKILL once the
// grace period is over.
//
// A Pool keeps at most one Process per id, rebuilds the command on every
// Start and reports state transitions:
//
//	pool := process.NewPool(process.PoolOptions{
//	    CommandProvider: func(id string) (string, error) {
//	        return "ffmpeg -i /dev/video10 -c:v mjpeg -f mjpeg -", nil
//	    },
//	    ConfigureProcess: func(id string, proc *process.Process) {
//	        proc.SetStdoutSink(preview)
//	    },
//	})
//	if err := pool.Start("preview"); err != nil {
//	    return err
//	}
//	defer pool.StopAll()
package process
