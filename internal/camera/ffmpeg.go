package camera

import (
	"strconv"
	"strings"
)

// Default command templates. Placeholders are replaced with quoted values:
// {source} camera device, {loopback} device capture writes to and encoders
// read from, {overlay} timestamp text file, {width}, {height}, {fps}, {gop},
// and {progress} the Unix socket for ffmpeg progress reports. The progress flag
// is dropped from encoder commands when encoder metrics are disabled.
const (
	progressFlag = " -progress unix://{progress}"

	DefaultCaptureCommand = "ffmpeg -hide_banner -nostats -loglevel level+warning" +
		" -f v4l2 -video_size {width}x{height} -framerate {fps} -i {source}" +
		" -vf drawtext=textfile={overlay}:reload=1:x=8:y=8:fontcolor=white:box=1:boxcolor=black@0.5" +
		" -pix_fmt yuv420p -f v4l2 {loopback}"

	DefaultPreviewCommand = "ffmpeg -hide_banner -nostats -loglevel level+warning" + progressFlag +
		" -f v4l2 -i {loopback} -c:v mjpeg -q:v 5 -f mjpeg -"

	DefaultRecordingCommand = "ffmpeg -hide_banner -nostats -loglevel level+warning" + progressFlag +
		" -f v4l2 -i {loopback} -c:v libx264 -preset veryfast -tune zerolatency -g {gop}" +
		" -x264-params repeat-headers=1 -bsf:v h264_mp4toannexb -f h264 -"
)

// ParseLogLevel maps a line of ffmpeg output produced with -loglevel level+...
// to a log level. Lines look like "[warning] msg" or "[h264 @ 0x55d] [error] msg";
// the component prefix is kept in the message.
func ParseLogLevel(line string) (level, msg string) {
	if len(line) < 3 || line[0] != '[' {
		return "info", line
	}
	end := strings.Index(line, "] ")
	if end < 0 {
		return "info", line
	}
	if lvl := line[1:end]; isLogLevel(lvl) {
		return lvl, line[end+2:]
	}

	component, rest := line[:end+2], line[end+2:]
	if len(rest) > 2 && rest[0] == '[' {
		if next := strings.Index(rest, "] "); next > 0 && isLogLevel(rest[1:next]) {
			return rest[1:next], component + rest[next+2:]
		}
	}
	return "info", line
}

func isLogLevel(s string) bool {
	switch s {
	case "quiet", "panic", "fatal", "error", "warning", "info", "verbose", "debug", "trace":
		return true
	}
	return false
}

// templateValues returns the placeholder values shared by all commands.
func (o *Options) templateValues() map[string]string {
	return map[string]string{
		"source":   o.Source,
		"loopback": o.Loopback,
		"overlay":  o.OverlayPath,
		"width":    strconv.Itoa(o.Width),
		"height":   strconv.Itoa(o.Height),
		"fps":      strconv.Itoa(o.FPS),
		"gop":      strconv.Itoa(o.FPS * 2),
	}
}
