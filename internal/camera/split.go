package camera

import (
	"bufio"
	"bytes"
	"io"
)

const (
	maxFrameSize = 16 << 20

	nalSlice = 1
	nalIDR   = 5
	nalSEI   = 6
	nalSPS   = 7
	nalPPS   = 8
	nalAUD   = 9
)

var (
	jpegSOI   = []byte{0xFF, 0xD8}
	jpegEOI   = []byte{0xFF, 0xD9}
	startCode = []byte{0, 0, 1}
)

// ScanJPEG is a bufio.SplitFunc that yields complete JPEG images from a
// concatenated MJPEG stream. Bytes before the first SOI marker are skipped.
func ScanJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	soi := bytes.Index(data, jpegSOI)
	if soi < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// Keep a trailing 0xFF that may start a marker.
		if n := len(data); n > 0 && data[n-1] == 0xFF {
			return n - 1, nil, nil
		}
		return len(data), nil, nil
	}

	eoi := bytes.Index(data[soi+2:], jpegEOI)
	if eoi < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return soi, nil, nil
	}

	end := soi + 2 + eoi + 2
	return end, data[soi:end], nil
}

// ScanNALUnits is a bufio.SplitFunc that yields Annex B NAL units including
// their start code.
func ScanNALUnits(data []byte, atEOF bool) (advance int, token []byte, err error) {
	code := bytes.Index(data, startCode)
	if code < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// Keep a possible partial four byte start code.
		if len(data) > 3 {
			return len(data) - 3, nil, nil
		}
		return 0, nil, nil
	}

	start := code
	// Include the leading zero of a four byte start code.
	if start > 0 && data[start-1] == 0 {
		start--
	}
	header := code + len(startCode)
	if header >= len(data) {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}

	next := bytes.Index(data[header+1:], startCode)
	if next < 0 {
		if atEOF {
			return len(data), data[start:], nil
		}
		return start, nil, nil
	}

	end := header + 1 + next
	// Trailing zeros belong to the next start code.
	for end > header+1 && data[end-1] == 0 {
		end--
	}
	return end, data[start:end], nil
}

// nalType returns the type of an Annex B NAL unit, or -1.
func nalType(nal []byte) int {
	i := bytes.Index(nal, startCode)
	if i < 0 || i+3 >= len(nal) {
		return -1
	}
	return int(nal[i+3] & 0x1F)
}

// firstSlice reports whether a VCL NAL unit starts a new picture, i.e. its
// first_mb_in_slice is zero.
func firstSlice(nal []byte) bool {
	i := bytes.Index(nal, startCode)
	if i < 0 || i+4 >= len(nal) {
		return false
	}
	return nal[i+4]&0x80 != 0
}

// AccessUnit is one encoded picture with its parameter sets.
type AccessUnit struct {
	Data     []byte
	Keyframe bool
}

// accessUnits groups NAL units into access units.
type accessUnits struct {
	buf    []byte
	hasVCL bool
	idr    bool
}

// push adds a NAL unit and returns the previous access unit when nal starts
// a new one.
func (a *accessUnits) push(nal []byte) (AccessUnit, bool) {
	t := nalType(nal)

	var done AccessUnit
	var ok bool
	if a.hasVCL && a.startsNew(t, nal) {
		done, ok = a.flush()
	}

	a.buf = append(a.buf, nal...)
	switch t {
	case nalIDR:
		a.idr = true
		a.hasVCL = true
	case nalSlice:
		a.hasVCL = true
	}
	return done, ok
}

func (a *accessUnits) startsNew(t int, nal []byte) bool {
	switch t {
	case nalAUD, nalSPS, nalPPS, nalSEI:
		return true
	case nalSlice, nalIDR:
		return firstSlice(nal)
	}
	return t >= 14 && t <= 18
}

func (a *accessUnits) flush() (AccessUnit, bool) {
	if !a.hasVCL {
		return AccessUnit{}, false
	}
	au := AccessUnit{Data: a.buf, Keyframe: a.idr}
	a.buf = nil
	a.hasVCL = false
	a.idr = false
	return au, true
}

// SplitJPEG reads an MJPEG stream and calls emit with a copy of every image.
func SplitJPEG(r io.Reader, emit func([]byte)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256<<10), maxFrameSize)
	scanner.Split(ScanJPEG)
	for scanner.Scan() {
		emit(bytes.Clone(scanner.Bytes()))
	}
	return scanner.Err()
}

// SplitH264 reads an Annex B stream and calls emit for every access unit.
// The last access unit is emitted when the stream ends.
func SplitH264(r io.Reader, emit func(AccessUnit)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256<<10), maxFrameSize)
	scanner.Split(ScanNALUnits)

	var units accessUnits
	for scanner.Scan() {
		if au, ok := units.push(bytes.Clone(scanner.Bytes())); ok {
			emit(au)
		}
	}
	if au, ok := units.flush(); ok {
		emit(au)
	}
	return scanner.Err()
}
