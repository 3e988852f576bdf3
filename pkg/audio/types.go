// Package audio holds the PCM plumbing shared by the codec session and the
// transcoding tools: sample/byte conversion, frame chunking, and simple
// format conversion for interleaved little-endian 16-bit audio.
package audio

import (
	"fmt"
	"time"
)

// bytesPerSample is the size of one 16-bit PCM sample.
const bytesPerSample = 2

// Format describes the sample rate and channel count of an interleaved
// 16-bit PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

// FrameBytes returns the byte length of d worth of audio in f.
func (f Format) FrameBytes(d time.Duration) int {
	samples := int(int64(f.SampleRate) * int64(d) / int64(time.Second))
	return samples * f.Channels * bytesPerSample
}

// Duration returns how long n bytes of audio in f last. A zero format yields
// zero.
func (f Format) Duration(n int) time.Duration {
	perSecond := f.SampleRate * f.Channels * bytesPerSample
	if perSecond <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(perSecond))
}

// String returns a human-readable description, e.g. "48000Hz stereo".
func (f Format) String() string {
	ch := "mono"
	if f.Channels == 2 {
		ch = "stereo"
	} else if f.Channels > 2 {
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%dHz %s", f.SampleRate, ch)
}
